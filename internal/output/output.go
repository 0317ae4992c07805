// Package output saves tool results to timestamped files.
// file: internal/output/output.go
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/codebridge/internal/logging"
)

// DefaultExtension is used for languages without a mapping.
const DefaultExtension = "txt"

// maxCollisions bounds the numbered suffixes tried for one timestamp.
const maxCollisions = 100

var extensions = map[string]string{
	"python":     "py",
	"javascript": "js",
	"typescript": "ts",
	"java":       "java",
	"c#":         "cs",
	"csharp":     "cs",
	"c++":        "cpp",
	"cpp":        "cpp",
	"c":          "c",
	"go":         "go",
	"golang":     "go",
	"rust":       "rs",
	"ruby":       "rb",
	"php":        "php",
	"swift":      "swift",
	"kotlin":     "kt",
	"html":       "html",
	"css":        "css",
	"sql":        "sql",
	"shell":      "sh",
	"bash":       "sh",
}

// ExtensionFor maps a language name to a file extension, ignoring case and
// surrounding space. Unknown languages map to DefaultExtension.
func ExtensionFor(language string) string {
	if ext, ok := extensions[strings.ToLower(strings.TrimSpace(language))]; ok {
		return ext
	}
	return DefaultExtension
}

// Saver writes results into a directory.
type Saver struct {
	dir    string
	now    func() time.Time
	logger logging.Logger
}

// NewSaver creates a Saver for dir. An empty dir means "output".
func NewSaver(dir string, logger logging.Logger) *Saver {
	if dir == "" {
		dir = "output"
	}
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	return &Saver{dir: dir, now: time.Now, logger: logger.WithField("component", "output_saver")}
}

// Dir returns the target directory.
func (s *Saver) Dir() string { return s.dir }

// Save writes content to dir/code_YYYYMMDD_HHMMSS.<ext> and returns the path.
// The directory is created on demand. A second save within the same second
// gets a numbered suffix instead of overwriting the first.
func (s *Saver) Save(content, language string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create output directory %s", s.dir)
	}

	base := "code_" + s.now().Format("20060102_150405")
	ext := ExtensionFor(language)
	for i := 0; i < maxCollisions; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		path := filepath.Join(s.dir, name+"."+ext)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", errors.Wrapf(err, "failed to create %s", path)
		}
		if _, err := f.WriteString(content); err != nil {
			_ = f.Close()
			return "", errors.Wrapf(err, "failed to write %s", path)
		}
		if err := f.Close(); err != nil {
			return "", errors.Wrapf(err, "failed to close %s", path)
		}
		s.logger.Info("Saved result to file.", "path", path, "bytes", len(content))
		return path, nil
	}
	return "", errors.Newf("too many files named %s in %s", base, s.dir)
}
