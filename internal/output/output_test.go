// file: internal/output/output_test.go
package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionFor(t *testing.T) {
	cases := map[string]string{
		"c++":        "cpp",
		"Go":         "go",
		"weirdlang":  "txt",
		" Python ":   "py",
		"C#":         "cs",
		"csharp":     "cs",
		"TypeScript": "ts",
		"bash":       "sh",
		"golang":     "go",
		"":           "txt",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtensionFor(in), in)
	}
}

func TestSaver_Save_WritesTimestampedFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	s := NewSaver(dir, nil)
	s.now = func() time.Time { return time.Date(2025, 4, 22, 9, 5, 7, 0, time.Local) }

	path, err := s.Save("print('hi')\n", "Python")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "code_20250422_090507.py"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(data))
}

func TestSaver_Save_SameSecondDoesNotOverwrite(t *testing.T) {
	dir := t.TempDir()
	s := NewSaver(dir, nil)
	s.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local) }

	first, err := s.Save("one", "go")
	require.NoError(t, err)
	second, err := s.Save("two", "go")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, filepath.Join(dir, "code_20250101_000000_1.go"), second)
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestNewSaver_DefaultDir(t *testing.T) {
	assert.Equal(t, "output", NewSaver("", nil).Dir())
}
