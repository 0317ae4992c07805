// file: internal/schema/name_rules.go
package schema

import (
	"regexp"
)

// ToolNamePattern is the accepted form of a tool name.
var ToolNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// MaxToolNameLength is the longest tool name clients are known to accept.
const MaxToolNameLength = 64

// ValidateToolName checks a tool name before registration.
func ValidateToolName(name string) error {
	switch {
	case name == "":
		return NewValidationError(ErrInvalidName, "empty tool name is not allowed", nil)
	case len(name) > MaxToolNameLength:
		return NewValidationError(ErrInvalidName, "tool name exceeds maximum length", nil).
			WithContext("name", name).WithContext("maxLength", MaxToolNameLength)
	case !ToolNamePattern.MatchString(name):
		return NewValidationError(ErrInvalidName,
			"invalid tool name '"+name+"': must start with a letter, followed by letters, digits, '_' or '-'", nil)
	}
	return nil
}
