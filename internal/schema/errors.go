// file: internal/schema/errors.go
package schema

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrorCode defines validation error codes.
type ErrorCode int

// Defined validation error codes.
const (
	ErrSchemaCompileFailed ErrorCode = iota + 4000
	ErrValidationFailed
	ErrInvalidJSONFormat
	ErrInvalidName
)

// ValidationError represents a schema compile or argument validation error.
type ValidationError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// SchemaPath identifies the violated keyword in the schema.
	SchemaPath string
	// InstancePath identifies the offending location in the arguments.
	InstancePath string
	Context      map[string]interface{}
}

// Error implements the error interface. The code is left out because the
// message ends up in tool results shown to users.
func (e *ValidationError) Error() string {
	base := e.Message
	if e.InstancePath != "" {
		base += fmt.Sprintf(" (at %s)", e.InstancePath)
	}
	if e.Cause != nil && e.Code != ErrValidationFailed {
		base += fmt.Sprintf(": %v", e.Cause)
	}
	return base
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the validation error.
func (e *ValidationError) WithContext(key string, value interface{}) *ValidationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewValidationError creates a new ValidationError.
func NewValidationError(code ErrorCode, message string, cause error) *ValidationError {
	var wrapped error
	if cause != nil {
		wrapped = errors.WithStack(cause)
	}
	return &ValidationError{Code: code, Message: message, Cause: wrapped}
}

// IsValidationError reports whether err is an argument validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Code == ErrValidationFailed
}

// convertValidationError turns a jsonschema failure into a ValidationError
// whose message names the most specific violations.
func convertValidationError(valErr *jsonschema.ValidationError, schemaName string, data []byte) *ValidationError {
	basic := valErr.BasicOutput()

	var leaves []string
	var primary jsonschema.BasicError
	for _, be := range basic.Errors {
		if be.Error == "" || strings.HasPrefix(be.Error, "doesn't validate with") {
			continue
		}
		if primary.Error == "" {
			primary = be
		}
		leaves = append(leaves, be.Error)
	}

	msg := "invalid arguments"
	if len(leaves) > 0 {
		msg += ": " + strings.Join(leaves, "; ")
	} else if valErr.Message != "" {
		msg += ": " + valErr.Message
	}

	customErr := NewValidationError(ErrValidationFailed, msg, valErr)
	customErr.SchemaPath = primary.KeywordLocation
	if primary.InstanceLocation != "" {
		customErr.InstancePath = primary.InstanceLocation
	}
	return customErr.
		WithContext("schema", schemaName).
		WithContext("dataPreview", calculatePreview(data))
}
