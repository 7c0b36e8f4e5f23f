package model

import (
	"fmt"
	"strings"
	"unicode"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// maxFlagNameLen bounds flag names accepted over the API.
const maxFlagNameLen = 200

// ValidateFlagName checks a flag name received from an outer surface.
// The engine itself treats names as opaque; this only guards the API.
func ValidateFlagName(name string) error {
	var ve ValidationError

	switch {
	case name == "":
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "is required"})
	case len(name) > maxFlagNameLen:
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "name",
			Message: fmt.Sprintf("must be %d bytes or fewer", maxFlagNameLen),
		})
	case strings.IndexFunc(name, unicode.IsSpace) >= 0:
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "must not contain whitespace"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateVariants checks the variant list passed to GetVariant over the API.
func ValidateVariants(variants []string) error {
	var ve ValidationError
	if len(variants) == 0 {
		ve.Errors = append(ve.Errors, FieldError{Field: "variants", Message: "at least one variant is required"})
	}
	seen := make(map[string]bool, len(variants))
	for i, v := range variants {
		if strings.TrimSpace(v) == "" {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   fmt.Sprintf("variants[%d]", i),
				Message: "must not be empty",
			})
			continue
		}
		if seen[v] {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   fmt.Sprintf("variants[%d]", i),
				Message: fmt.Sprintf("duplicate variant %q", v),
			})
		}
		seen[v] = true
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
