package schema

import "fmt"

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is a single document problem with its JSON location.
type ValidationIssue struct {
	Path     string             `json:"path"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

// ValidationResult collects the issues found while loading a document.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid returns true if there are no errors. Warnings are acceptable.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// AddError appends an error-severity issue.
func (r *ValidationResult) AddError(path, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Path: path, Message: message, Severity: SeverityError})
}

// AddWarning appends a warning-severity issue.
func (r *ValidationResult) AddWarning(path, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Path: path, Message: message, Severity: SeverityWarning})
}

// ToError converts the result to an Error if invalid, nil if valid.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := fmt.Sprintf("%s: %s", r.Errors[0].Path, r.Errors[0].Message)
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("document invalid with %d errors", len(r.Errors))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}
