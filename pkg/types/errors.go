package types

import (
	"fmt"
	"strings"
)

// FieldError reports a validation failure on one field.
type FieldError struct {
	List  string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.List, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ValidationError aggregates the field errors of one create or update.
// errors.Is matches any of the wrapped sentinels.
type ValidationError struct {
	Issues []*FieldError
}

// Add records a field error.
func (e *ValidationError) Add(list, field string, err error) {
	e.Issues = append(e.Issues, &FieldError{List: list, Field: field, Err: err})
}

// OrNil returns e when it holds issues, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Issues))
	for i, issue := range e.Issues {
		errs[i] = issue
	}
	return errs
}
