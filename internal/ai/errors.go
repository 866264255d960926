package ai

import (
	"fmt"

	appErrors "github.com/unclebandit/pta-newsletter/internal/errors"
)

// ParseError means the model reply was not JSON, even after removing a code fence.
type ParseError struct {
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ai response is not valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ResponseValidationError means the reply was JSON but did not match the expected shape.
type ResponseValidationError struct {
	Fields []appErrors.FieldError
}

func (e *ResponseValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "ai response failed validation"
	}
	return fmt.Sprintf("ai response failed validation: %s: %s (%d field(s))", e.Fields[0].Field, e.Fields[0].Error, len(e.Fields))
}
