// internal/errors/errors.go
package appErrors

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUnauthenticated      = errors.New("missing or invalid bearer token")
	ErrNoSchoolSelected     = errors.New("No school selected")
	ErrForbidden            = errors.New("permission denied")
	ErrCampaignSent         = errors.New("campaign has already been sent")
	ErrContentItemResolved  = errors.New("content item is no longer pending")
	ErrGenerationInProgress = errors.New("a draft is already being generated for this campaign")
	ErrCampaignExists       = errors.New("a campaign already exists for this week")
)

// ErrNotFound is returned for missing rows and for rows that belong to another school.
type ErrNotFound struct {
	Resource string
	ID       int
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Resource, e.ID)
}

func NewNotFound(resource string, id int) error {
	return &ErrNotFound{Resource: resource, ID: id}
}

func NewCampaignNotFound(id int) error {
	return NewNotFound("campaign", id)
}

func NewSectionNotFound(id int) error {
	return NewNotFound("section", id)
}

func NewContentItemNotFound(id int) error {
	return NewNotFound("content item", id)
}

func NewSchoolNotFound(id int) error {
	return NewNotFound("school", id)
}

func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		if len(e.Fields) > 0 {
			return e.Fields[0].Field + ": " + e.Fields[0].Error
		}
		return "validation failed"
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
