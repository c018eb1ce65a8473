package normalize

import (
	"errors"
	"fmt"
	"strings"

	"swipestats-workers/internal/models"
)

var (
	ErrUnrecognizedFormat = errors.New("unrecognized export format")
	ErrMalformedField     = errors.New("malformed export field")
)

// UnrecognizedFormatError is returned when a document matches neither vendor export shape.
type UnrecognizedFormatError struct {
	TopLevelKeys []string
}

func (e *UnrecognizedFormatError) Error() string {
	if len(e.TopLevelKeys) == 0 {
		return "unrecognized export format: empty document"
	}
	return fmt.Sprintf("unrecognized export format: top-level keys [%s]", strings.Join(e.TopLevelKeys, ", "))
}

func (e *UnrecognizedFormatError) Is(target error) bool {
	return target == ErrUnrecognizedFormat
}

// MalformedFieldError is returned when a required structural element is present but has the wrong shape.
type MalformedFieldError struct {
	Platform models.Platform
	Field    string
	Expected string
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("malformed %s export: %s: %s", e.Platform, e.Field, e.Expected)
}

func (e *MalformedFieldError) Is(target error) bool {
	return target == ErrMalformedField
}
