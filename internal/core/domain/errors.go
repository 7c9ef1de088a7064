package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")

	ErrIngestionEmpty              = errors.New("ingestion produced no text")
	ErrExternalCollaborator        = errors.New("external collaborator failure")
	ErrCacheInvalid                = errors.New("cache entry invalid")
	ErrFIRACFieldMissing           = errors.New("firac field missing")
	ErrPetitionPlaceholderUnfilled = errors.New("petition placeholder unfilled")
	ErrClassifierColdStart         = errors.New("classifier cold start failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// PlaceholderError lists template placeholders left without a value after rendering.
type PlaceholderError struct {
	Placeholders []string
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPetitionPlaceholderUnfilled, strings.Join(e.Placeholders, ", "))
}

func (e *PlaceholderError) Unwrap() error {
	return ErrPetitionPlaceholderUnfilled
}

// FieldMissingError reports FIRAC fields that stayed empty after every recovery step.
type FieldMissingError struct {
	Fields []string
}

func (e *FieldMissingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrFIRACFieldMissing, strings.Join(e.Fields, ", "))
}

func (e *FieldMissingError) Unwrap() error {
	return ErrFIRACFieldMissing
}
