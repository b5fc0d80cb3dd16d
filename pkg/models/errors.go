package models

import "errors"

var (
	// ErrIncompleteScanDefinition is returned when a definition has no usable mappings
	ErrIncompleteScanDefinition = errors.New("incomplete scan definition")
	// ErrNullFileReference is returned when a required source or target is missing
	ErrNullFileReference = errors.New("null file reference")
	// ErrItemToRestoreMissing is recorded when neither a trashed copy nor a counterpart exists
	ErrItemToRestoreMissing = errors.New("item to restore does not exist")
	// ErrNothingToMerge is recorded when neither side of a result exists any more
	ErrNothingToMerge = errors.New("neither source nor target exists")
	// ErrNotRestorable is returned when restoring a result that was not resolved by a delete
	ErrNotRestorable = errors.New("result was not resolved by a delete")
	// ErrScanNotFound is returned by the scan store for unknown ids
	ErrScanNotFound = errors.New("scan not found")
	// ErrDefinitionNotFound is returned by the definition store for unknown names
	ErrDefinitionNotFound = errors.New("scan definition not found")
	// ErrResultNotFound is returned when a scan has no result with the given id
	ErrResultNotFound = errors.New("comparison result not found")
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
