// Package quillerrors provides sentinel and custom error types for the application.
package quillerrors

// ErrNotFound represents a "not found" error.
// Use when a requested job or analysis doesn't exist.
var ErrNotFound = &NotFoundError{}

// NotFoundError is a sentinel error for resources that are not found.
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new NotFoundError with a custom message.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Resource != "" {
		return e.Resource + " not found"
	}

	return "resource not found"
}

// Is implements the error interface for error comparison.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)

	return ok
}

// ErrValidation represents a validation error.
// Use when client input fails validation, before any job is created.
var ErrValidation = &ValidationError{}

// ValidationError is a sentinel error for validation failures.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError with a custom message.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "validation failed for field: " + e.Field
	}

	return "validation error"
}

// Is implements the error interface for error comparison.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)

	return ok
}

// ErrConflict is the sentinel for conflict errors (e.g. a job id that is already tracked).
var ErrConflict = &ConflictError{}

// ConflictError is a sentinel error for resource conflicts.
type ConflictError struct {
	Message string
}

// NewConflictError creates a ConflictError with a custom message.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "conflict"
}

// Is implements the error interface for error comparison.
func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)

	return ok
}

// ErrEmptyResult is the sentinel for stages that produced nothing usable.
var ErrEmptyResult = &EmptyResultError{}

// EmptyResultError is returned when comment retrieval or normalization yields no records.
type EmptyResultError struct {
	Message string
}

// NewEmptyResultError creates an EmptyResultError with a custom message.
func NewEmptyResultError(message string) *EmptyResultError {
	return &EmptyResultError{Message: message}
}

// Error implements the error interface.
func (e *EmptyResultError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "empty result"
}

// Is implements the error interface for error comparison.
func (e *EmptyResultError) Is(target error) bool {
	_, ok := target.(*EmptyResultError)

	return ok
}

// ErrProvider is the sentinel for downstream provider failures.
var ErrProvider = &ProviderError{}

// ProviderError wraps a failed or unparseable call to an external provider
// (comment source, embeddings, vector store, LLM).
type ProviderError struct {
	Provider string
	Err      error
}

// NewProviderError creates a ProviderError for the named provider.
func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	switch {
	case e.Provider != "" && e.Err != nil:
		return e.Provider + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Provider != "":
		return e.Provider + " failed"
	default:
		return "provider error"
	}
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *ProviderError) Is(target error) bool {
	_, ok := target.(*ProviderError)

	return ok
}

// ErrPersistence is the sentinel for durable write failures.
var ErrPersistence = &PersistenceError{}

// PersistenceError wraps a failed durable write that happened after analysis succeeded.
type PersistenceError struct {
	Op  string
	Err error
}

// NewPersistenceError creates a PersistenceError for the given operation.
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return e.Op + " failed"
	default:
		return "persistence error"
	}
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is implements the error interface for error comparison.
func (e *PersistenceError) Is(target error) bool {
	_, ok := target.(*PersistenceError)

	return ok
}
