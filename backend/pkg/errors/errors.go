package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeContent represents content parsing errors
	ErrorTypeContent ErrorType = "content"
	// ErrorTypeGraph represents relationship graph errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeQuery represents query engine errors
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeMenu represents menu hierarchy errors
	ErrorTypeMenu ErrorType = "menu"
	// ErrorTypeStore represents entry store errors
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Content Errors

// ErrMalformedFrontmatter is returned when a content file cannot be read or parsed
type ErrMalformedFrontmatter struct {
	*BaseError
	Path string
}

func NewMalformedFrontmatter(path string, err error) *ErrMalformedFrontmatter {
	return &ErrMalformedFrontmatter{
		BaseError: NewBaseError(ErrorTypeContent, fmt.Sprintf("malformed frontmatter: %s", path), err),
		Path:      path,
	}
}

// Graph Errors

// ErrCircularReference describes a repeated node in a parent or ancestor walk.
// Traversals log it and stop; it is never returned to callers.
type ErrCircularReference struct {
	*BaseError
	Collection string
	ID         string
	Chain      []string
}

func NewCircularReference(collection, id string, chain []string) *ErrCircularReference {
	return &ErrCircularReference{
		BaseError: NewBaseError(ErrorTypeGraph,
			fmt.Sprintf("circular reference at %s:%s (%s)", collection, id, strings.Join(chain, " -> ")), nil),
		Collection: collection,
		ID:         id,
		Chain:      chain,
	}
}

// Query Errors

// ErrInvalidCollection is returned when a query names no collection or a malformed one
type ErrInvalidCollection struct {
	*BaseError
	Collection string
}

func NewInvalidCollection(collection string, err error) *ErrInvalidCollection {
	return &ErrInvalidCollection{
		BaseError:  NewBaseError(ErrorTypeQuery, fmt.Sprintf("invalid collection name: %q", collection), err),
		Collection: collection,
	}
}

// ErrInvalidQuery is returned when a filter or sort cannot be constructed
type ErrInvalidQuery struct {
	*BaseError
	Reason string
}

func NewInvalidQuery(reason string, err error) *ErrInvalidQuery {
	return &ErrInvalidQuery{
		BaseError: NewBaseError(ErrorTypeQuery, fmt.Sprintf("invalid query: %s", reason), err),
		Reason:    reason,
	}
}

// Menu Errors

// ErrUnresolvedParent reports a menu parent that never matched an item
type ErrUnresolvedParent struct {
	*BaseError
	ItemID string
	Parent string
}

func NewUnresolvedParent(itemID, parent string) *ErrUnresolvedParent {
	return &ErrUnresolvedParent{
		BaseError: NewBaseError(ErrorTypeMenu, fmt.Sprintf("unresolved parent %q for %s", parent, itemID), nil),
		ItemID:    itemID,
		Parent:    parent,
	}
}

// Store Errors

// ErrStoreUnavailable is returned when an entry store backend cannot be reached
type ErrStoreUnavailable struct {
	*BaseError
	Backend string
}

func NewStoreUnavailable(backend string, err error) *ErrStoreUnavailable {
	return &ErrStoreUnavailable{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("entry store unavailable: %s", backend), err),
		Backend:   backend,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if typed, ok := err.(interface{ base() *BaseError }); ok {
			if typed.base().Type == errType {
				return true
			}
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

func (e *BaseError) base() *BaseError { return e }

// As is errors.As, re-exported so callers importing this package do not
// need a second errors import.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
