// Package errors provides custom error types for the worldfeed system.
// These errors enable better error handling, programmatic error checking,
// and failure containment at region and category scope.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the worldfeed system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrFetch indicates the feed could not be downloaded
	ErrFetch = errors.New("feed fetch failed")

	// ErrMalformedFeed indicates the feed payload did not match the expected structure
	ErrMalformedFeed = errors.New("malformed feed")

	// ErrStaleFeed indicates the feed time did not advance since the last accepted snapshot
	ErrStaleFeed = errors.New("stale feed")

	// ErrCategory indicates reconciliation of one entity category failed
	ErrCategory = errors.New("category reconciliation failed")

	// ErrStorage indicates a durable storage operation failed
	ErrStorage = errors.New("storage failure")

	// ErrNotification indicates an outbound channel rejected or dropped a message
	ErrNotification = errors.New("notification channel failure")

	// ErrCycleInProgress indicates a cycle for the region is already running
	ErrCycleInProgress = errors.New("cycle already in progress")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// FetchError represents a failed feed download for one region
type FetchError struct {
	Region     string
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s feed from %s: unexpected status %d", e.Region, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s feed from %s: %v", e.Region, e.URL, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// NewFetchError creates a new FetchError
func NewFetchError(region, url string, statusCode int, err error) *FetchError {
	return &FetchError{Region: region, URL: url, StatusCode: statusCode, Err: err}
}

// MalformedFeedError represents a structural mismatch found while normalizing a feed
type MalformedFeedError struct {
	Region string
	Path   string // location inside the payload, e.g. "Invasions[3].Goal"
	Reason string
	Err    error
}

// Error implements the error interface
func (e *MalformedFeedError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("malformed %s feed at %s: %s", e.Region, e.Path, e.Reason)
	}
	return fmt.Sprintf("malformed %s feed: %s", e.Region, e.Reason)
}

// Unwrap implements errors.Unwrap
func (e *MalformedFeedError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *MalformedFeedError) Is(target error) bool {
	return target == ErrMalformedFeed
}

// NewMalformedFeedError creates a new MalformedFeedError
func NewMalformedFeedError(region, path, reason string, err error) *MalformedFeedError {
	return &MalformedFeedError{Region: region, Path: path, Reason: reason, Err: err}
}

// CategoryError represents a reconciliation failure isolated to one category
type CategoryError struct {
	Region   string
	Category string
	Err      error
}

// Error implements the error interface
func (e *CategoryError) Error() string {
	return fmt.Sprintf("reconcile %s/%s: %v", e.Region, e.Category, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *CategoryError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *CategoryError) Is(target error) bool {
	return target == ErrCategory
}

// NewCategoryError creates a new CategoryError
func NewCategoryError(region, category string, err error) *CategoryError {
	return &CategoryError{Region: region, Category: category, Err: err}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during storage I/O operations
type IOError struct {
	Operation string // "read", "write", "rename", "archive", "sync"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *IOError) Is(target error) bool {
	return target == ErrStorage
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// NotificationError represents a failure of one outbound channel
type NotificationError struct {
	Channel    string // "push", "post", "events"
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *NotificationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("notification via %s failed (status %d): %v", e.Channel, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("notification via %s failed: %v", e.Channel, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *NotificationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *NotificationError) Is(target error) bool {
	return target == ErrNotification
}

// NewNotificationError creates a new NotificationError
func NewNotificationError(channel string, statusCode int, err error) *NotificationError {
	return &NotificationError{Channel: channel, StatusCode: statusCode, Err: err}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsStale checks if an error reports an unchanged feed
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleFeed)
}

// IsMalformed checks if an error is a feed normalization failure
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedFeed)
}

// IsFetch checks if an error is a feed download failure
func IsFetch(err error) bool {
	return errors.Is(err, ErrFetch)
}

// IsStorage checks if an error is a storage failure
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapCategory wraps an error as a CategoryError
func WrapCategory(region, category string, err error) error {
	if err == nil {
		return nil
	}
	return NewCategoryError(region, category, err)
}

// WrapNotification wraps an error as a NotificationError
func WrapNotification(channel string, err error) error {
	if err == nil {
		return nil
	}
	return NewNotificationError(channel, 0, err)
}
