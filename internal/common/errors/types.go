package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConfig represents configuration errors
	ErrTypeConfig ErrorType = "config"
	// ErrTypeConfigInvalid represents a trigger configuration that cannot produce a schedule
	ErrTypeConfigInvalid ErrorType = "config_invalid"
	// ErrTypeCredentials represents a credentials reference that could not be resolved
	ErrTypeCredentials ErrorType = "credentials_unavailable"
	// ErrTypeRemoteCall represents a failed call to the remote scheduler
	ErrTypeRemoteCall ErrorType = "remote_call_failed"
	// ErrTypeBodyRead represents a request body that could not be read
	ErrTypeBodyRead ErrorType = "body_read"
	// ErrTypeRouteConflict represents a route already owned by another trigger
	ErrTypeRouteConflict ErrorType = "route_conflict"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfig,
		Message: msg,
	}
}

// ConfigInvalidError reports a trigger configuration with no usable schedule
func ConfigInvalidError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConfigInvalid,
		Message: msg,
	}
}

// CredentialsError reports an unresolvable credentials reference
func CredentialsError(ref string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeCredentials,
		Message: fmt.Sprintf("credentials %q unavailable", ref),
		Cause:   cause,
	}
}

// RemoteCallError wraps a failure returned by the remote scheduler
func RemoteCallError(operation string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeRemoteCall,
		Message: fmt.Sprintf("remote %s failed", operation),
		Cause:   cause,
	}
}

// BodyReadError wraps a failure while reading a request body
func BodyReadError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeBodyRead,
		Message: msg,
		Cause:   cause,
	}
}

// RouteConflictError reports a route key already bound to a different owner
func RouteConflictError(method, path, owner string) *AppError {
	return &AppError{
		Type:    ErrTypeRouteConflict,
		Message: fmt.Sprintf("route %s %s already registered", method, path),
		Context: map[string]interface{}{"owner": owner},
	}
}

// NotFoundError creates a new not found error
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// IsType checks if an error, or anything it wraps, is an AppError of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}

	return appErr.Type == errType
}

// GetType returns the error type if it's an AppError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return ErrTypeInternal
	}

	return appErr.Type
}
