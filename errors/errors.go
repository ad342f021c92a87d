package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
)

// Error represents a failed operation with context about what it was acting on.
// It wraps the underlying error from the storage SDK, the filesystem or the
// orchestrator itself with the operation name, bucket, key and a classification code.
type Error struct {
	// Op is the operation that failed (e.g., "put", "exists", "publish")
	Op string

	// Bucket is the storage bucket name (if applicable)
	Bucket string

	// Key is the object key or local path (if applicable)
	Key string

	// Code classifies the failure. Zero value means "derive from Err".
	Code ErrorCode

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithCode sets an explicit classification code.
func (e *Error) WithCode(code ErrorCode) *Error {
	e.Code = code
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// NewConfigError creates a configuration error. Configuration errors are fatal at startup.
func NewConfigError(message string) *Error {
	return &Error{
		Op:   "config",
		Code: CodeInvalidConfig,
		Err:  fmt.Errorf("%w: %s", ErrInvalidConfig, message),
	}
}

// Sentinel errors for common failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("object not found")

	// ErrBucketNotFound indicates that the requested bucket does not exist
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidCredentials indicates that the storage credentials are invalid
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates that the configuration is incomplete or malformed
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTooManyRequests indicates that the request rate is too high
	ErrTooManyRequests = errors.New("too many requests")

	// ErrTimeout indicates that the operation timed out
	ErrTimeout = errors.New("operation timeout")

	// ErrConnection indicates a connection error
	ErrConnection = errors.New("connection error")

	// ErrServiceUnavailable indicates a 5xx response from the storage service
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrAllFailed indicates that every file in a run failed to upload
	ErrAllFailed = errors.New("all uploads failed")

	// ErrIncompleteUpload indicates that some files failed, so metadata was not published
	ErrIncompleteUpload = errors.New("upload incomplete")

	// ErrVersionExists indicates that the version name is already published
	ErrVersionExists = errors.New("version already exists")
)

// CodeOf returns the classification code of err.
// An explicit code on an *Error wins; otherwise the wrapped sentinels decide.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}

	var netErr net.Error
	switch {
	case errors.Is(err, ErrObjectNotFound), errors.Is(err, ErrBucketNotFound), errors.Is(err, fs.ErrNotExist):
		return CodeNotFound
	case errors.Is(err, ErrVersionExists):
		return CodeAlreadyExists
	case errors.Is(err, ErrInvalidCredentials):
		return CodeUnauthorized
	case errors.Is(err, ErrAccessDenied), errors.Is(err, fs.ErrPermission):
		return CodeForbidden
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrInvalidConfig):
		return CodeInvalidConfig
	case errors.Is(err, ErrTooManyRequests):
		return CodeRateLimit
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrConnection), errors.Is(err, ErrServiceUnavailable):
		return CodeNetwork
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return CodeTimeout
		}
		return CodeNetwork
	case errors.Is(err, ErrIncompleteUpload), errors.Is(err, ErrAllFailed):
		return CodePublishFailed
	}

	return CodeUnknown
}

// IsRetryable reports whether an operation that failed with err may succeed if repeated.
// Cancellation is never retryable.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return CodeOf(err).Retryable()
}

// IsObjectNotFound checks if an error indicates that an object was not found.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsInvalidConfig checks if an error is a configuration error.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}
