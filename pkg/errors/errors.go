// Package errors provides the structured error system used throughout the
// core: a closed set of domain error codes with category, retryability and
// HTTP-status metadata attached, instead of opaque strings.
package errors

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Code identifies a specific domain failure.
type Code string

// Domain error codes exposed to callers, plus the internal/transient codes
// the retry layer and background workers need to classify failures that are
// not part of the caller-facing taxonomy.
const (
	// Caller-facing domain errors.
	CodeAlreadyExists            Code = "ALREADY_EXISTS"
	CodeNotFound                 Code = "NOT_FOUND"
	CodeIsADirectory             Code = "IS_A_DIRECTORY"
	CodeNotADirectory            Code = "NOT_A_DIRECTORY"
	CodeMissingParent            Code = "MISSING_PARENT"
	CodeMalformedPath            Code = "MALFORMED_PATH"
	CodeTooLarge                 Code = "TOO_LARGE"
	CodeThumbnailUnavailable     Code = "THUMBNAIL_UNAVAILABLE"
	CodeActionNotAllowed         Code = "ACTION_NOT_ALLOWED"
	CodeStorageQuotaExceeded     Code = "STORAGE_QUOTA_EXCEEDED"
	CodeFingerprintAlreadyExists Code = "FINGERPRINT_ALREADY_EXISTS"
	CodeContentMetadataNotFound  Code = "CONTENT_METADATA_NOT_FOUND"
	CodeMountNotFound            Code = "MOUNT_NOT_FOUND"
	CodeSharedLinkNotFound       Code = "SHARED_LINK_NOT_FOUND"
	CodeUserNotFound             Code = "USER_NOT_FOUND"
	CodeUserAlreadyExists        Code = "USER_ALREADY_EXISTS"
	CodeInvalidCredentials       Code = "INVALID_CREDENTIALS"
	CodeEmailAlreadyVerified     Code = "EMAIL_ALREADY_VERIFIED"
	CodeOTPAlreadySent           Code = "OTP_ALREADY_SENT"
	CodeEmailUpdateAlreadyStarted Code = "EMAIL_UPDATE_ALREADY_STARTED"
	CodeEmailUpdateNotStarted    Code = "EMAIL_UPDATE_NOT_STARTED"

	// Internal / transient codes. Never returned to a caller directly, but
	// used by the retry layer (pkg/retry) and the atomic-block wrapper
	// (internal/db) to decide whether an operation is worth re-running, and
	// by the storage backends to classify lower-level failures before they
	// are translated into one of the domain codes above.
	CodeSerializationConflict Code = "SERIALIZATION_CONFLICT"
	CodeConnectionFailed      Code = "CONNECTION_FAILED"
	CodeConnectionTimeout     Code = "CONNECTION_TIMEOUT"
	CodeNetworkError          Code = "NETWORK_ERROR"
	CodeOperationTimeout      Code = "OPERATION_TIMEOUT"
	CodeResourceExhausted     Code = "RESOURCE_EXHAUSTED"
	CodeWorkerBusy            Code = "WORKER_BUSY"
	CodeInternalError         Code = "INTERNAL_ERROR"
)

// Category groups codes for dashboards and coarse-grained handling.
type Category string

const (
	CategoryFilesystem  Category = "filesystem"
	CategorySharing     Category = "sharing"
	CategoryContent     Category = "content"
	CategoryAccount     Category = "account"
	CategoryAuth        Category = "auth"
	CategoryTransient   Category = "transient"
	CategoryInternal    Category = "internal"
)

// Error is the concrete domain error type carried across every package.
type Error struct {
	Code    Code                   `json:"code"`
	Category Category              `json:"category"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`

	Context   map[string]string `json:"context,omitempty"`
	Cause     error             `json:"-"`
	Timestamp time.Time         `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	Retryable  bool `json:"retryable"`
	UserFacing bool `json:"user_facing"`
	HTTPStatus int  `json:"http_status,omitempty"`

	Stack string `json:"stack,omitempty"`
}

func (e *Error) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	if other, ok := target.(*Error); ok {
		return e.Code == other.Code
	}
	return false
}

func (e *Error) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// New creates a domain error with default metadata for its code.
func New(code Code, message string) *Error {
	return &Error{
		Code:       code,
		Category:   CategoryOf(code),
		Message:    message,
		Timestamp:  time.Now(),
		Details:    make(map[string]interface{}),
		Context:    make(map[string]string),
		Retryable:  IsRetryableByDefault(code),
		UserFacing: IsUserFacingByDefault(code),
		HTTPStatus: DefaultHTTPStatus(code),
	}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(code Code, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// CategoryOf determines the category for a code.
func CategoryOf(code Code) Category {
	switch code {
	case CodeAlreadyExists, CodeNotFound, CodeIsADirectory, CodeNotADirectory,
		CodeMissingParent, CodeMalformedPath, CodeTooLarge, CodeMountNotFound:
		return CategoryFilesystem
	case CodeSharedLinkNotFound, CodeActionNotAllowed:
		return CategorySharing
	case CodeThumbnailUnavailable, CodeFingerprintAlreadyExists, CodeContentMetadataNotFound:
		return CategoryContent
	case CodeStorageQuotaExceeded, CodeUserNotFound, CodeUserAlreadyExists,
		CodeEmailAlreadyVerified, CodeOTPAlreadySent,
		CodeEmailUpdateAlreadyStarted, CodeEmailUpdateNotStarted:
		return CategoryAccount
	case CodeInvalidCredentials:
		return CategoryAuth
	case CodeSerializationConflict, CodeConnectionFailed, CodeConnectionTimeout,
		CodeNetworkError, CodeOperationTimeout, CodeResourceExhausted, CodeWorkerBusy:
		return CategoryTransient
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault reports whether this code represents a transient
// condition that a retryable atomic block should re-attempt.
func IsRetryableByDefault(code Code) bool {
	switch code {
	case CodeSerializationConflict, CodeConnectionTimeout, CodeConnectionFailed,
		CodeNetworkError, CodeOperationTimeout, CodeResourceExhausted,
		CodeWorkerBusy, CodeInternalError:
		return true
	default:
		return false
	}
}

// IsUserFacingByDefault reports whether the message is safe to show a caller
// verbatim rather than behind a generic "internal error".
func IsUserFacingByDefault(code Code) bool {
	return CategoryOf(code) != CategoryInternal && CategoryOf(code) != CategoryTransient
}

// DefaultHTTPStatus maps a code to its response status class: 400
// malformed, 401/403 auth, 404 missing, 409 conflicting, 500 internal.
func DefaultHTTPStatus(code Code) int {
	switch code {
	case CodeMalformedPath, CodeTooLarge:
		return 400
	case CodeInvalidCredentials:
		return 401
	case CodeActionNotAllowed:
		return 403
	case CodeNotFound, CodeMountNotFound, CodeSharedLinkNotFound, CodeUserNotFound,
		CodeContentMetadataNotFound, CodeEmailUpdateNotStarted:
		return 404
	case CodeAlreadyExists, CodeUserAlreadyExists, CodeFingerprintAlreadyExists,
		CodeEmailAlreadyVerified, CodeOTPAlreadySent, CodeEmailUpdateAlreadyStarted:
		return 409
	case CodeIsADirectory, CodeNotADirectory, CodeMissingParent, CodeThumbnailUnavailable:
		return 422
	case CodeStorageQuotaExceeded, CodeResourceExhausted, CodeWorkerBusy:
		return 429
	default:
		return 500
	}
}

// CaptureStack captures the caller's stack trace, skipping frames in this file.
func CaptureStack(skip int) string {
	const depth = 16
	var pcs [depth]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "errors.go") {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return strings.Join(stack, "\n")
}

func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

func (e *Error) WithStack() *Error {
	e.Stack = CaptureStack(2)
	return e
}

// As reports whether err is (or wraps) an *Error with the given code.
func As(err error, code Code) bool {
	var derr *Error
	return errorsAs(err, &derr) && derr.Code == code
}

// errorsAs is a tiny indirection so this file does not need to import the
// standard errors package under a name that shadows this package's own name
// at call sites that `import "github.com/shelfcloud/core/pkg/errors"`.
func errorsAs(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
