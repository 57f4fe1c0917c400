package keylist

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSupported returned when implementation of specific function is not supported
	ErrNotSupported = errors.New("implementation not supported")
	// ErrNotFound is returned by Reader.Get when no blob is stored for the identity
	ErrNotFound = errors.New("no blob found for identity")
	// ErrItemNotFound is returned to callers that require an owner to be present
	ErrItemNotFound = errors.New("owner not found")
	// ErrEncodingFailed is returned when a Record cannot be serialized or sealed
	ErrEncodingFailed = errors.New("encoding failed")
	// ErrDecodingFailed is returned when a blob cannot be opened or parsed as a Record
	ErrDecodingFailed = errors.New("decoding failed")
	// ErrBackendRead is matched by backend failures during Get
	ErrBackendRead = errors.New("backend read failed")
	// ErrBackendWrite is matched by backend failures during Put
	ErrBackendWrite = errors.New("backend write failed")
	// ErrBackendDelete is matched by backend failures during Delete
	ErrBackendDelete = errors.New("backend delete failed")
	// ErrInvalidOwner is returned when an empty owner key is given
	ErrInvalidOwner = errors.New("owner key cannot be empty")
	// ErrInvalidIdentity is returned when the service or account is empty
	ErrInvalidIdentity = errors.New("identity service and account cannot be empty")
	// ErrNilBackend is returned when a Store is built without a backend
	ErrNilBackend = errors.New("backend cannot be nil")
)

// Backend operations reported in a BackendError.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpDelete = "delete"
)

// BackendError reports a failed backend call. The backend's own error is
// kept unchanged and available through Unwrap.
type BackendError struct {
	Op       string
	Backend  string
	Identity Identity
	// Code is the backend specific status code, empty when the backend did
	// not report one.
	Code string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s of %s failed with code %s: %v",
			e.Backend, e.Op, e.Identity, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s of %s failed: %v", e.Backend, e.Op, e.Identity, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the failed operation.
func (e *BackendError) Is(target error) bool {
	switch target {
	case ErrBackendRead:
		return e.Op == OpRead
	case ErrBackendWrite:
		return e.Op == OpWrite
	case ErrBackendDelete:
		return e.Op == OpDelete
	}
	return false
}

// StatusError lets a backend attach its status code to an error.
type StatusError struct {
	Status string
	Err    error
}

// NewStatusError returns err annotated with a backend status code.
func NewStatusError(status interface{}, err error) error {
	if err == nil {
		return nil
	}
	return &StatusError{Status: fmt.Sprint(status), Err: err}
}

func (e *StatusError) Error() string {
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Code returns the status code.
func (e *StatusError) Code() string {
	return e.Status
}

type coder interface {
	Code() string
}

// CodeOf returns the status code carried by err, or an empty string.
func CodeOf(err error) string {
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

func newBackendError(op string, b Reader, id Identity, err error) error {
	return &BackendError{
		Op:       op,
		Backend:  b.String(),
		Identity: id,
		Code:     CodeOf(err),
		Err:      err,
	}
}
