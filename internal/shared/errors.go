package shared

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness constraint rejected the write.
	ErrDuplicate = errors.New("duplicate entry")
)

// Kind classifies a failure for the HTTP boundary.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindDependency
)

// Rejection reasons carried by classified errors.
const (
	ReasonNoToken         = "no-token"
	ReasonInvalidToken    = "invalid-token"
	ReasonSubjectGone     = "subject-gone"
	ReasonPasswordChanged = "password-changed"
	ReasonForbidden       = "forbidden"
	ReasonBadCredentials  = "bad-credentials"
	ReasonWrongPassword   = "wrong-password"
	ReasonDuplicate       = "duplicate"
	ReasonInvalidInput    = "invalid-input"
	ReasonPasswordField   = "password-field"
	ReasonNotFound        = "not-found"
	ReasonResetToken      = "reset-token"
	ReasonDelivery        = "delivery-failed"
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Operational errors are expected and their
// Message is safe to show to the caller; everything else is reported generically.
type Error struct {
	Kind        Kind
	Reason      string
	Message     string
	Operational bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another classified error with the same kind and reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Reason == "" {
		return false
	}
	return t.Kind == e.Kind && t.Reason == e.Reason
}

// Validation builds a 400 error.
func Validation(reason, message string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: message, Operational: true}
}

// Authentication builds a 401 error.
func Authentication(reason, message string) *Error {
	return &Error{Kind: KindAuthentication, Reason: reason, Message: message, Operational: true}
}

// Authorization builds a 403 error.
func Authorization(reason, message string) *Error {
	return &Error{Kind: KindAuthorization, Reason: reason, Message: message, Operational: true}
}

// NotFound builds a 404 error.
func NotFound(reason, message string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: message, Operational: true}
}

// Dependency builds a 500 error for a failed collaborator. The message is
// user facing, the cause is kept for logs only.
func Dependency(reason, message string, cause error) *Error {
	return &Error{Kind: KindDependency, Reason: reason, Message: message, Operational: true, Err: cause}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: cause}
}

// KindOf reports the kind of err, KindInternal when unclassified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// ReasonOf reports the rejection reason of err, empty when unclassified.
func ReasonOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}
