package domain

import (
	"errors"
	"fmt"
)

// Error codes. Each maps to one HTTP status and one message category.
const (
	EINVALID      = "invalid"          // 400
	EUNAUTHORIZED = "unauthorized"     // 401, marketplace session missing or expired
	EPAYMENT      = "payment_required" // 402, payment could not be verified
	EFORBIDDEN    = "forbidden"        // 403
	ENOTFOUND     = "not_found"        // 404
	ECONFLICT     = "conflict"         // 409
	ECANCELED     = "canceled"         // 409, shopper dismissed the payment widget
	EGONE         = "gone"             // 410
	ETOOLARGE     = "too_large"        // 413
	ERATELIMIT    = "rate_limit"       // 429
	EINTERNAL     = "internal"         // 500, details hidden from the shopper
	EUNAVAILABLE  = "unavailable"      // 503, marketplace unreachable or breaker open
)

const internalMessage = "An internal error occurred. Please try again later."

// Error is an application error. Message is safe to show to the shopper;
// Op and Err are for logs.
type Error struct {
	Code    string
	Message string
	Op      string // e.g. "cart.list"
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of the outermost *Error in err's chain,
// EINTERNAL for any other error and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the shopper-facing message. Internal errors and
// foreign errors get a generic message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return internalMessage
}

// ErrorOp returns the operation recorded on err, if any.
func ErrorOp(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

func Errorf(code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code and message to err. It returns nil for a nil err.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// ValidationError carries per-field messages for a form step.
type ValidationError struct {
	Fields  map[string]string
	Op      string
	Message string // optional summary for a toast
}

func (e *ValidationError) Error() string {
	var msg string
	switch {
	case e.Message != "":
		msg = e.Message
	case len(e.Fields) == 1:
		for field, m := range e.Fields {
			msg = field + ": " + m
		}
	default:
		msg = fmt.Sprintf("validation failed for %d fields", len(e.Fields))
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// NewValidationError reports a single invalid field.
func NewValidationError(op, field, message string) error {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func NotFound(op, message string) error {
	return &Error{Code: ENOTFOUND, Op: op, Message: message}
}

func Unauthorized(op, message string) error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

// Canceled reports an action the shopper walked away from. It is not a fault.
func Canceled(op, message string) error {
	return &Error{Code: ECANCELED, Op: op, Message: message}
}

// Internal wraps our own fault. The shopper sees a generic message.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}

// Unavailable wraps a failure to reach the marketplace or gateway.
func Unavailable(err error, op, message string) error {
	return &Error{Code: EUNAVAILABLE, Op: op, Message: message, Err: err}
}
