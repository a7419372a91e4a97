package domain

import (
	"errors"
	"strings"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes via KindOf.
var (
	ErrInstrumentNotFound  = errors.New("instrument_not_found")
	ErrOrderNotFound       = errors.New("order_not_found")
	ErrHoldingNotFound     = errors.New("holding_not_found")
	ErrOrderNotOwned       = errors.New("order_not_owned")
	ErrOrderNotCancellable = errors.New("order_not_cancellable")
	ErrInvalidTransition   = errors.New("invalid_status_transition")
	ErrDuplicateTrade      = errors.New("duplicate_trade")
)

// Violation codes reported inside a ValidationError.
const (
	CodeUserRequired         = "USER_REQUIRED"
	CodeInvalidOrderType     = "INVALID_ORDER_TYPE"
	CodeInvalidOrderStyle    = "INVALID_ORDER_STYLE"
	CodeInvalidQuantity      = "INVALID_QUANTITY"
	CodePriceRequired        = "PRICE_REQUIRED"
	CodeInvalidPrice         = "INVALID_PRICE"
	CodePriceNotAllowed      = "PRICE_NOT_ALLOWED"
	CodeInsufficientQuantity = "INSUFFICIENT_QUANTITY"
	CodeInvalidStatus        = "INVALID_STATUS"
)

// Violation is a single field-level validation failure.
type Violation struct {
	Code    string
	Message string
}

// ValidationError represents a request validation failure. It carries every
// violated constraint, not just the first.
type ValidationError struct {
	Violations []Violation
}

// Add appends a violation.
func (e *ValidationError) Add(code, message string) {
	e.Violations = append(e.Violations, Violation{Code: code, Message: message})
}

// Empty reports whether no violation was recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Violations) == 0
}

// Has reports whether a violation with the given code was recorded.
func (e *ValidationError) Has(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Messages returns the human-readable messages in order.
func (e *ValidationError) Messages() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Message
	}
	return out
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// ErrorKind classifies an error for callers outside the core.
type ErrorKind string

const (
	KindValidation   ErrorKind = "ValidationError"
	KindNotFound     ErrorKind = "NotFound"
	KindUnauthorized ErrorKind = "Unauthorized"
	KindInvalidState ErrorKind = "InvalidState"
	KindInternal     ErrorKind = "InternalError"
)

// KindOf maps err onto one of the error kinds. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.Is(err, ErrInstrumentNotFound),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrHoldingNotFound):
		return KindNotFound
	case errors.Is(err, ErrOrderNotOwned):
		return KindUnauthorized
	case errors.Is(err, ErrOrderNotCancellable),
		errors.Is(err, ErrInvalidTransition):
		return KindInvalidState
	}
	return KindInternal
}
