// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindInvalidStateTransition ErrorKind = "INVALID_STATE_TRANSITION"
	KindInsufficientStock      ErrorKind = "INSUFFICIENT_STOCK"
	KindInvalidGiftQuota       ErrorKind = "INVALID_GIFT_QUOTA"
	KindInvalidPromoQuantity   ErrorKind = "INVALID_PROMO_QUANTITY"
	KindMissingPrice           ErrorKind = "MISSING_PRICE"
	KindAmountMismatch         ErrorKind = "AMOUNT_MISMATCH"
	KindConcurrentUpdate       ErrorKind = "CONCURRENT_UPDATE"
	KindValidation             ErrorKind = "VALIDATION"
	KindRecruiterChain         ErrorKind = "RECRUITER_CHAIN"
)

// DomainError is a recoverable business-rule failure. CurrentState is set on
// state transition errors so callers can see where the resource actually is.
type DomainError struct {
	Kind         ErrorKind
	Message      string
	CurrentState string
	Details      map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.CurrentState != "" {
		return fmt.Sprintf("%s: %s (current state %s)", e.Kind, e.Message, e.CurrentState)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any DomainError of the same kind so the sentinels below work with errors.Is.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

var (
	ErrNotFound               = &DomainError{Kind: KindNotFound, Message: "resource not found"}
	ErrInvalidStateTransition = &DomainError{Kind: KindInvalidStateTransition, Message: "invalid state transition"}
	ErrInsufficientStock      = &DomainError{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrInvalidGiftQuota       = &DomainError{Kind: KindInvalidGiftQuota, Message: "gift quota exceeded"}
	ErrInvalidPromoQuantity   = &DomainError{Kind: KindInvalidPromoQuantity, Message: "promo quantity must be even"}
	ErrMissingPrice           = &DomainError{Kind: KindMissingPrice, Message: "unit price required"}
	ErrAmountMismatch         = &DomainError{Kind: KindAmountMismatch, Message: "received amount below expected"}
	ErrConcurrentUpdate       = &DomainError{Kind: KindConcurrentUpdate, Message: "resource modified concurrently"}
	ErrValidation             = &DomainError{Kind: KindValidation, Message: "validation failed"}
	ErrRecruiterChain         = &DomainError{Kind: KindRecruiterChain, Message: "recruiter chain invalid"}
)

func notFound(resource string, id fmt.Stringer) *DomainError {
	return &DomainError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
		Details: map[string]interface{}{"resource": resource, "id": id.String()},
	}
}

func invalidTransition(message string, current interface{}) *DomainError {
	return &DomainError{
		Kind:         KindInvalidStateTransition,
		Message:      message,
		CurrentState: fmt.Sprint(current),
	}
}

func validationError(err error) *DomainError {
	return &DomainError{Kind: KindValidation, Message: err.Error()}
}

// KindOf returns the domain kind of err, or "" for infrastructure errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
