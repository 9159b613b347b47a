package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies business and input failures that are reported to clients.
type Kind string

const (
	KindValidation                 Kind = "validation_error"
	KindInsufficientFunds          Kind = "insufficient_funds"
	KindSelfPurchase               Kind = "self_purchase"
	KindDuplicateActiveEntitlement Kind = "duplicate_active_entitlement"
	KindDuplicateRating            Kind = "duplicate_rating"
	KindNotFound                   Kind = "not_found"
	KindForbidden                  Kind = "forbidden"
	KindUnauthorized               Kind = "unauthorized"
)

// Error is a client facing failure. Fields maps request field names to
// messages, mirroring the field-keyed responses the API returns.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation                 = &Error{Kind: KindValidation}
	ErrInsufficientFunds          = &Error{Kind: KindInsufficientFunds}
	ErrSelfPurchase               = &Error{Kind: KindSelfPurchase}
	ErrDuplicateActiveEntitlement = &Error{Kind: KindDuplicateActiveEntitlement}
	ErrDuplicateRating            = &Error{Kind: KindDuplicateRating}
	ErrNotFound                   = &Error{Kind: KindNotFound}
	ErrForbidden                  = &Error{Kind: KindForbidden}
	ErrUnauthorized               = &Error{Kind: KindUnauthorized}
)

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		return fmt.Sprintf("%s: %s", e.Kind, strings.Join(parts, "; "))
	}
	return string(e.Kind)
}

// Is reports kind equality so errors.Is(err, ErrNotFound) works for any
// not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	return StatusOf(e.Kind)
}

func StatusOf(kind Kind) int {
	switch kind {
	case KindValidation, KindInsufficientFunds, KindSelfPurchase,
		KindDuplicateActiveEntitlement, KindDuplicateRating:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newField(kind Kind, field, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Fields: map[string]string{field: msg}}
}

// Validation builds a validation error for a single field.
func Validation(field, msg string) *Error {
	return newField(KindValidation, field, msg)
}

// ValidationFields builds a validation error covering several fields.
func ValidationFields(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid input", Fields: fields}
}

func InsufficientFunds(field string) *Error {
	return newField(KindInsufficientFunds, field, "Insufficient balance.")
}

func SelfPurchase() *Error {
	return newField(KindSelfPurchase, "license", "You cannot purchase your license.")
}

func DuplicateActiveEntitlement() *Error {
	return newField(KindDuplicateActiveEntitlement, "license", "You already have an active license for this user.")
}

func DuplicateRating() *Error {
	return newField(KindDuplicateRating, "rate", "You have already rated this video.")
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}
