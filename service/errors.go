package service

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a Coordinator failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidID
	KindNotFound
	KindInsufficientStock
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidID:
		return "invalid_id"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	}
	return "internal"
}

// Entities named by not-found errors.
const (
	EntityProduct = "product"
	EntityCart    = "cart"
)

// Error is returned by every Coordinator operation. Description is safe to show to a client;
// Err holds the underlying cause and is never shown.
type Error struct {
	Kind        Kind
	Entity      string
	Missing     []string
	Description string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, and of the same entity when the target names one,
// so errors.Is(err, ErrNotFound) holds for any not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Entity == "" || t.Entity == e.Entity)
}

var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidID         = &Error{Kind: KindInvalidID}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrInternal          = &Error{Kind: KindInternal}
)

func NewValidationError(missing ...string) *Error {
	desc := fmt.Sprintf("The %s field is mandatory.", strings.Join(missing, ", "))
	if len(missing) > 1 {
		desc = fmt.Sprintf("The %s fields are mandatory.", strings.Join(missing, ", "))
	}
	return &Error{Kind: KindValidation, Missing: missing, Description: desc}
}

// NewInvalidFieldError reports a field that is present but holds an unacceptable value.
func NewInvalidFieldError(field, description string) *Error {
	return &Error{Kind: KindValidation, Description: description, Err: fmt.Errorf("invalid %s", field)}
}

func NewInvalidIDError(raw string) *Error {
	return &Error{Kind: KindInvalidID, Description: "Invalid ID", Err: fmt.Errorf("%q is not an object id", raw)}
}

func NewNotFoundError(entity string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Description: fmt.Sprintf("The specified %s does not exist", entity)}
}

func NewInsufficientStockError() *Error {
	return &Error{Kind: KindInsufficientStock, Entity: EntityProduct, Description: "Not enough stock"}
}

func NewInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Description: "Internal store error", Err: err}
}

// KindOf returns the kind of err; errors that did not come from the Coordinator are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Describe returns the client safe description of err.
func Describe(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Description
	}
	return "Internal store error"
}
