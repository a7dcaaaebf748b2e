package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pharmacy/m/domain"
	"pharmacy/m/internal/store"
)

// Code identifies a business-rule failure of a sale operation.
type Code string

const (
	CodeCashierNotFound      Code = "CashierNotFound"
	CodeEmptyCart            Code = "EmptyCart"
	CodeInvalidQuantity      Code = "InvalidQuantity"
	CodeDrugNotFound         Code = "DrugNotFound"
	CodeInsufficientQuantity Code = "InsufficientQuantity"
	CodeSaleNotFound         Code = "SaleNotFound"
)

// Error is a business-rule failure. Two Errors match under errors.Is when
// their codes are equal, so callers can test against the sentinels below
// while the returned value carries a message naming the offending record.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrCashierNotFound      = &Error{Code: CodeCashierNotFound, Message: "cashier not found"}
	ErrEmptyCart            = &Error{Code: CodeEmptyCart, Message: "sale must contain at least one item"}
	ErrInvalidQuantity      = &Error{Code: CodeInvalidQuantity, Message: "quantity must be a positive integer"}
	ErrDrugNotFound         = &Error{Code: CodeDrugNotFound, Message: "drug not found"}
	ErrInsufficientQuantity = &Error{Code: CodeInsufficientQuantity, Message: "insufficient drug quantity"}
	ErrSaleNotFound         = &Error{Code: CodeSaleNotFound, Message: "sale not found"}
)

func cashierNotFound(id uuid.UUID) error {
	return &Error{Code: CodeCashierNotFound, Message: fmt.Sprintf("cashier with id '%s' not found", id)}
}

func invalidQuantity(line int, qty int64) error {
	return &Error{Code: CodeInvalidQuantity, Message: fmt.Sprintf("item %d: quantity must be a positive integer, got %d", line+1, qty)}
}

func drugNotFound(id uuid.UUID) error {
	return &Error{Code: CodeDrugNotFound, Message: fmt.Sprintf("drug with id '%s' not found", id)}
}

func insufficientQuantity(d domain.Drug, requested, available int64) error {
	return &Error{
		Code:    CodeInsufficientQuantity,
		Message: fmt.Sprintf("insufficient quantity for drug '%s': requested %d, available %d", d.Name, requested, available),
	}
}

func saleNotFound(id uuid.UUID) error {
	return &Error{Code: CodeSaleNotFound, Message: fmt.Sprintf("sale with id '%s' not found", id)}
}

// Kind groups errors by how a caller should report them.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
)

// KindOf classifies err. Errors not produced by this package are Internal
// unless they are store conflicts.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case CodeCashierNotFound, CodeDrugNotFound, CodeSaleNotFound:
			return KindNotFound
		default:
			return KindValidation
		}
	}
	if errors.Is(err, store.ErrConflict) {
		return KindConflict
	}
	return KindInternal
}

// CodeOf returns a short label for err suitable for metrics.
func CodeOf(err error) string {
	var e *Error
	switch {
	case errors.As(err, &e):
		return string(e.Code)
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, store.ErrConflict):
		return "Conflict"
	}
	return "Internal"
}
