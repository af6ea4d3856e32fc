// Package apperr is the failure taxonomy of the engine. Every error that leaves
// a component carries a Kind so callers can decide between skip, abort and retry
// without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnknown         Kind = "unknown"
	KindDataUnavailable Kind = "data_unavailable"
	KindSizing          Kind = "sizing"
	KindSafetyRejection Kind = "safety_rejection"
	KindOrderRejected   Kind = "order_rejected"
	KindMarginRejected  Kind = "margin_rejected"
	KindAccountData     Kind = "account_data"
	KindStorage         Kind = "storage"
	KindReconcile       Kind = "reconcile"
	KindConfig          Kind = "config"
)

type Error struct {
	Kind   Kind
	Op     string
	Symbol string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Symbol != "" {
		msg += " [" + e.Symbol + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, apperr.MarginRejected) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Symbol == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	DataUnavailable = &Error{Kind: KindDataUnavailable}
	Sizing          = &Error{Kind: KindSizing}
	SafetyRejection = &Error{Kind: KindSafetyRejection}
	OrderRejected   = &Error{Kind: KindOrderRejected}
	MarginRejected  = &Error{Kind: KindMarginRejected}
	AccountData     = &Error{Kind: KindAccountData}
	Storage         = &Error{Kind: KindStorage}
	Reconcile       = &Error{Kind: KindReconcile}
)

func New(kind Kind, op, symbol string, err error) *Error {
	return &Error{Kind: kind, Op: op, Symbol: symbol, Err: err}
}

func Newf(kind Kind, op, symbol, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Symbol: symbol, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsRetryable: everything except a rejected trade decision is worth another cycle.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindSizing, KindSafetyRejection, KindConfig:
		return false
	case "":
		return false
	}
	return true
}

// IsOrderFailure covers both order rejection kinds.
func IsOrderFailure(err error) bool {
	k := KindOf(err)
	return k == KindOrderRejected || k == KindMarginRejected
}
