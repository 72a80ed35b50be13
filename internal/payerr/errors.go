package payerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can branch without type switches.
type Kind int

const (
	KindUnknown Kind = iota
	KindGateway
	KindPersistence
	KindValidation
	KindNotFound
	// KindConflict marks a request racing another one for the same transaction.
	KindConflict
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindGateway:
		return "gateway_error"
	case KindPersistence:
		return "persistence_error"
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown_error"
	}
}

// Error is the single error value surfaced by the payment core.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// FundsMoved is set when the gateway accepted the operation but local
	// bookkeeping failed afterwards. Callers must not blindly retry.
	FundsMoved bool
	Fields     map[string]string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// With attaches identifying context, e.g. transaction ids.
func (e *Error) With(key, value string) *Error {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[key] = value
	return e
}

func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Gateway(op string, err error) *Error {
	return New(KindGateway, op, "error communicating with gateway", err)
}

func Persistence(op, message string, err error) *Error {
	return New(KindPersistence, op, message, err)
}

// FundsMovedPersistence reports a store failure after a successful gateway call.
func FundsMovedPersistence(op string, gatewayRef string, err error) *Error {
	e := New(KindPersistence, op, "payment went through, but recording it failed", err)
	e.FundsMoved = true
	if gatewayRef != "" {
		e.With("gateway_transaction_id", gatewayRef)
	}
	return e
}

func Validation(op, message string) *Error {
	return New(KindValidation, op, message, nil)
}

func NotFound(op, message string) *Error {
	return New(KindNotFound, op, message, nil)
}

func Conflict(op, message string) *Error {
	return New(KindConflict, op, message, nil)
}

// KindOf returns the kind of the first *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsFundsMoved reports whether err signals a completed gateway operation whose
// bookkeeping failed.
func IsFundsMoved(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.FundsMoved
	}
	return false
}

// Wrapf keeps an existing *Error intact and otherwise wraps err into kind.
func Wrapf(kind Kind, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return New(kind, op, fmt.Sprintf(format, args...), err)
}
