package domain

import "errors"

// Kind classifies an error for the HTTP layer. Every kind except KindInternal
// is operational: its message is safe to show to the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInvalidOrExpiredToken
	KindInvalidSignature
	KindDeliveryFailed
	KindValidation
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidOrExpiredToken:
		return "invalid_or_expired_token"
	case KindInvalidSignature:
		return "invalid_signature"
	case KindDeliveryFailed:
		return "delivery_failed"
	case KindValidation:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrForbidden)
// holds for every forbidden error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnauthenticated       = &Error{Kind: KindUnauthenticated}
	ErrForbidden             = &Error{Kind: KindForbidden}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrInvalidOrExpiredToken = &Error{Kind: KindInvalidOrExpiredToken}
	ErrInvalidSignature      = &Error{Kind: KindInvalidSignature}
	ErrDeliveryFailed        = &Error{Kind: KindDeliveryFailed}
	ErrValidation            = &Error{Kind: KindValidation}
	ErrConflict              = &Error{Kind: KindConflict}
)

func Unauthenticated(msg string) error { return &Error{Kind: KindUnauthenticated, Message: msg} }
func Forbidden(msg string) error       { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) error        { return &Error{Kind: KindNotFound, Message: msg} }
func Validation(msg string) error      { return &Error{Kind: KindValidation, Message: msg} }
func Conflict(msg string) error        { return &Error{Kind: KindConflict, Message: msg} }

func InvalidOrExpiredToken(msg string) error {
	return &Error{Kind: KindInvalidOrExpiredToken, Message: msg}
}

func InvalidSignature(err error) error {
	return &Error{Kind: KindInvalidSignature, Message: "invalid webhook signature", Err: err}
}

func DeliveryFailed(msg string, err error) error {
	return &Error{Kind: KindDeliveryFailed, Message: msg, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// PublicMessage is the text shown to a caller for an operational error.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return KindOf(err).String()
}
