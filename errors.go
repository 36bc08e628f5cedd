package dlms

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an error observable at the core boundary.
type ErrorKind uint8

const (
	// KindConnection covers transport failures, EOF and failed opens.
	KindConnection ErrorKind = iota
	// KindTimeout means a deadline elapsed while awaiting bytes or a response.
	KindTimeout
	// KindFrameInvalid covers HDLC FCS/HCS mismatch, bad length, flag misaligned.
	KindFrameInvalid
	// KindAsn1Encoding is a BER encode failure.
	KindAsn1Encoding
	// KindAsn1Decoding is a BER decode failure.
	KindAsn1Decoding
	// KindInvalidData is a semantic violation of a decoded value.
	KindInvalidData
	// KindSecurity covers auth-tag mismatch, replay, key-size mismatch, unwrap failure.
	KindSecurity
	// KindAccessDenied means the server refused the operation.
	KindAccessDenied
	// KindProtocol means the peer violated the protocol.
	KindProtocol
)

var kindNames = map[ErrorKind]string{
	KindConnection:   "connection",
	KindTimeout:      "timeout",
	KindFrameInvalid: "frame invalid",
	KindAsn1Encoding: "asn1 encoding",
	KindAsn1Decoding: "asn1 decoding",
	KindInvalidData:  "invalid data",
	KindSecurity:     "security",
	KindAccessDenied: "access denied",
	KindProtocol:     "protocol",
}

func (k ErrorKind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return fmt.Sprintf("unknown kind %d", uint8(k))
	}
	return name
}

// Error is the error type returned by every layer of the stack.
// It carries the kind plus a short textual context, and optionally
// wraps an underlying error (typically an I/O error).
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Msg == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error of the given kind with a short context message.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf builds an Error of the given kind with a formatted context message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind and context to an underlying error.
func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether err is (or wraps) an Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind == kind
	}
	return false
}
