package otp

import (
	"errors"
	"fmt"
)

// Kind classifies failures produced by this package.
type Kind int

const (
	// KindDecode indicates a malformed text-encoded secret.
	KindDecode Kind = iota + 1
	// KindConfiguration indicates an invalid step size, encoding or other setting.
	KindConfiguration
	// KindInvalidKey indicates secret bytes that are empty or rejected by HMAC.
	KindInvalidKey
	// KindUnsupportedAlgorithm indicates the hash primitive is not available in this binary.
	KindUnsupportedAlgorithm
	// KindInvalidCode indicates a submitted code did not verify.
	KindInvalidCode
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindConfiguration:
		return "configuration"
	case KindInvalidKey:
		return "invalid key"
	case KindUnsupportedAlgorithm:
		return "unsupported algorithm"
	case KindInvalidCode:
		return "invalid code"
	default:
		return "unknown"
	}
}

// Common errors returned by the OTP package. Every *Error matches exactly one
// of the kind sentinels with errors.Is.
var (
	// ErrDecode indicates the encoded secret is not valid in the declared alphabet.
	ErrDecode = errors.New("otp: malformed secret encoding")
	// ErrConfiguration indicates a configuration value is invalid.
	ErrConfiguration = errors.New("otp: invalid configuration")
	// ErrInvalidKey indicates the secret cannot be used as an HMAC key.
	ErrInvalidKey = errors.New("otp: invalid key")
	// ErrUnsupportedAlgorithm indicates the HMAC hash is unavailable.
	ErrUnsupportedAlgorithm = errors.New("otp: unsupported algorithm")
	// ErrInvalidCode indicates the provided OTP code is invalid.
	ErrInvalidCode = errors.New("otp: invalid code")
	// ErrNilAuthenticator indicates a nil authenticator was used.
	ErrNilAuthenticator = errors.New("otp: authenticator is nil")
)

var kindSentinels = map[Kind]error{
	KindDecode:               ErrDecode,
	KindConfiguration:        ErrConfiguration,
	KindInvalidKey:           ErrInvalidKey,
	KindUnsupportedAlgorithm: ErrUnsupportedAlgorithm,
	KindInvalidCode:          ErrInvalidCode,
}

// Error is returned by every fallible operation in the package. The lower
// level fault, when there is one, is kept in Err.
type Error struct {
	Kind Kind
	// Op names the operation that failed, e.g. "decode" or "hotp".
	Op  string
	Msg string
	Err error
}

func (e *Error) Error() string {
	s := "otp: " + e.Op + ": " + e.Kind.String()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// KindOf extracts the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func newError(kind Kind, op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Err: cause}
}
