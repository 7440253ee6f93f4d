package otp

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestErrorIs maps each kind onto exactly one sentinel
func TestErrorIs(t *testing.T) {
	sentinels := []error{ErrDecode, ErrConfiguration, ErrInvalidKey, ErrUnsupportedAlgorithm, ErrInvalidCode}

	for kind, sentinel := range kindSentinels {
		err := fmt.Errorf("wrapped: %w", &Error{Kind: kind, Op: "test"})
		for _, other := range sentinels {
			if got := errors.Is(err, other); got != (other == sentinel) {
				t.Errorf("kind %s: errors.Is(%v) = %v", kind, other, got)
			}
		}
		if got, ok := KindOf(err); !ok || got != kind {
			t.Errorf("KindOf: expected %s, got %s", kind, got)
		}
	}
}

// TestErrorUnwrap keeps the lower level cause reachable
func TestErrorUnwrap(t *testing.T) {
	_, err := DecodeSecret("!!!!", EncodingBase64)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Err == nil {
		t.Fatal("expected wrapped cause")
	}
	if errors.Unwrap(err) != e.Err {
		t.Error("Unwrap should return the cause")
	}
	if !strings.HasPrefix(err.Error(), "otp: decode: decode:") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

// TestKindOfForeignError reports false for errors outside the package
func TestKindOfForeignError(t *testing.T) {
	if _, ok := KindOf(errors.New("boom")); ok {
		t.Error("expected ok=false")
	}
	if Kind(99).String() != "unknown" {
		t.Error("expected unknown kind string")
	}
}
