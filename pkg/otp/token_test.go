package otp

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const rfc4226Base32 = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

// TestGenerate tests the facade with a pinned clock
func TestGenerate(t *testing.T) {
	gen, err := NewGenerator(WithClock(fixedClock(59)))
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		enc    Encoding
		secret string
	}{
		{EncodingBase32, rfc4226Base32},
		{EncodingBase64, "MTIzNDU2Nzg5MDEyMzQ1Njc4OTA="},
	} {
		t.Run(string(tc.enc), func(t *testing.T) {
			token, err := gen.Generate(tc.secret, tc.enc, 30)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if token.String() != "287082" {
				t.Errorf("expected 287082, got %s", token)
			}
			if token.Counter != 1 || token.Attempts != 1 || token.Digits != 6 {
				t.Errorf("unexpected token metadata %+v", token)
			}
		})
	}
}

// TestGenerateDeterministicWithinStep yields the same token anywhere in one step
func TestGenerateDeterministicWithinStep(t *testing.T) {
	base := int64(1700000010) // counter boundary at 1700000010
	var first string
	for offset := int64(0); offset < 30; offset++ {
		gen, err := NewGenerator(WithClock(fixedClock(base + offset)))
		if err != nil {
			t.Fatal(err)
		}
		token, err := gen.Generate(rfc4226Base32, EncodingBase32, 30)
		if err != nil {
			t.Fatal(err)
		}
		if offset == 0 {
			first = token.String()
			continue
		}
		if token.String() != first {
			t.Fatalf("offset %d: expected %s, got %s", offset, first, token)
		}
	}
}

// TestGenerateNextStep advances the counter by one
func TestGenerateNextStep(t *testing.T) {
	now := int64(59)
	clock := ClockFunc(func() time.Time { return time.Unix(now, 0) })
	gen, err := NewGenerator(WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}

	a, err := gen.Generate(rfc4226Base32, EncodingBase32, 30)
	if err != nil {
		t.Fatal(err)
	}
	now += 30
	b, err := gen.Generate(rfc4226Base32, EncodingBase32, 30)
	if err != nil {
		t.Fatal(err)
	}

	if b.Counter != a.Counter+1 {
		t.Errorf("expected counter %d, got %d", a.Counter+1, b.Counter)
	}
	if a.String() != "287082" || b.String() != "359152" {
		t.Errorf("expected 287082 then 359152, got %s then %s", a, b)
	}
}

// TestGenerateShortToken keeps the plain decimal form after exhausting attempts
func TestGenerateShortToken(t *testing.T) {
	gen, err := NewGenerator(WithClock(fixedClock(1111111109)))
	if err != nil {
		t.Fatal(err)
	}

	token, err := gen.Generate(rfc4226Base32, EncodingBase32, 30)
	if err != nil {
		t.Fatal(err)
	}
	if token.String() != "81804" {
		t.Errorf("expected 81804, got %s", token)
	}
	if token.Padded() != "081804" {
		t.Errorf("expected 081804, got %s", token.Padded())
	}
	if token.Attempts != DefaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", DefaultMaxAttempts, token.Attempts)
	}
}

// TestGenerateErrors tests each error kind surfaced by the facade
func TestGenerateErrors(t *testing.T) {
	gen, err := NewGenerator(WithClock(fixedClock(59)))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		secret  string
		enc     Encoding
		step    int
		wantErr error
	}{
		{"malformed base32", "not base32!", EncodingBase32, 30, ErrDecode},
		{"malformed base64", "%%%%", EncodingBase64, 30, ErrDecode},
		{"empty secret", "", EncodingBase32, 30, ErrDecode},
		{"zero step", rfc4226Base32, EncodingBase32, 0, ErrConfiguration},
		{"negative step", rfc4226Base32, EncodingBase32, -30, ErrConfiguration},
		{"unknown encoding", rfc4226Base32, "base58", 30, ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gen.Generate(tt.secret, tt.enc, tt.step)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestPackageGenerate uses the default generator against the system clock
func TestPackageGenerate(t *testing.T) {
	token, err := Generate("JBSWY3DPEHPK3PXP", EncodingBase32, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := token.String()
	if len(s) == 0 || len(s) > 6 || strings.Trim(s, "0123456789") != "" {
		t.Errorf("unexpected token %q", s)
	}
	if token.Attempts < 1 || token.Attempts > DefaultMaxAttempts {
		t.Errorf("attempts %d out of range", token.Attempts)
	}
}

// TestTokenPadded tests zero padding for each length
func TestTokenPadded(t *testing.T) {
	tests := []struct {
		token Token
		want  string
	}{
		{Token{Code: 42, Digits: 6}, "000042"},
		{Token{Code: 42}, "000042"},
		{Token{Code: 42, Digits: 8}, "00000042"},
		{Token{Code: 123456, Digits: 6}, "123456"},
	}

	for _, tt := range tests {
		if got := tt.token.Padded(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
	if got := (Token{Code: 42}).String(); got != "42" {
		t.Errorf("expected 42, got %s", got)
	}
}
