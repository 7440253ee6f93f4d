package otp

import (
	"fmt"
	"strconv"
)

// Token is a one-time password produced for a single authentication attempt.
type Token struct {
	// Code is the numeric value, below 10^Digits.
	Code uint32
	// Attempts is the number of derivations spent producing Code.
	Attempts int
	// Counter is the time-step counter Code was derived from.
	Counter uint64
	// Digits is the configured code length.
	Digits int
}

// String returns the code in plain decimal form. Codes below the minimum
// digit bound are not zero padded; use Padded for that.
func (t Token) String() string {
	return strconv.FormatUint(uint64(t.Code), 10)
}

// Padded returns the code zero padded to Digits.
func (t Token) Padded() string {
	digits := t.Digits
	if digits == 0 {
		digits = DefaultDigits
	}
	return fmt.Sprintf("%0*d", digits, t.Code)
}

// Generate decodes secretEncoded, derives a TOTP token for the current time
// step and returns it. The decoded key is zeroed before Generate returns.
func (g *Generator) Generate(secretEncoded string, enc Encoding, stepSeconds int) (Token, error) {
	if err := validateStep(stepSeconds); err != nil {
		return Token{}, err
	}

	secret, err := DecodeSecret(secretEncoded, enc)
	if err != nil {
		return Token{}, err
	}
	defer clear(secret)

	code, attempts, counter, err := g.totp(secret, stepSeconds)
	if err != nil {
		return Token{}, err
	}
	return Token{Code: code, Attempts: attempts, Counter: counter, Digits: g.Digits()}, nil
}

var defaultGenerator = &Generator{
	clock:       SystemClock{},
	minDigits:   DefaultDigits,
	maxAttempts: DefaultMaxAttempts,
}

// Generate derives a six digit HMAC-SHA1 token with the default policy.
func Generate(secretEncoded string, enc Encoding, stepSeconds int) (Token, error) {
	return defaultGenerator.Generate(secretEncoded, enc, stepSeconds)
}
