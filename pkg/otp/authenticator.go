package otp

import (
	"context"
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/pquerna/otp/totp"
)

// Type represents the OTP algorithm type.
type Type string

const (
	// TypeTOTP represents Time-based OTP (RFC 6238).
	TypeTOTP Type = "totp"
	// TypeHOTP represents Counter-based OTP (RFC 4226).
	TypeHOTP Type = "hotp"
)

// Config holds OTP authenticator configuration.
type Config struct {
	// Type specifies the OTP type (TOTP or HOTP).
	Type Type
	// Secret is the encoded shared secret key (required).
	Secret string
	// Encoding is the text encoding of Secret.
	// Default: base32
	Encoding Encoding
	// Digits specifies the number of digits in the OTP code (6, 7, or 8).
	// Default: 6
	Digits uint
	// Period specifies the time step in seconds for TOTP.
	// Default: 30
	Period uint
	// Counter specifies the counter value checked by Authenticate for HOTP.
	Counter uint64
	// Algorithm specifies the hash algorithm to use.
	// Default: SHA1
	Algorithm Algorithm
	// Skew specifies the number of time periods to check before and after
	// the current time for TOTP validation (tolerance for clock skew).
	// Zero accepts only the current period.
	Skew uint
}

// validate checks that the configuration is valid.
func (c Config) validate() error {
	if c.Type != TypeTOTP && c.Type != TypeHOTP {
		return fmt.Errorf("%w: type must be 'totp' or 'hotp'", ErrConfiguration)
	}

	if strings.TrimSpace(c.Secret) == "" {
		return fmt.Errorf("%w: secret must not be empty", ErrConfiguration)
	}

	enc := c.Encoding
	if enc == "" {
		enc = EncodingBase32
	}
	raw, err := DecodeSecret(c.Secret, enc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	clear(raw)

	if c.Digits != 0 && c.Digits != 6 && c.Digits != 7 && c.Digits != 8 {
		return fmt.Errorf("%w: digits must be 6, 7, or 8", ErrConfiguration)
	}

	if c.Algorithm != "" && c.Algorithm != AlgorithmSHA1 &&
		c.Algorithm != AlgorithmSHA256 && c.Algorithm != AlgorithmSHA512 {
		return fmt.Errorf("%w: algorithm must be SHA1, SHA256, or SHA512", ErrConfiguration)
	}

	return nil
}

// Authenticator generates and validates OTP codes for one shared secret.
// It is safe for concurrent use.
type Authenticator struct {
	cfg       Config
	gen       *Generator
	otpAlgo   otp.Algorithm
	otpDigits otp.Digits
}

// NewAuthenticator creates a new OTP authenticator. Generator options such as
// WithClock and WithMaxAttempts apply to Generate and to TOTP validation time.
func NewAuthenticator(cfg Config, opts ...Option) (*Authenticator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Encoding == "" {
		cfg.Encoding = EncodingBase32
	}
	if cfg.Digits == 0 {
		cfg.Digits = DefaultDigits
	}
	if cfg.Period == 0 {
		cfg.Period = DefaultStepSeconds
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmSHA1
	}

	var otpAlgo otp.Algorithm
	switch cfg.Algorithm {
	case AlgorithmSHA1:
		otpAlgo = otp.AlgorithmSHA1
	case AlgorithmSHA256:
		otpAlgo = otp.AlgorithmSHA256
	case AlgorithmSHA512:
		otpAlgo = otp.AlgorithmSHA512
	}

	genOpts := append([]Option{WithAlgorithm(cfg.Algorithm), WithDigits(int(cfg.Digits))}, opts...)
	gen, err := NewGenerator(genOpts...)
	if err != nil {
		return nil, err
	}

	return &Authenticator{
		cfg:       cfg,
		gen:       gen,
		otpAlgo:   otpAlgo,
		otpDigits: otp.Digits(cfg.Digits),
	}, nil
}

// Authenticate validates an OTP code.
// For TOTP, it validates against the current time with skew tolerance.
// For HOTP, it validates against the configured counter value.
func (a *Authenticator) Authenticate(ctx context.Context, code string) error {
	if a == nil {
		return ErrNilAuthenticator
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	code, err := a.normalize(code)
	if err != nil {
		return err
	}

	if a.cfg.Type == TypeHOTP {
		return a.validateHOTP(code, a.cfg.Counter)
	}

	secret, err := a.base32Secret()
	if err != nil {
		return err
	}
	valid, err := totp.ValidateCustom(code, secret, a.gen.clock.Now().UTC(),
		totp.ValidateOpts{
			Period:    a.cfg.Period,
			Skew:      a.cfg.Skew,
			Digits:    a.otpDigits,
			Algorithm: a.otpAlgo,
		})
	if err != nil {
		return fmt.Errorf("%w: validation failed: %v", ErrInvalidCode, err)
	}
	if !valid {
		return ErrInvalidCode
	}
	return nil
}

// ValidateCounter validates an HOTP code and returns the new counter value.
// This method is only valid for HOTP authenticators.
// The returned counter should be stored and used for the next validation.
func (a *Authenticator) ValidateCounter(ctx context.Context, code string, counter uint64) (uint64, error) {
	if a == nil {
		return 0, ErrNilAuthenticator
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if a.cfg.Type != TypeHOTP {
		return 0, fmt.Errorf("%w: ValidateCounter is only valid for HOTP", ErrConfiguration)
	}

	code, err := a.normalize(code)
	if err != nil {
		return 0, err
	}

	if err := a.validateHOTP(code, counter); err != nil {
		return 0, err
	}
	return counter + 1, nil
}

// Generate generates an OTP token.
// For TOTP, it generates the token for the current time step with the
// minimum digit policy applied.
// For HOTP, a counter value must be provided.
func (a *Authenticator) Generate(counter ...uint64) (Token, error) {
	if a == nil {
		return Token{}, ErrNilAuthenticator
	}

	if a.cfg.Type == TypeTOTP {
		return a.gen.Generate(a.cfg.Secret, a.cfg.Encoding, int(a.cfg.Period))
	}

	if len(counter) == 0 {
		return Token{}, fmt.Errorf("%w: counter required for HOTP generation", ErrConfiguration)
	}

	secret, err := DecodeSecret(a.cfg.Secret, a.cfg.Encoding)
	if err != nil {
		return Token{}, err
	}
	defer clear(secret)

	code, err := a.gen.engine.HOTP(secret, counter[0])
	if err != nil {
		return Token{}, err
	}
	return Token{Code: code, Attempts: 1, Counter: counter[0], Digits: a.gen.Digits()}, nil
}

func (a *Authenticator) validateHOTP(code string, counter uint64) error {
	secret, err := a.base32Secret()
	if err != nil {
		return err
	}
	valid, err := hotp.ValidateCustom(code, counter, secret,
		hotp.ValidateOpts{
			Digits:    a.otpDigits,
			Algorithm: a.otpAlgo,
		})
	if err != nil {
		return fmt.Errorf("%w: validation failed: %v", ErrInvalidCode, err)
	}
	if !valid {
		return ErrInvalidCode
	}
	return nil
}

// normalize trims the submitted code and restores leading zeros dropped by
// Token.String.
func (a *Authenticator) normalize(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: code must not be empty", ErrInvalidCode)
	}
	digits := int(a.cfg.Digits)
	if len(code) > digits {
		return "", fmt.Errorf("%w: code longer than %d digits", ErrInvalidCode, digits)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: code must be numeric", ErrInvalidCode)
		}
	}
	return strings.Repeat("0", digits-len(code)) + code, nil
}

// base32Secret re-encodes the configured secret as canonical base32, the
// only form pquerna/otp accepts.
func (a *Authenticator) base32Secret() (string, error) {
	raw, err := DecodeSecret(a.cfg.Secret, a.cfg.Encoding)
	if err != nil {
		return "", err
	}
	defer clear(raw)
	return EncodeSecret(raw, EncodingBase32)
}
