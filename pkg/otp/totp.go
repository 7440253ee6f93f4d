package otp

// Default generation policy.
const (
	// DefaultStepSeconds is the common TOTP time step.
	DefaultStepSeconds = 30
	// DefaultMaxAttempts bounds the derivations spent looking for a full-length code.
	DefaultMaxAttempts = 5
)

// Generator derives TOTP codes and biases them toward full-length values.
// It is immutable after construction and safe for concurrent use.
type Generator struct {
	clock       Clock
	engine      Engine
	minDigits   int
	maxAttempts int
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the time source read on every derivation attempt.
func WithClock(c Clock) Option {
	return func(g *Generator) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithAlgorithm selects the HMAC hash.
func WithAlgorithm(a Algorithm) Option {
	return func(g *Generator) {
		g.engine.Algorithm = a
	}
}

// WithDigits sets the code length (6, 7, or 8).
func WithDigits(n int) Option {
	return func(g *Generator) {
		g.engine.Digits = n
	}
}

// WithMinDigits sets how many printed digits a code needs to be accepted
// without another attempt. Zero means the code length.
func WithMinDigits(n int) Option {
	return func(g *Generator) {
		g.minDigits = n
	}
}

// WithMaxAttempts bounds the number of derivations per call.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		g.maxAttempts = n
	}
}

// NewGenerator builds a Generator. Defaults: system clock, HMAC-SHA1, six
// digits, six minimum digits, five attempts.
func NewGenerator(opts ...Option) (*Generator, error) {
	g := &Generator{
		clock:       SystemClock{},
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if err := g.engine.validate(); err != nil {
		return nil, err
	}
	if g.minDigits == 0 {
		g.minDigits = g.engine.digits()
	}
	if g.minDigits < 1 || g.minDigits > g.engine.digits() {
		return nil, newError(KindConfiguration, "generator", nil, "min digits must be between 1 and %d, got %d", g.engine.digits(), g.minDigits)
	}
	if g.maxAttempts < 1 {
		return nil, newError(KindConfiguration, "generator", nil, "max attempts must be at least 1, got %d", g.maxAttempts)
	}
	return g, nil
}

// Digits returns the configured code length.
func (g *Generator) Digits() int { return g.engine.digits() }

// MinDigits returns the printed length a code needs to stop retrying.
func (g *Generator) MinDigits() int { return g.minDigits }

// TOTP derives a code for the current time step. If the code would print
// with fewer than the minimum digits, the counter is read from the clock
// again and the code re-derived, up to the attempt limit. When every attempt
// is short the last code is returned without error.
func (g *Generator) TOTP(secret []byte, stepSeconds int) (code uint32, attempts int, err error) {
	code, attempts, _, err = g.totp(secret, stepSeconds)
	return code, attempts, err
}

func (g *Generator) totp(secret []byte, stepSeconds int) (code uint32, attempts int, counter uint64, err error) {
	if err := validateStep(stepSeconds); err != nil {
		return 0, 0, 0, err
	}

	for attempts = 1; attempts <= g.maxAttempts; attempts++ {
		counter, err = CurrentCounter(g.clock, stepSeconds)
		if err != nil {
			return 0, attempts, 0, err
		}
		code, err = g.engine.HOTP(secret, counter)
		if err != nil {
			return 0, attempts, counter, err
		}
		if HasMinimumDigits(code, g.minDigits) {
			return code, attempts, counter, nil
		}
	}
	return code, g.maxAttempts, counter, nil
}

// HasMinimumDigits reports whether code prints with at least digits decimal
// digits without zero padding, i.e. code*10/10^digits > 0.
func HasMinimumDigits(code uint32, digits int) bool {
	if digits <= 1 {
		return true
	}
	return uint64(code)*10/uint64(pow10(digits)) > 0
}
