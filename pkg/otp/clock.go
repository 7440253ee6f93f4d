package otp

import "time"

// Clock abstracts wall-clock time so callers can pin it in tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the current system time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// CurrentCounter returns floor(unix seconds / stepSeconds) for the time read
// from clock. A nil clock uses the system clock. The step is validated before
// the clock is read.
func CurrentCounter(clock Clock, stepSeconds int) (uint64, error) {
	if err := validateStep(stepSeconds); err != nil {
		return 0, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return CounterAt(clock.Now(), stepSeconds)
}

// CounterAt returns the time-step counter for t.
func CounterAt(t time.Time, stepSeconds int) (uint64, error) {
	if err := validateStep(stepSeconds); err != nil {
		return 0, err
	}
	unix := t.Unix()
	if unix < 0 {
		return 0, newError(KindConfiguration, "counter", nil, "clock reads %s, before the unix epoch", t.UTC().Format(time.RFC3339))
	}
	return uint64(unix) / uint64(stepSeconds), nil
}

func validateStep(stepSeconds int) error {
	if stepSeconds <= 0 {
		return newError(KindConfiguration, "counter", nil, "step size must be positive, got %d", stepSeconds)
	}
	return nil
}
