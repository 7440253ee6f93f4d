//go:build integration

package otp_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jhahn/otptoken/pkg/otp"
)

const secret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

// secrets sized for each hash, per RFC 6238 appendix B.
var algorithmSecrets = map[otp.Algorithm]string{
	otp.AlgorithmSHA1:   secret,
	otp.AlgorithmSHA256: "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZA",
	otp.AlgorithmSHA512: "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQGEZDGNA",
}

func TestIntegration_TOTP_EndToEnd(t *testing.T) {
	tests := []struct {
		name      string
		algorithm otp.Algorithm
		digits    int
	}{
		{"SHA1_6digits", otp.AlgorithmSHA1, 6},
		{"SHA256_6digits", otp.AlgorithmSHA256, 6},
		{"SHA512_6digits", otp.AlgorithmSHA512, 6},
		{"SHA1_7digits", otp.AlgorithmSHA1, 7},
		{"SHA1_8digits", otp.AlgorithmSHA1, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := algorithmSecrets[tt.algorithm]

			gen, err := otp.NewGenerator(otp.WithAlgorithm(tt.algorithm), otp.WithDigits(tt.digits))
			if err != nil {
				t.Fatalf("Failed to create generator: %v", err)
			}
			auth, err := otp.NewAuthenticator(otp.Config{
				Type:      otp.TypeTOTP,
				Secret:    s,
				Algorithm: tt.algorithm,
				Digits:    uint(tt.digits),
				Skew:      1,
			})
			if err != nil {
				t.Fatalf("Failed to create authenticator: %v", err)
			}

			token, err := gen.Generate(s, otp.EncodingBase32, otp.DefaultStepSeconds)
			if err != nil {
				t.Fatalf("Failed to generate token: %v", err)
			}
			if len(token.Padded()) != tt.digits {
				t.Errorf("Padded token length = %d, want %d", len(token.Padded()), tt.digits)
			}

			// Both the printed and the padded forms verify.
			for _, code := range []string{token.String(), token.Padded()} {
				if err := auth.Authenticate(context.Background(), code); err != nil {
					t.Errorf("Authenticate(%s) failed: %v", code, err)
				}
			}
		})
	}
}

func TestIntegration_TOTP_StepBoundary(t *testing.T) {
	var now atomic.Int64
	now.Store(1111111109)
	clock := otp.ClockFunc(func() time.Time {
		// Each read advances one step so retries land in later steps.
		return time.Unix(now.Add(30)-30, 0)
	})

	gen, err := otp.NewGenerator(otp.WithClock(clock))
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	token, err := gen.Generate(secret, otp.EncodingBase32, otp.DefaultStepSeconds)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token.Attempts < 2 {
		t.Fatalf("expected the short first code to be retried, got %d attempt(s)", token.Attempts)
	}
	if !otp.HasMinimumDigits(token.Code, 6) {
		t.Fatalf("expected a full-length code, got %s", token)
	}
	if want := uint64(1111111109/30) + uint64(token.Attempts-1); token.Counter != want {
		t.Fatalf("counter = %d, want %d", token.Counter, want)
	}
}

func TestIntegration_HOTP_EndToEnd(t *testing.T) {
	auth, err := otp.NewAuthenticator(otp.Config{Type: otp.TypeHOTP, Secret: secret})
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	ctx := context.Background()
	var counter uint64
	for i := 0; i < 10; i++ {
		token, err := auth.Generate(counter)
		if err != nil {
			t.Fatalf("Generate(%d) failed: %v", counter, err)
		}
		next, err := auth.ValidateCounter(ctx, token.String(), counter)
		if err != nil {
			t.Fatalf("ValidateCounter(%d) failed: %v", counter, err)
		}
		if next != counter+1 {
			t.Fatalf("next counter = %d, want %d", next, counter+1)
		}

		// Replay against the advanced counter must fail.
		if _, err := auth.ValidateCounter(ctx, token.String(), next); !errors.Is(err, otp.ErrInvalidCode) {
			t.Fatalf("replay at counter %d: expected ErrInvalidCode, got %v", next, err)
		}
		counter = next
	}
}

func TestIntegration_ConcurrentGeneration(t *testing.T) {
	clock := otp.ClockFunc(func() time.Time { return time.Unix(59, 0) })
	gen, err := otp.NewGenerator(otp.WithClock(clock))
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}
	auth, err := otp.NewAuthenticator(otp.Config{Type: otp.TypeTOTP, Secret: secret}, otp.WithClock(clock))
	if err != nil {
		t.Fatalf("Failed to create authenticator: %v", err)
	}

	const workers = 50
	var (
		wg       sync.WaitGroup
		failures atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := gen.Generate(secret, otp.EncodingBase32, otp.DefaultStepSeconds)
			if err != nil || token.Code != 287082 {
				failures.Add(1)
				return
			}
			if err := auth.Authenticate(context.Background(), token.String()); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if n := failures.Load(); n != 0 {
		t.Fatalf("%d of %d workers failed", n, workers)
	}
}

func TestIntegration_ErrorHandling(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		enc     otp.Encoding
		step    int
		wantErr error
	}{
		{"malformed base32", "GEZDGNBV1", otp.EncodingBase32, 30, otp.ErrDecode},
		{"malformed base64", "MTIz!", otp.EncodingBase64, 30, otp.ErrDecode},
		{"unknown encoding", secret, otp.Encoding("hex"), 30, otp.ErrConfiguration},
		{"zero step", secret, otp.EncodingBase32, 0, otp.ErrConfiguration},
		{"negative step", secret, otp.EncodingBase32, -30, otp.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := otp.Generate(tt.encoded, tt.enc, tt.step)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if _, ok := otp.KindOf(err); !ok {
				t.Fatalf("expected an *otp.Error, got %T", err)
			}
		})
	}
}
