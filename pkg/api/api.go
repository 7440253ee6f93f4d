package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jhahn/otptoken/pkg/dispatch"
	"github.com/jhahn/otptoken/pkg/otp"
)

// Handler verifies a code submitted by a user.
// The implementation should return nil on success or an error on failure.
type Handler interface {
	Verify(ctx context.Context, username, code string) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, username, code string) error

// Verify executes the underlying function.
func (f HandlerFunc) Verify(ctx context.Context, username, code string) error {
	return f(ctx, username, code)
}

// BackendName identifies a registered verification backend.
type BackendName string

const (
	BackendDirectory BackendName = "directory"
	BackendStatic    BackendName = "static"
)

// Backend represents a named verification backend.
type Backend struct {
	Name    BackendName
	Handler Handler
}

// Sender delivers a fresh token to a user. *dispatch.Dispatcher implements it.
type Sender interface {
	Send(ctx context.Context, username string) (dispatch.Result, error)
}

// Config contains the ordered list of backends the service should attempt
// and the optional token sender.
type Config struct {
	Backends []Backend
	Sender   Sender
}

// Service coordinates token delivery and verification.
type Service struct {
	backends []Backend
	sender   Sender
}

var (
	// ErrNoBackends indicates the service was initialised without any backends.
	ErrNoBackends = errors.New("api: no verification backends configured")
	// ErrBackendNotFound indicates a requested backend name does not exist.
	ErrBackendNotFound = errors.New("api: requested backend not configured")
	// ErrMissingCredentials indicates the request does not contain mandatory fields.
	ErrMissingCredentials = errors.New("api: username and code are required")
	// ErrNoSender indicates Send was called on a service without a Sender.
	ErrNoSender = errors.New("api: no token sender configured")
)

// NewService builds a Service from the supplied configuration.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Backends) == 0 {
		return nil, ErrNoBackends
	}

	backends := make([]Backend, 0, len(cfg.Backends))
	seen := map[BackendName]struct{}{}
	for i, b := range cfg.Backends {
		if b.Handler == nil {
			return nil, fmt.Errorf("api: backend at index %d has no handler", i)
		}
		if _, ok := seen[b.Name]; ok {
			return nil, fmt.Errorf("api: duplicate backend name %q", b.Name)
		}
		seen[b.Name] = struct{}{}
		backends = append(backends, b)
	}

	return &Service{backends: backends, sender: cfg.Sender}, nil
}

// VerifyRequest contains the submitted code and optional target backend.
type VerifyRequest struct {
	Backend  BackendName
	Username string
	Code     string
}

// Send delivers a fresh token to username.
func (s *Service) Send(ctx context.Context, username string) (dispatch.Result, error) {
	if s == nil || s.sender == nil {
		return dispatch.Result{}, ErrNoSender
	}
	return s.sender.Send(ctx, username)
}

// Verify checks the code against the configured backends in order and
// succeeds on the first that accepts it.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) error {
	if s == nil || len(s.backends) == 0 {
		return ErrNoBackends
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Code) == "" {
		return ErrMissingCredentials
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var targets []Backend
	if req.Backend != "" {
		for _, b := range s.backends {
			if b.Name == req.Backend {
				targets = append(targets, b)
				break
			}
		}
		if len(targets) == 0 {
			return ErrBackendNotFound
		}
	} else {
		targets = s.backends
	}

	var errs []error
	for _, b := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.Handler.Verify(ctx, req.Username, req.Code); err == nil {
			return nil
		} else {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
		}
	}

	return errors.Join(errs...)
}

// otpAuthenticator describes authenticators bound to a single secret.
type otpAuthenticator interface {
	Authenticate(ctx context.Context, code string) error
}

// Static creates a Handler that checks every user's code against one
// authenticator. Username is ignored.
func Static(auth otpAuthenticator) Handler {
	return HandlerFunc(func(ctx context.Context, username, code string) error {
		return auth.Authenticate(ctx, code)
	})
}

// DirectoryConfig tunes TOTP verification for Directory.
type DirectoryConfig struct {
	// Period is the TOTP step in seconds. Default: 30
	Period uint
	// Skew is the number of steps accepted either side of now. Zero accepts
	// only the current step.
	Skew uint
	// Digits is the code length. Default: 6
	Digits uint
	// Algorithm is the HMAC hash. Default: SHA1
	Algorithm otp.Algorithm
	// Clock overrides the system clock.
	Clock otp.Clock
}

// Directory creates a Handler that resolves the user's secret from store
// and verifies the code as TOTP.
func Directory(store dispatch.SecretStore, cfg DirectoryConfig) Handler {
	return HandlerFunc(func(ctx context.Context, username, code string) error {
		id, err := store.Lookup(ctx, username)
		if err != nil {
			return err
		}
		auth, err := otp.NewAuthenticator(otp.Config{
			Type:      otp.TypeTOTP,
			Secret:    id.Secret,
			Encoding:  id.Encoding,
			Digits:    cfg.Digits,
			Period:    cfg.Period,
			Algorithm: cfg.Algorithm,
			Skew:      cfg.Skew,
		}, otp.WithClock(cfg.Clock))
		if err != nil {
			return err
		}
		return auth.Authenticate(ctx, code)
	})
}

// Ensure the concrete types satisfy the interfaces used above.
var (
	_ otpAuthenticator = (*otp.Authenticator)(nil)
	_ Sender           = (*dispatch.Dispatcher)(nil)
)
