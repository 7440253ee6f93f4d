package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/jhahn/otptoken/pkg/event"
	"github.com/jhahn/otptoken/pkg/notify"
	"github.com/jhahn/otptoken/pkg/otp"
)

// Delivery channels reported in Result and metrics.
const (
	ChannelEmail = "email"
	ChannelEvent = "event"
)

var (
	// ErrMissingStore indicates New was called without a SecretStore.
	ErrMissingStore = errors.New("dispatch: secret store is required")
	// ErrMissingUsername indicates Send was called with a blank username.
	ErrMissingUsername = errors.New("dispatch: username is required")
	// ErrNoRecipient indicates the user has no delivery address.
	ErrNoRecipient = errors.New("dispatch: user has no email address")
	// ErrNoChannel indicates no notifier or publisher is configured for the active mode.
	ErrNoChannel = errors.New("dispatch: no delivery channel configured")
)

// Identity is what a SecretStore knows about a user.
type Identity struct {
	Username    string
	DisplayName string
	Email       string
	Tenant      string
	UserStore   string
	// Secret is the encoded shared secret.
	Secret   string
	Encoding otp.Encoding
}

// SecretStore resolves a username to its identity and shared secret.
type SecretStore interface {
	Lookup(ctx context.Context, username string) (Identity, error)
}

// Notifier delivers a rendered token to the user.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// EventPublisher hands a token to an external notification service.
type EventPublisher interface {
	Publish(ctx context.Context, e event.Event) error
}

// Result describes a completed Send.
type Result struct {
	Token   otp.Token
	Channel string
}

// Dispatcher generates a token for a user and delivers it.
type Dispatcher struct {
	store     SecretStore
	gen       *otp.Generator
	step      int
	notifier  Notifier
	publisher EventPublisher
	eventMode bool
	encoding  otp.Encoding
	logger    *zap.Logger
	metrics   *Metrics
	backoff   func() retry.Backoff
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the structured logger. Default: zap.NewNop.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithNotifier sets the direct delivery channel.
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) {
		d.notifier = n
	}
}

// WithEventPublisher sets the publisher used in event mode.
func WithEventPublisher(p EventPublisher) Option {
	return func(d *Dispatcher) {
		d.publisher = p
	}
}

// WithEventMode routes tokens through the EventPublisher instead of the Notifier.
func WithEventMode(enabled bool) Option {
	return func(d *Dispatcher) {
		d.eventMode = enabled
	}
}

// WithGenerator replaces the default token generator.
func WithGenerator(g *otp.Generator) Option {
	return func(d *Dispatcher) {
		if g != nil {
			d.gen = g
		}
	}
}

// WithDefaultEncoding sets the secret encoding assumed for identities that
// do not carry one. Default: base32
func WithDefaultEncoding(enc otp.Encoding) Option {
	return func(d *Dispatcher) {
		if enc != "" {
			d.encoding = enc
		}
	}
}

// WithStepSize sets the TOTP time step in seconds.
func WithStepSize(seconds int) Option {
	return func(d *Dispatcher) {
		d.step = seconds
	}
}

// WithRetry sets the delivery backoff factory. It is called once per Send
// because go-retry backoffs are stateful.
func WithRetry(newBackoff func() retry.Backoff) Option {
	return func(d *Dispatcher) {
		if newBackoff != nil {
			d.backoff = newBackoff
		}
	}
}

// DefaultBackoff retries delivery three times with exponential delays
// starting at 200ms and capped at 2s.
func DefaultBackoff() retry.Backoff {
	b := retry.NewExponential(200 * time.Millisecond)
	b = retry.WithCappedDuration(2*time.Second, b)
	return retry.WithMaxRetries(3, b)
}

// New builds a Dispatcher reading secrets from store.
func New(store SecretStore, opts ...Option) (*Dispatcher, error) {
	if store == nil {
		return nil, ErrMissingStore
	}

	d := &Dispatcher{
		store:   store,
		step:     otp.DefaultStepSeconds,
		encoding: otp.EncodingBase32,
		logger:   zap.NewNop(),
		backoff:  DefaultBackoff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	if d.gen == nil {
		gen, err := otp.NewGenerator()
		if err != nil {
			return nil, err
		}
		d.gen = gen
	}
	if d.step <= 0 {
		return nil, fmt.Errorf("dispatch: %w: step must be positive, got %d", otp.ErrConfiguration, d.step)
	}
	if _, err := otp.ParseEncoding(string(d.encoding)); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if d.eventMode && d.publisher == nil || !d.eventMode && d.notifier == nil {
		return nil, ErrNoChannel
	}
	return d, nil
}

// Send looks up username, generates a token and delivers it over the
// configured channel. Delivery is retried; generation is not.
func (d *Dispatcher) Send(ctx context.Context, username string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return Result{}, ErrMissingUsername
	}

	log := d.logger.With(zap.String("username", username))

	id, err := d.store.Lookup(ctx, username)
	if err != nil {
		log.Warn("identity lookup failed", zap.Error(err))
		return Result{}, fmt.Errorf("dispatch: lookup: %w", err)
	}
	if strings.TrimSpace(id.Email) == "" {
		return Result{}, ErrNoRecipient
	}

	enc := id.Encoding
	if enc == "" {
		enc = d.encoding
	}

	token, err := d.gen.Generate(id.Secret, enc, d.step)
	if err != nil {
		d.metrics.observeGenerated("error", token.Attempts)
		log.Error("token generation failed", zap.Error(err))
		return Result{}, fmt.Errorf("dispatch: generate: %w", err)
	}
	if otp.HasMinimumDigits(token.Code, d.gen.MinDigits()) {
		d.metrics.observeGenerated("ok", token.Attempts)
	} else {
		d.metrics.observeGenerated("short", token.Attempts)
		log.Debug("token shorter than requested after retries",
			zap.Int("attempts", token.Attempts),
			zap.Int("min_digits", d.gen.MinDigits()))
	}

	channel := ChannelEmail
	deliver := func(ctx context.Context) error {
		return d.notifier.Notify(ctx, notify.Message{
			To:          id.Email,
			DisplayName: displayName(id),
			Token:       token.String(),
		})
	}
	if d.eventMode {
		channel = ChannelEvent
		e := event.New(event.TriggerNotification, notificationProperties(id, token))
		deliver = func(ctx context.Context) error {
			return d.publisher.Publish(ctx, e)
		}
	}

	tries := 0
	err = retry.Do(ctx, d.backoff(), func(ctx context.Context) error {
		tries++
		if err := deliver(ctx); err != nil {
			log.Warn("token delivery failed",
				zap.String("channel", channel),
				zap.Int("try", tries),
				zap.Error(err))
			if permanent(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		d.metrics.observeDelivery(channel, "error")
		return Result{}, fmt.Errorf("dispatch: deliver via %s: %w", channel, err)
	}

	d.metrics.observeDelivery(channel, "ok")
	log.Info("token dispatched",
		zap.String("channel", channel),
		zap.Int("attempts", token.Attempts),
		zap.Int("tries", tries))
	return Result{Token: token, Channel: channel}, nil
}

// permanent reports delivery failures that a retry cannot fix.
func permanent(err error) bool {
	return errors.Is(err, notify.ErrRejected) ||
		errors.Is(err, notify.ErrMissingRecipient) ||
		errors.Is(err, event.ErrMissingName) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// displayName falls back to the username for users without a given name,
// such as federated accounts.
func displayName(id Identity) string {
	if name := strings.TrimSpace(id.DisplayName); name != "" {
		return name
	}
	return id.Username
}

func notificationProperties(id Identity, token otp.Token) map[string]any {
	return map[string]any{
		event.PropertyUsername:     id.Username,
		event.PropertyUserStore:    id.UserStore,
		event.PropertyTenant:       id.Tenant,
		event.PropertySendTo:       id.Email,
		event.PropertyTemplateType: event.TemplateTypeOTP,
		event.PropertyToken:        token.String(),
	}
}
