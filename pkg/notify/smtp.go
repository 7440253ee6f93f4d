package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/textproto"
	"strings"
	"text/template"
	"time"

	"github.com/go-mail/mail"
)

// Message is the token delivery request handed to a notifier.
type Message struct {
	// To is the recipient address.
	To string
	// DisplayName is how the recipient is greeted; usually a first name.
	DisplayName string
	// Token is the one-time password in its printed form.
	Token string
	// Subject overrides the notifier's configured subject when set.
	Subject string
}

var (
	// ErrMissingHost indicates the SMTP host or port is not configured.
	ErrMissingHost = errors.New("notify: smtp host and port are required")
	// ErrMissingSender indicates no From address is configured.
	ErrMissingSender = errors.New("notify: sender address is required")
	// ErrMissingRecipient indicates the message has no recipient.
	ErrMissingRecipient = errors.New("notify: recipient address is required")
	// ErrRejected indicates the server refused the message or the credentials
	// with a permanent (5xx) reply. Sending again will not help.
	ErrRejected = errors.New("notify: rejected by smtp server")
)

// DefaultSubject is used when SMTPConfig.Subject is empty.
const DefaultSubject = "Your one-time password"

// DefaultTemplate renders the plain-text body.
const DefaultTemplate = `Hi {{.DisplayName}},

Your one-time password is {{.Token}}.

If you did not try to sign in, you can ignore this message.
`

// TLS modes accepted by SMTPConfig.TLSMode.
const (
	TLSModeAuto     = "auto"
	TLSModeStartTLS = "starttls"
	TLSModeSSL      = "ssl"
	TLSModeNone     = "none"
)

// SMTPConfig configures SMTPNotifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Subject overrides DefaultSubject.
	Subject string
	// Template overrides DefaultTemplate. Fields: .DisplayName, .Token.
	Template string
	// TLSMode is one of auto, starttls, ssl, none. Default: auto
	TLSMode            string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// mailSender captures the subset of *mail.Dialer we exercise.
type mailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPNotifier delivers tokens by email.
type SMTPNotifier struct {
	from    string
	subject string
	tmpl    *template.Template
	sender  mailSender
}

// SMTPOption configures an SMTPNotifier.
type SMTPOption func(*SMTPNotifier)

// WithSender overrides the SMTP transport. Used in tests.
func WithSender(s mailSender) SMTPOption {
	return func(n *SMTPNotifier) {
		n.sender = s
	}
}

// NewSMTPNotifier builds an SMTPNotifier from cfg.
func NewSMTPNotifier(cfg SMTPConfig, opts ...SMTPOption) (*SMTPNotifier, error) {
	if strings.TrimSpace(cfg.Host) == "" || cfg.Port == 0 {
		return nil, ErrMissingHost
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, ErrMissingSender
	}

	body := cfg.Template
	if body == "" {
		body = DefaultTemplate
	}
	tmpl, err := template.New("token").Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, fmt.Errorf("notify: parse template: %w", err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	n := &SMTPNotifier{
		from:    cfg.From,
		subject: subject,
		tmpl:    tmpl,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	if n.sender == nil {
		n.sender = newDialer(cfg)
	}
	return n, nil
}

func newDialer(cfg SMTPConfig) *mail.Dialer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}

	switch strings.ToLower(cfg.TLSMode) {
	case TLSModeSSL:
		d.SSL = true
	case TLSModeStartTLS:
		d.StartTLSPolicy = mail.MandatoryStartTLS
	case TLSModeNone:
		d.StartTLSPolicy = mail.NoStartTLS
	}
	return d
}

// Notify renders the message and sends it.
func (n *SMTPNotifier) Notify(ctx context.Context, msg Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return ErrMissingRecipient
	}

	var body strings.Builder
	if err := n.tmpl.Execute(&body, msg); err != nil {
		return fmt.Errorf("notify: render template: %w", err)
	}

	subject := n.subject
	if msg.Subject != "" {
		subject = msg.Subject
	}

	m := mail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body.String())

	if err := n.sender.DialAndSend(m); err != nil {
		if rejected(err) {
			return fmt.Errorf("notify: smtp send: %w: %w", ErrRejected, err)
		}
		return fmt.Errorf("notify: smtp send: %w", err)
	}
	return nil
}

// rejected reports whether err carries a permanent SMTP reply. go-mail
// returns auth failures as-is and wraps per-message failures in a
// SendError without Unwrap.
func rejected(err error) bool {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) && sendErr.Cause != nil {
		err = sendErr.Cause
	}
	var tlsErr mail.StartTLSUnsupportedError
	if errors.As(err, &tlsErr) {
		return true
	}
	var reply *textproto.Error
	return errors.As(err, &reply) && reply.Code >= 500
}
