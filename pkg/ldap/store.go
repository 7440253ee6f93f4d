package ldapstore

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/jhahn/otptoken/pkg/dispatch"
	"github.com/jhahn/otptoken/pkg/otp"
)

// DefaultFilter matches a user entry by uid.
const DefaultFilter = "(&(objectClass=inetOrgPerson)(uid=%s))"

// Attributes names the directory attributes read for each user.
type Attributes struct {
	Secret      string
	Encoding    string
	DisplayName string
	Email       string
}

// DefaultAttributes returns the attribute names used when none are configured.
func DefaultAttributes() Attributes {
	return Attributes{
		Secret:      "otpSecretKey",
		Encoding:    "otpSecretEncoding",
		DisplayName: "givenName",
		Email:       "mail",
	}
}

func (a Attributes) list() []string {
	out := make([]string, 0, 4)
	for _, name := range []string{a.Secret, a.Encoding, a.DisplayName, a.Email} {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Store resolves usernames to OTP secrets held in an LDAP directory.
type Store struct {
	url             string
	baseDN          string
	filter          string
	attrs           Attributes
	encoding        otp.Encoding
	tenant          string
	userStore       string
	serviceBindDN   string
	servicePassword string
	startTLS        bool
	tlsConfig       *tls.Config
	timeout         time.Duration
	implicitTLS     bool

	dialContext func(ctx context.Context) (ldapConn, error)
}

// Option configures the store.
type Option func(*Store)

// WithFilter sets the search filter. The template must contain a single %s
// verb, which is replaced with the escaped username.
func WithFilter(template string) Option {
	return func(s *Store) {
		s.filter = template
	}
}

// WithAttributes overrides the attribute names. Empty fields keep their defaults.
func WithAttributes(attrs Attributes) Option {
	return func(s *Store) {
		if attrs.Secret != "" {
			s.attrs.Secret = attrs.Secret
		}
		if attrs.Encoding != "" {
			s.attrs.Encoding = attrs.Encoding
		}
		if attrs.DisplayName != "" {
			s.attrs.DisplayName = attrs.DisplayName
		}
		if attrs.Email != "" {
			s.attrs.Email = attrs.Email
		}
	}
}

// WithDefaultEncoding sets the secret encoding assumed for entries without
// an encoding attribute value. Default: base32
func WithDefaultEncoding(enc otp.Encoding) Option {
	return func(s *Store) {
		s.encoding = enc
	}
}

// WithDomain sets the tenant and user store domains reported on every identity.
func WithDomain(tenant, userStore string) Option {
	return func(s *Store) {
		s.tenant = tenant
		s.userStore = userStore
	}
}

// WithServiceAccount sets the DN and password bound before searching.
func WithServiceAccount(dn, password string) Option {
	return func(s *Store) {
		s.serviceBindDN = dn
		s.servicePassword = password
	}
}

// WithStartTLS enables StartTLS negotiation after connecting over ldap://.
func WithStartTLS() Option {
	return func(s *Store) {
		s.startTLS = true
	}
}

// WithTLSConfig supplies the TLS configuration used for StartTLS or ldaps connections.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(s *Store) {
		s.tlsConfig = cfg
	}
}

// WithTimeout sets the dial timeout and the server-side search time limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// WithDialContext overrides the dial logic. Used in tests.
func WithDialContext(dial func(ctx context.Context) (ldapConn, error)) Option {
	return func(s *Store) {
		s.dialContext = dial
	}
}

// ldapConn captures the subset of methods we exercise on *ldap.Conn.
type ldapConn interface {
	Bind(username, password string) error
	StartTLS(config *tls.Config) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

var (
	// ErrInvalidFilter indicates the filter template lacks exactly one %s verb.
	ErrInvalidFilter = errors.New("ldap: filter must contain a single %s verb")
	// ErrUserNotFound indicates no entry matched the username.
	ErrUserNotFound = errors.New("ldap: user not found")
	// ErrAmbiguousUser indicates more than one entry matched the username.
	ErrAmbiguousUser = errors.New("ldap: username matches multiple entries")
	// ErrNoSecret indicates the user entry has no OTP secret.
	ErrNoSecret = errors.New("ldap: user has no otp secret")
)

// NewStore constructs a store searching below baseDN on the directory at url.
func NewStore(url, baseDN string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("ldap: url must not be empty")
	}
	if strings.TrimSpace(baseDN) == "" {
		return nil, errors.New("ldap: base DN must not be empty")
	}

	s := &Store{
		url:    url,
		baseDN: baseDN,
		filter:   DefaultFilter,
		attrs:    DefaultAttributes(),
		encoding: otp.EncodingBase32,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if strings.Count(s.filter, "%s") != 1 || strings.Count(s.filter, "%") != 1 {
		return nil, ErrInvalidFilter
	}
	enc, err := otp.ParseEncoding(string(s.encoding))
	if err != nil {
		return nil, fmt.Errorf("ldap: default encoding: %w", err)
	}
	s.encoding = enc

	if strings.HasPrefix(strings.ToLower(url), "ldaps://") {
		s.implicitTLS = true
		s.startTLS = false
		if s.tlsConfig == nil {
			s.tlsConfig = defaultTLSConfig()
		}
	} else if s.startTLS && s.tlsConfig == nil {
		s.tlsConfig = defaultTLSConfig()
	}

	return s, nil
}

// Lookup searches for username and returns its identity and encoded secret.
func (s *Store) Lookup(ctx context.Context, username string) (dispatch.Identity, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return dispatch.Identity{}, err
	}
	if strings.TrimSpace(username) == "" {
		return dispatch.Identity{}, errors.New("ldap: username must not be empty")
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return dispatch.Identity{}, err
	}
	defer conn.Close()

	if s.startTLS {
		if err := conn.StartTLS(s.tlsConfig); err != nil {
			return dispatch.Identity{}, fmt.Errorf("ldap: starttls failed: %w", err)
		}
	}

	if s.serviceBindDN != "" {
		if err := conn.Bind(s.serviceBindDN, s.servicePassword); err != nil {
			return dispatch.Identity{}, fmt.Errorf("ldap: service bind failed: %w", err)
		}
	}

	req := ldap.NewSearchRequest(
		s.baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		int(s.timeout/time.Second),
		false,
		fmt.Sprintf(s.filter, ldap.EscapeFilter(username)),
		s.attrs.list(),
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return dispatch.Identity{}, fmt.Errorf("ldap: search failed: %w", err)
	}
	switch len(res.Entries) {
	case 0:
		return dispatch.Identity{}, ErrUserNotFound
	case 1:
	default:
		return dispatch.Identity{}, ErrAmbiguousUser
	}

	return s.identity(username, res.Entries[0])
}

func (s *Store) identity(username string, entry *ldap.Entry) (dispatch.Identity, error) {
	secret := strings.TrimSpace(entry.GetAttributeValue(s.attrs.Secret))
	if secret == "" {
		return dispatch.Identity{}, ErrNoSecret
	}

	enc := s.encoding
	if value := strings.TrimSpace(entry.GetAttributeValue(s.attrs.Encoding)); value != "" {
		parsed, err := otp.ParseEncoding(value)
		if err != nil {
			return dispatch.Identity{}, fmt.Errorf("ldap: entry %s: %w", entry.DN, err)
		}
		enc = parsed
	}

	return dispatch.Identity{
		Username:    username,
		DisplayName: entry.GetAttributeValue(s.attrs.DisplayName),
		Email:       entry.GetAttributeValue(s.attrs.Email),
		Tenant:      s.tenant,
		UserStore:   s.userStore,
		Secret:      secret,
		Encoding:    enc,
	}, nil
}

func (s *Store) dial(ctx context.Context) (ldapConn, error) {
	if s.dialContext != nil {
		return s.dialContext(ctx)
	}

	dialer := &net.Dialer{}
	if s.timeout > 0 {
		dialer.Timeout = s.timeout
	}

	opts := []ldap.DialOpt{ldap.DialWithDialer(dialer)}

	if s.implicitTLS {
		tlsCfg := s.tlsConfig
		if tlsCfg == nil {
			tlsCfg = defaultTLSConfig()
		}
		opts = append(opts, ldap.DialWithTLSConfig(tlsCfg))
	}

	conn, err := ldap.DialURL(s.url, opts...)
	if err != nil {
		return nil, fmt.Errorf("ldap: dial failed: %w", err)
	}
	return conn, nil
}

func defaultTLSConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}
