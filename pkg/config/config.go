package config

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jhahn/otptoken/pkg/notify"
	"github.com/jhahn/otptoken/pkg/otp"
)

// EnvPrefix prefixes environment overrides, e.g. OTPTOKEN_SMTP_PASSWORD.
const EnvPrefix = "OTPTOKEN"

// Event drivers accepted by EventsConfig.Driver.
const (
	DriverNone  = "none"
	DriverNATS  = "nats"
	DriverRedis = "redis"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete otptoken configuration.
type Config struct {
	OTP    OTPConfig    `mapstructure:"otp"`
	LDAP   LDAPConfig   `mapstructure:"ldap"`
	SMTP   SMTPConfig   `mapstructure:"smtp"`
	Events EventsConfig `mapstructure:"events"`
	Log    LogConfig    `mapstructure:"log"`
}

// OTPConfig controls token derivation.
type OTPConfig struct {
	StepSeconds int    `mapstructure:"step_seconds"`
	Digits      int    `mapstructure:"digits"`
	MinDigits   int    `mapstructure:"min_digits"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	Encoding    string `mapstructure:"encoding"`
	Algorithm   string `mapstructure:"algorithm"`
	// Skew is the number of steps accepted either side of now when
	// verifying. Zero accepts only the current step. Default: 1
	Skew uint `mapstructure:"skew"`
}

// LDAPConfig locates user secrets in a directory.
type LDAPConfig struct {
	URL                string        `mapstructure:"url"`
	BaseDN             string        `mapstructure:"base_dn"`
	Filter             string        `mapstructure:"filter"`
	BindDN             string        `mapstructure:"bind_dn"`
	BindPassword       string        `mapstructure:"bind_password"`
	StartTLS           bool          `mapstructure:"start_tls"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
	Tenant             string        `mapstructure:"tenant"`
	UserStore          string        `mapstructure:"user_store"`
	Attributes         LDAPAttrs     `mapstructure:"attributes"`
}

// LDAPAttrs names the directory attributes read per user.
type LDAPAttrs struct {
	Secret      string `mapstructure:"secret"`
	Encoding    string `mapstructure:"encoding"`
	DisplayName string `mapstructure:"display_name"`
	Email       string `mapstructure:"email"`
}

// SMTPConfig configures direct email delivery.
type SMTPConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	From               string        `mapstructure:"from"`
	Subject            string        `mapstructure:"subject"`
	Template           string        `mapstructure:"template"`
	TLSMode            string        `mapstructure:"tls_mode"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// EventsConfig configures event-based delivery.
type EventsConfig struct {
	// Driver is one of none, nats, redis.
	Driver string `mapstructure:"driver"`
	// EventMode publishes tokens as events instead of emailing them.
	EventMode bool `mapstructure:"event_mode"`
	// URL is the NATS server URL.
	URL string `mapstructure:"url"`
	// Subject is the NATS subject.
	Subject string `mapstructure:"subject"`
	// Addr is the Redis address.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Channel is the Redis pub/sub channel.
	Channel string `mapstructure:"channel"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Env selects development (console) or production (JSON) output.
	Env string `mapstructure:"env"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("otp.step_seconds", otp.DefaultStepSeconds)
	v.SetDefault("otp.digits", otp.DefaultDigits)
	v.SetDefault("otp.min_digits", otp.DefaultDigits)
	v.SetDefault("otp.max_attempts", otp.DefaultMaxAttempts)
	v.SetDefault("otp.encoding", string(otp.EncodingBase32))
	v.SetDefault("otp.algorithm", string(otp.AlgorithmSHA1))
	v.SetDefault("otp.skew", 1)

	v.SetDefault("ldap.url", "")
	v.SetDefault("ldap.base_dn", "")
	v.SetDefault("ldap.filter", "")
	v.SetDefault("ldap.bind_dn", "")
	v.SetDefault("ldap.bind_password", "")
	v.SetDefault("ldap.start_tls", false)
	v.SetDefault("ldap.insecure_skip_verify", false)
	v.SetDefault("ldap.timeout", 10*time.Second)
	v.SetDefault("ldap.tenant", "carbon.super")
	v.SetDefault("ldap.user_store", "PRIMARY")
	v.SetDefault("ldap.attributes.secret", "")
	v.SetDefault("ldap.attributes.encoding", "")
	v.SetDefault("ldap.attributes.display_name", "")
	v.SetDefault("ldap.attributes.email", "")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.subject", notify.DefaultSubject)
	v.SetDefault("smtp.template", "")
	v.SetDefault("smtp.tls_mode", notify.TLSModeAuto)
	v.SetDefault("smtp.insecure_skip_verify", false)
	v.SetDefault("smtp.timeout", 10*time.Second)

	v.SetDefault("events.driver", DriverNone)
	v.SetDefault("events.event_mode", false)
	v.SetDefault("events.url", "")
	v.SetDefault("events.subject", "otptoken.notifications")
	v.SetDefault("events.addr", "")
	v.SetDefault("events.password", "")
	v.SetDefault("events.db", 0)
	v.SetDefault("events.channel", "otptoken.notifications")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.env", "production")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the file at path, applies OTPTOKEN_ environment overrides and
// validates the result. An empty path uses defaults and environment only.
// The file type is inferred from the extension.
func Load(path string) (Config, error) {
	v := newViper()
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return decode(v)
}

// LoadBytes is Load for in-memory data. configType is a format supported
// by viper, e.g. "yaml", "json" or "toml".
func LoadBytes(configType string, data []byte) (Config, error) {
	if strings.TrimSpace(configType) == "" {
		return Config{}, errors.New("config: config type is required")
	}
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", configType, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. Sections that are not in use
// (no LDAP URL, no SMTP host) are not checked.
func (c Config) Validate() error {
	if _, err := c.OTP.GeneratorOptions(); err != nil {
		return err
	}
	if c.OTP.StepSeconds <= 0 {
		return fmt.Errorf("%w: otp.step_seconds must be positive", ErrInvalidConfig)
	}

	if c.LDAP.URL != "" && c.LDAP.BaseDN == "" {
		return fmt.Errorf("%w: ldap.base_dn is required with ldap.url", ErrInvalidConfig)
	}

	switch c.Events.Driver {
	case DriverNone:
		if c.Events.EventMode {
			return fmt.Errorf("%w: events.event_mode requires a driver", ErrInvalidConfig)
		}
	case DriverNATS:
		if c.Events.URL == "" || c.Events.Subject == "" {
			return fmt.Errorf("%w: nats driver requires events.url and events.subject", ErrInvalidConfig)
		}
	case DriverRedis:
		if c.Events.Addr == "" || c.Events.Channel == "" {
			return fmt.Errorf("%w: redis driver requires events.addr and events.channel", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: events.driver must be none, nats or redis, got %q", ErrInvalidConfig, c.Events.Driver)
	}

	switch c.Log.Env {
	case "development", "production":
	default:
		return fmt.Errorf("%w: log.env must be development or production, got %q", ErrInvalidConfig, c.Log.Env)
	}
	return nil
}

// SecretEncoding returns the parsed default secret encoding.
func (o OTPConfig) SecretEncoding() (otp.Encoding, error) {
	enc, err := otp.ParseEncoding(o.Encoding)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return enc, nil
}

// GeneratorOptions translates the section into otp.Generator options and
// checks them by building a generator.
func (o OTPConfig) GeneratorOptions() ([]otp.Option, error) {
	if _, err := o.SecretEncoding(); err != nil {
		return nil, err
	}
	opts := []otp.Option{
		otp.WithAlgorithm(otp.Algorithm(strings.ToUpper(o.Algorithm))),
		otp.WithDigits(o.Digits),
		otp.WithMinDigits(o.MinDigits),
		otp.WithMaxAttempts(o.MaxAttempts),
	}
	if _, err := otp.NewGenerator(opts...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return opts, nil
}

// Notifier returns the notify package's view of the SMTP section.
func (s SMTPConfig) Notifier() notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:               s.Host,
		Port:               s.Port,
		Username:           s.Username,
		Password:           s.Password,
		From:               s.From,
		Subject:            s.Subject,
		Template:           s.Template,
		TLSMode:            s.TLSMode,
		InsecureSkipVerify: s.InsecureSkipVerify,
		Timeout:            s.Timeout,
	}
}
