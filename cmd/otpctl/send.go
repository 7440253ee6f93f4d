package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jhahn/otptoken/pkg/api"
	"github.com/jhahn/otptoken/pkg/config"
	"github.com/jhahn/otptoken/pkg/dispatch"
	"github.com/jhahn/otptoken/pkg/event"
	ldapstore "github.com/jhahn/otptoken/pkg/ldap"
	"github.com/jhahn/otptoken/pkg/notify"
	"github.com/jhahn/otptoken/pkg/otp"
)

func newSendCmd(root *rootOptions) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Generate a token for a directory user and deliver it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return errors.New("--user is required")
			}
			cfg, err := root.load()
			if err != nil {
				return err
			}

			logger, err := config.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := buildStore(cfg)
			if err != nil {
				return err
			}
			d, closer, err := buildDispatcher(cmd.Context(), cfg, store, logger)
			if err != nil {
				return err
			}
			defer closer.Close()

			svc, err := directoryService(cfg, store, d)
			if err != nil {
				return err
			}
			res, err := svc.Send(cmd.Context(), username)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent via %s\n", res.Channel)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "directory username")
	return cmd
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func buildStore(cfg config.Config) (*ldapstore.Store, error) {
	if cfg.LDAP.URL == "" {
		return nil, fmt.Errorf("%w: ldap.url is required", config.ErrInvalidConfig)
	}
	enc, err := cfg.OTP.SecretEncoding()
	if err != nil {
		return nil, err
	}

	storeOpts := []ldapstore.Option{
		ldapstore.WithDefaultEncoding(enc),
		ldapstore.WithDomain(cfg.LDAP.Tenant, cfg.LDAP.UserStore),
		ldapstore.WithTimeout(cfg.LDAP.Timeout),
		ldapstore.WithAttributes(ldapstore.Attributes{
			Secret:      cfg.LDAP.Attributes.Secret,
			Encoding:    cfg.LDAP.Attributes.Encoding,
			DisplayName: cfg.LDAP.Attributes.DisplayName,
			Email:       cfg.LDAP.Attributes.Email,
		}),
	}
	if cfg.LDAP.Filter != "" {
		storeOpts = append(storeOpts, ldapstore.WithFilter(cfg.LDAP.Filter))
	}
	if cfg.LDAP.BindDN != "" {
		storeOpts = append(storeOpts, ldapstore.WithServiceAccount(cfg.LDAP.BindDN, cfg.LDAP.BindPassword))
	}
	if cfg.LDAP.StartTLS {
		storeOpts = append(storeOpts, ldapstore.WithStartTLS())
	}
	if cfg.LDAP.InsecureSkipVerify {
		storeOpts = append(storeOpts, ldapstore.WithTLSConfig(&tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS12}))
	}
	return ldapstore.NewStore(cfg.LDAP.URL, cfg.LDAP.BaseDN, storeOpts...)
}

// directoryService builds the api.Service used by send and verify --user.
func directoryService(cfg config.Config, store *ldapstore.Store, sender api.Sender) (*api.Service, error) {
	return api.NewService(api.Config{
		Backends: []api.Backend{{
			Name: api.BackendDirectory,
			Handler: api.Directory(store, api.DirectoryConfig{
				Period:    uint(cfg.OTP.StepSeconds),
				Skew:      cfg.OTP.Skew,
				Digits:    uint(cfg.OTP.Digits),
				Algorithm: otp.Algorithm(strings.ToUpper(cfg.OTP.Algorithm)),
			}),
		}},
		Sender: sender,
	})
}

func buildDispatcher(ctx context.Context, cfg config.Config, store *ldapstore.Store, logger *zap.Logger) (*dispatch.Dispatcher, io.Closer, error) {
	genOpts, err := cfg.OTP.GeneratorOptions()
	if err != nil {
		return nil, nil, err
	}
	enc, err := cfg.OTP.SecretEncoding()
	if err != nil {
		return nil, nil, err
	}
	gen, err := otp.NewGenerator(genOpts...)
	if err != nil {
		return nil, nil, err
	}

	metrics, err := dispatch.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, nil, err
	}

	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(metrics),
		dispatch.WithGenerator(gen),
		dispatch.WithStepSize(cfg.OTP.StepSeconds),
		dispatch.WithDefaultEncoding(enc),
		dispatch.WithEventMode(cfg.Events.EventMode),
	}

	var closer io.Closer = nopCloser{}
	switch cfg.Events.Driver {
	case config.DriverNATS:
		p, err := event.NewNATSPublisher(event.NATSConfig{URL: cfg.Events.URL, Subject: cfg.Events.Subject})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, dispatch.WithEventPublisher(p))
		closer = p
	case config.DriverRedis:
		p, err := event.NewRedisPublisher(ctx, event.RedisConfig{
			Addr:     cfg.Events.Addr,
			Password: cfg.Events.Password,
			DB:       cfg.Events.DB,
			Channel:  cfg.Events.Channel,
		})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, dispatch.WithEventPublisher(p))
		closer = p
	}

	if !cfg.Events.EventMode {
		n, err := notify.NewSMTPNotifier(cfg.SMTP.Notifier())
		if err != nil {
			_ = closer.Close()
			return nil, nil, err
		}
		opts = append(opts, dispatch.WithNotifier(n))
	}

	d, err := dispatch.New(store, opts...)
	if err != nil {
		_ = closer.Close()
		return nil, nil, err
	}
	return d, closer, nil
}
