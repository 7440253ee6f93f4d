package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jhahn/otptoken/pkg/api"
	"github.com/jhahn/otptoken/pkg/otp"
)

func newVerifyCmd(root *rootOptions) *cobra.Command {
	var (
		username string
		secret   string
		encoding string
		code     string
		kind     string
		counter  uint64
		period   uint
		skew     uint
		at       int64
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a code against a shared secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if code == "" || secret == "" && username == "" {
				return errors.New("--code and one of --secret or --user are required")
			}
			cfg, err := root.load()
			if err != nil {
				return err
			}

			if username != "" {
				store, err := buildStore(cfg)
				if err != nil {
					return err
				}
				svc, err := directoryService(cfg, store, nil)
				if err != nil {
					return err
				}
				if err := svc.Verify(cmd.Context(), api.VerifyRequest{Username: username, Code: code}); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "valid")
				return nil
			}

			enc, err := cfg.OTP.SecretEncoding()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("encoding") {
				if enc, err = otp.ParseEncoding(encoding); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("period") {
				period = uint(cfg.OTP.StepSeconds)
			}
			if !cmd.Flags().Changed("skew") {
				skew = cfg.OTP.Skew
			}

			auth, err := otp.NewAuthenticator(otp.Config{
				Type:      otp.Type(kind),
				Secret:    secret,
				Encoding:  enc,
				Digits:    uint(cfg.OTP.Digits),
				Period:    period,
				Counter:   counter,
				Algorithm: otp.Algorithm(strings.ToUpper(cfg.OTP.Algorithm)),
				Skew:      skew,
			}, otp.WithClock(clockAt(at)))
			if err != nil {
				return err
			}

			if err := auth.Authenticate(cmd.Context(), code); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "user", "", "verify against this directory user's secret")
	cmd.Flags().StringVar(&secret, "secret", "", "encoded shared secret")
	cmd.Flags().StringVar(&encoding, "encoding", "base32", "secret encoding: base32 or base64 (default from config)")
	cmd.Flags().StringVar(&code, "code", "", "code to verify")
	cmd.Flags().StringVar(&kind, "type", string(otp.TypeTOTP), "totp or hotp")
	cmd.Flags().Uint64Var(&counter, "counter", 0, "HOTP counter")
	cmd.Flags().UintVar(&period, "period", otp.DefaultStepSeconds, "TOTP period in seconds")
	cmd.Flags().UintVar(&skew, "skew", 1, "TOTP periods accepted either side of now")
	cmd.Flags().Int64Var(&at, "at", 0, "unix time to verify at instead of now")
	return cmd
}
