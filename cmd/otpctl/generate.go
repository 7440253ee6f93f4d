package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhahn/otptoken/pkg/otp"
)

func newGenerateCmd(root *rootOptions) *cobra.Command {
	var (
		secret   string
		encoding string
		step     int
		at       int64
		padded   bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a TOTP token for a shared secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret is required")
			}
			cfg, err := root.load()
			if err != nil {
				return err
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
			if !cmd.Flags().Changed("step") {
				step = cfg.OTP.StepSeconds
			}

			opts, err := cfg.OTP.GeneratorOptions()
			if err != nil {
				return err
			}
			gen, err := otp.NewGenerator(append(opts, otp.WithClock(clockAt(at)))...)
			if err != nil {
				return err
			}

			token, err := gen.Generate(secret, enc, step)
			if err != nil {
				return err
			}

			out := token.String()
			if padded {
				out = token.Padded()
			}
			if verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "%s counter=%d attempts=%d\n", out, token.Counter, token.Attempts)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "encoded shared secret")
	cmd.Flags().StringVar(&encoding, "encoding", "base32", "secret encoding: base32 or base64 (default from config)")
	cmd.Flags().IntVar(&step, "step", otp.DefaultStepSeconds, "time step in seconds")
	cmd.Flags().Int64Var(&at, "at", 0, "unix time to generate for instead of now")
	cmd.Flags().BoolVar(&padded, "padded", false, "left-pad the token with zeros")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print counter and attempts")
	return cmd
}
