// Command otpctl generates, verifies and delivers one-time passwords.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhahn/otptoken/pkg/config"
	"github.com/jhahn/otptoken/pkg/otp"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "otpctl",
		Short:         "Generate, verify and deliver one-time passwords",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("OTPTOKEN_CONFIG"), "config file (yaml, json or toml; env OTPTOKEN_CONFIG)")

	root.AddCommand(
		newGenerateCmd(opts),
		newVerifyCmd(opts),
		newSendCmd(opts),
	)
	return root
}

func (o *rootOptions) load() (config.Config, error) {
	return config.Load(o.configPath)
}

// clockAt pins the clock to a unix time, or uses the system clock for zero.
func clockAt(unix int64) otp.Clock {
	if unix == 0 {
		return otp.SystemClock{}
	}
	return otp.ClockFunc(func() time.Time { return time.Unix(unix, 0) })
}
