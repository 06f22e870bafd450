package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psyportal/portal-client/internal/pkg/config"
	"github.com/psyportal/portal-client/pkg/logger"
)

// cli carries the wired app from the root pre-run into the subcommands.
type cli struct {
	out io.Writer
	app *app
}

func rootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	var logLevel string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "PsyPortal terminal client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["offline"] == "true" || cmd.Name() == "help" {
				return nil
			}
			cfg := config.Load()
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: appName})

			a, err := newApp(cmd.Context(), cfg, log, c.out)
			if err != nil {
				return err
			}
			c.app = a
			a.store.Init(cmd.Context())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if c.app != nil {
				c.app.Close(cmd.Context())
			}
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, off)")

	cmd.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.registerCmd(),
		c.whoamiCmd(),
		c.profileCmd(),
		c.verifyEmailCmd(),
		c.resendVerificationCmd(),
		c.forgotPasswordCmd(),
		c.resetPasswordCmd(),
		c.therapistsCmd(),
		c.statsCmd(),
		c.sessionsCmd(),
		c.watchCmd(),
		&cobra.Command{
			Use:         "version",
			Short:       "Print version information",
			Annotations: map[string]string{"offline": "true"},
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(c.out, "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

// secret returns value, or prompts for it on stderr and reads a line from
// stdin when it is empty.
func secret(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(prompt), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
