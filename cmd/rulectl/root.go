package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/infrastructure/backend"
	"github.com/iota-uz/provisioning-sdk/pkg/configuration"
)

type globalOptions struct {
	backendURL string
	token      string
	timeout    time.Duration
	logLevel   string

	conf   configuration.Configuration
	logger *logrus.Logger
}

func (g *globalOptions) client() (*backend.Client, error) {
	client, err := backend.NewFromConfiguration(&g.conf)
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	return client, nil
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "rulectl",
		Short:         "Author user provisioning rules against the provisioning backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := configuration.LoadEnv([]string{".env", ".env.local"}); err != nil {
				return withCode(exitUsage, fmt.Errorf("load env: %w", err))
			}
			if err := env.Parse(&g.conf); err != nil {
				return withCode(exitUsage, fmt.Errorf("parse env: %w", err))
			}
			if cmd.Flags().Changed("backend-url") {
				g.conf.Backend.URL = g.backendURL
			}
			if cmd.Flags().Changed("token") {
				g.conf.Backend.Token = g.token
			}
			if cmd.Flags().Changed("timeout") {
				g.conf.Backend.Timeout = g.timeout
			}

			level, err := logrus.ParseLevel(g.logLevel)
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid --log-level: %w", err))
			}
			g.logger = logrus.New()
			g.logger.SetOutput(cmd.ErrOrStderr())
			g.logger.SetLevel(level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&g.backendURL, "backend-url", "", "Provisioning backend base URL (default: $BACKEND_URL)")
	cmd.PersistentFlags().StringVar(&g.token, "token", "", "Bearer token (default: $BACKEND_TOKEN)")
	cmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "Per-request timeout (default: $BACKEND_TIMEOUT)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level written to stderr")

	cmd.AddCommand(newCatalogsCmd(g))
	cmd.AddCommand(newCreateCmd(g))
	cmd.AddCommand(newAskCmd(g))
	return cmd
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
