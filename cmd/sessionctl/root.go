package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tieredsession/core/config"
)

type appKey struct{}

var errNoApp = errors.New("session stack not initialized")

// cli owns the root command and the stack it builds, so cleanup runs
// whether or not the command succeeded.
type cli struct {
	root *cobra.Command
	app  *app
}

func newCLI(build appBuilder) *cli {
	c := &cli{}
	var flags settings

	root := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Inspect and maintain tiered sessions",
		Long:          `sessionctl wires a durable backend, an optional cache and an optional deferred write queue into a session registry, then runs one operation against it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var s settings
			if err := config.Load(&s); err != nil {
				return err
			}
			applyFlags(cmd, &s, flags)

			a, err := build(cmd.Context(), s)
			if err != nil {
				return err
			}
			c.app = a
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.Env, "env", "", "environment preset: development, staging or production")
	pf.StringVar(&flags.LogLevel, "log-level", "", "minimum log level: debug, info, warn or error")
	pf.StringVar(&flags.Durable, "durable", "", "durable backend: memory, pg or mongo")
	pf.StringVar(&flags.Cache, "cache", "", "cache backend: memory, redis or none")
	pf.BoolVar(&flags.Deferred, "deferred", false, "queue durable writes instead of writing inline")

	root.AddCommand(
		newCreateCmd(),
		newGetCmd(),
		newSetCmd(),
		newUnsetCmd(),
		newDeleteCmd(),
		newRenewCmd(),
		newListCmd(),
		newMigrateCmd(),
		newWorkerCmd(),
	)
	c.root = root
	return c
}

// Execute runs the command, then applies queued deferred writes and releases
// backend connections. Queued writes are applied even after an interrupt.
func (c *cli) Execute(ctx context.Context) error {
	err := c.root.ExecuteContext(ctx)
	if c.app == nil {
		return err
	}
	defer c.app.close()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return errors.Join(err, c.app.flush(flushCtx))
}

func applyFlags(cmd *cobra.Command, s *settings, flags settings) {
	f := cmd.Flags()
	if f.Changed("env") {
		s.Env = flags.Env
	}
	if f.Changed("log-level") {
		s.LogLevel = flags.LogLevel
	}
	if f.Changed("durable") {
		s.Durable = flags.Durable
	}
	if f.Changed("cache") {
		s.Cache = flags.Cache
	}
	if f.Changed("deferred") {
		s.Deferred = flags.Deferred
	}
}

func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok || a == nil {
		return nil, errNoApp
	}
	return a, nil
}
