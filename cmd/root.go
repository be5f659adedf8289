package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func Execute() error {
	return ExecuteContext(context.Background())
}

func ExecuteContext(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "offlinectl",
		Short:         "Track network and server reachability and keep an offline action queue",
		Long:          "offlinectl probes a server's health endpoint with retry and backoff, combines the result with local network presence, and keeps a durable queue of deferred actions plus a local data cache for use while offline.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.config/offlinectl/config.toml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newStatusCmd(opts),
		newWatchCmd(opts),
		newQueueCmd(opts),
		newCacheCmd(opts),
	)

	return rootCmd
}

// withApp wires the engine for a single command run and closes it afterwards.
func withApp(opts *rootOptions, run func(cmd *cobra.Command, args []string, app *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		app, err := wireApp(opts.configPath, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, app.Close())
		}()

		return run(cmd, args, app)
	}
}
