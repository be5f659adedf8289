package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	statusadapter "github.com/bnema/offlinectl/internal/adapters/render/status"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var output string
	var staleAfter time.Duration
	var requireOnline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe the server once and show connectivity and queued actions",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			if err := runStatus(cmd, app, output, staleAfter); err != nil {
				return err
			}
			if requireOnline {
				return app.service.RequireOnline()
			}
			return nil
		}),
	}

	addOutputFlag(cmd, &output)
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "Mark the last check stale after this age (default: twice the probe interval)")
	cmd.Flags().BoolVar(&requireOnline, "require-online", false, "Exit with an error unless network and server are both available")

	return cmd
}

func runStatus(cmd *cobra.Command, app *app, output string, staleAfter time.Duration) error {
	if err := validateOutputFormat(output); err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := app.service.Load(ctx); err != nil {
		return fmt.Errorf("load offline queue: %w", err)
	}

	refresh := func(ctx context.Context) error {
		app.service.Refresh(ctx)
		return ctx.Err()
	}

	if output == outputText {
		if err := runHealthSpinner(ctx, cmd.ErrOrStderr(), app, refresh); err != nil {
			return err
		}
	} else if err := refresh(ctx); err != nil {
		return err
	}

	status := app.status()

	return writeOutput(cmd.OutOrStdout(), output, newStatusReport(status), func(w io.Writer) error {
		rendered, err := app.statusRenderer(status, statusadapter.RenderOptions{
			Now:        app.now(),
			StaleAfter: staleAfter,
		})
		if err != nil {
			return fmt.Errorf("render status: %w", err)
		}

		_, err = fmt.Fprintln(w, rendered)
		return err
	})
}
