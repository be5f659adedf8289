package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

var errCacheMiss = errors.New("cache miss")

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Read and write locally cached data",
	}

	cmd.AddCommand(
		newCacheGetCmd(opts),
		newCacheSetCmd(opts),
	)

	return cmd
}

func newCacheGetCmd(opts *rootOptions) *cobra.Command {
	var output string
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the cached data for a key",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}

			key := args[0]
			entry, ok := app.service.GetCachedData(cmd.Context(), key)
			if !ok {
				return fmt.Errorf("%w for key %q", errCacheMiss, key)
			}

			now := app.now()
			report := newCacheReport(entry, now, maxAge)

			return writeOutput(cmd.OutOrStdout(), output, report, func(w io.Writer) error {
				if _, err := fmt.Fprintln(w, compactJSON(entry.Data)); err != nil {
					return err
				}

				meta := fmt.Sprintf("saved %s (%s)", report.SavedAt.Format(time.RFC3339), formatCacheAge(entry.Age(now)))
				if report.Stale {
					meta += " [stale]"
				}
				_, err := fmt.Fprintln(cmd.ErrOrStderr(), meta)
				return err
			})
		}),
	}

	addOutputFlag(cmd, &output)
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Mark the entry stale once older than this (0 disables)")

	return cmd
}

func newCacheSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <json|->",
		Short: "Store JSON data under a key, replacing any previous entry",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(opts, func(cmd *cobra.Command, args []string, app *app) error {
			data, err := readJSONArg(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			entry, err := app.service.SetCachedData(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cached %s at %s\n", sanitizeForTerminal(entry.Key), entry.SavedAt().UTC().Format(time.RFC3339))
			return err
		}),
	}
}

func formatCacheAge(age time.Duration) string {
	if age < time.Second {
		return "just now"
	}
	return age.Truncate(time.Second).String() + " ago"
}
