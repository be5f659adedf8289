package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bnema/offlinectl/internal/domain"
	"github.com/spf13/cobra"
)

func newQueueCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage actions deferred while offline",
	}

	cmd.AddCommand(
		newQueueAddCmd(opts),
		newQueueListCmd(opts),
		newQueueClearCmd(opts),
	)

	return cmd
}

func newQueueAddCmd(opts *rootOptions) *cobra.Command {
	var actionType string
	var payload string
	var ifOffline bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append an action to the offline queue",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			raw, err := readJSONArg(cmd.InOrStdin(), payload)
			if err != nil {
				return err
			}

			action := domain.NewAction{Type: actionType, Payload: raw}
			ctx := cmd.Context()

			if !ifOffline {
				entry, err := app.service.AddToQueue(ctx, action)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "queued %s (%s)\n", entry.ID, sanitizeForTerminal(entry.Type))
				return err
			}

			app.service.Refresh(ctx)
			queued, entry, err := app.service.DeferIfOffline(ctx, action)
			if err != nil {
				return err
			}
			if !queued {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "online; action not queued")
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s; queued %s (%s)\n", app.service.State().Label(), entry.ID, sanitizeForTerminal(entry.Type))
			return err
		}),
	}

	cmd.Flags().StringVar(&actionType, "type", "", "Action type")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload, or - to read it from stdin (default: null)")
	cmd.Flags().BoolVar(&ifOffline, "if-offline", false, "Probe first and queue only when offline or the server is unreachable")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newQueueListCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued actions in insertion order",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			if err := app.service.Load(cmd.Context()); err != nil {
				return fmt.Errorf("load offline queue: %w", err)
			}

			reports := newActionReports(app.service.QueuedActions())

			return writeOutput(cmd.OutOrStdout(), output, reports, func(w io.Writer) error {
				if len(reports) == 0 {
					_, err := fmt.Fprintln(w, "No queued actions.")
					return err
				}

				for _, report := range reports {
					if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						report.ID,
						sanitizeForTerminal(report.Type),
						report.QueuedAt.Format(time.RFC3339),
						sanitizeForTerminal(compactJSON(json.RawMessage(report.Payload))),
					); err != nil {
						return err
					}
				}
				return nil
			})
		}),
	}

	addOutputFlag(cmd, &output)

	return cmd
}

func newQueueClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every queued action",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			ctx := cmd.Context()
			if err := app.service.Load(ctx); err != nil {
				return fmt.Errorf("load offline queue: %w", err)
			}

			count := len(app.service.QueuedActions())
			if err := app.service.ClearQueue(ctx); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "cleared %d queued actions\n", count)
			return err
		}),
	}
}

// readJSONArg returns value as raw JSON, reading it from in when value is "-".
func readJSONArg(in io.Reader, value string) (json.RawMessage, error) {
	if strings.TrimSpace(value) != "-" {
		return json.RawMessage(value), nil
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("read payload from stdin: %w", err)
	}

	return json.RawMessage(data), nil
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
