package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bnema/offlinectl/internal/application"
	"github.com/bnema/offlinectl/internal/domain"
	"github.com/spf13/cobra"
)

type watchEvent struct {
	Time time.Time `json:"time"`
	statusReport
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var output string
	var until string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the prober and print every connectivity change until interrupted",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, func(cmd *cobra.Command, _ []string, app *app) error {
			return runWatch(cmd, app, output, domain.ConnectivityLabel(until))
		}),
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text or json (one object per line)")
	cmd.Flags().StringVar(&until, "until", "", "Exit once the state reaches this label (online, checking, server-unreachable, offline)")

	return cmd
}

func runWatch(cmd *cobra.Command, app *app, output string, until domain.ConnectivityLabel) error {
	if output != outputText && output != outputJSON {
		return fmt.Errorf("unsupported output format %q (want text or json)", output)
	}
	switch until {
	case "", domain.LabelOnline, domain.LabelChecking, domain.LabelServerUnreachable, domain.LabelOffline:
	default:
		return fmt.Errorf("unknown state %q for --until", until)
	}

	ctx := cmd.Context()

	// Listeners run on the engine's goroutines, so they only signal; the loop below
	// reads the latest snapshot itself.
	changed := make(chan struct{}, 1)
	unsubscribe := app.service.Subscribe(func(domain.ConnectivityState) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := app.start(ctx); err != nil {
		return err
	}

	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
		}

		status := app.status()
		key := watchKey(status)
		if key == last {
			continue
		}
		last = key

		if err := writeWatchEvent(cmd.OutOrStdout(), output, status, app.now()); err != nil {
			return err
		}

		if until != "" && status.State.Label() == until {
			return nil
		}
	}
}

func watchKey(status application.Status) string {
	state := status.State
	return fmt.Sprintf("%s|%t|%t|%d|%d|%s", state.Label(), state.NetworkPresent, state.ServerReachable, state.RetryCount, state.QueueLength, status.Server.LastError)
}

func writeWatchEvent(w io.Writer, output string, status application.Status, now time.Time) error {
	if output == outputJSON {
		encoded, err := json.Marshal(watchEvent{Time: now.UTC(), statusReport: newStatusReport(status)})
		if err != nil {
			return fmt.Errorf("encode watch event: %w", err)
		}
		_, err = fmt.Fprintln(w, string(encoded))
		return err
	}

	line := fmt.Sprintf("%s %s", now.UTC().Format(time.RFC3339), status.State.Label())
	if status.State.Checking && status.State.RetryCount > 0 {
		line += fmt.Sprintf(" retry %d/%d", status.State.RetryCount, status.MaxRetries)
	}
	if banner := status.State.Banner(); banner != "" && banner != string(status.State.Label()) {
		line += " (" + banner + ")"
	}
	if status.Server.LastError != "" && !status.State.ServerReachable {
		line += ": " + sanitizeForTerminal(status.Server.LastError)
	}

	_, err := fmt.Fprintln(w, line)
	return err
}
