package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/bnema/offlinectl/internal/application"
	"github.com/bnema/offlinectl/internal/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", outputText, "Output format: text, json, or yaml")
}

func validateOutputFormat(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (want text, json, or yaml)", format)
	}
}

func writeOutput(w io.Writer, format string, value any, renderText func(io.Writer) error) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	case outputText:
		return renderText(w)
	default:
		return validateOutputFormat(format)
	}
}

// rawJSON keeps payloads verbatim in JSON output and as structured values in YAML.
type rawJSON json.RawMessage

func (r rawJSON) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

func (r rawJSON) MarshalYAML() (any, error) {
	if len(r) == 0 {
		return nil, nil
	}

	var value any
	if err := json.Unmarshal(r, &value); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return value, nil
}

type actionReport struct {
	ID        string    `json:"id" yaml:"id"`
	Type      string    `json:"type" yaml:"type"`
	Payload   rawJSON   `json:"payload" yaml:"payload"`
	Timestamp int64     `json:"timestamp" yaml:"timestamp"`
	QueuedAt  time.Time `json:"queued_at" yaml:"queued_at"`
}

func newActionReports(actions []domain.QueuedAction) []actionReport {
	reports := make([]actionReport, 0, len(actions))
	for _, action := range actions {
		reports = append(reports, actionReport{
			ID:        action.ID,
			Type:      action.Type,
			Payload:   rawJSON(action.Payload),
			Timestamp: action.Timestamp,
			QueuedAt:  time.UnixMilli(action.Timestamp).UTC(),
		})
	}
	return reports
}

type statusReport struct {
	State           domain.ConnectivityLabel `json:"state" yaml:"state"`
	Online          bool                     `json:"online" yaml:"online"`
	NetworkPresent  bool                     `json:"network_present" yaml:"network_present"`
	ServerReachable bool                     `json:"server_reachable" yaml:"server_reachable"`
	Checking        bool                     `json:"checking" yaml:"checking"`
	Phase           domain.ProbePhase        `json:"phase" yaml:"phase"`
	RetryCount      int                      `json:"retry_count" yaml:"retry_count"`
	MaxRetries      int                      `json:"max_retries" yaml:"max_retries"`
	Attempts        int                      `json:"attempts" yaml:"attempts"`
	LastChecked     *time.Time               `json:"last_checked,omitempty" yaml:"last_checked,omitempty"`
	LastError       string                   `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LatencyMillis   int64                    `json:"latency_ms" yaml:"latency_ms"`
	Endpoint        string                   `json:"endpoint" yaml:"endpoint"`
	Banner          string                   `json:"banner,omitempty" yaml:"banner,omitempty"`
	QueueLength     int                      `json:"queue_length" yaml:"queue_length"`
	Queue           []actionReport           `json:"queue" yaml:"queue"`
}

func newStatusReport(status application.Status) statusReport {
	report := statusReport{
		State:           status.State.Label(),
		Online:          status.State.Online,
		NetworkPresent:  status.State.NetworkPresent,
		ServerReachable: status.State.ServerReachable,
		Checking:        status.State.Checking,
		Phase:           status.Server.Phase,
		RetryCount:      status.State.RetryCount,
		MaxRetries:      status.MaxRetries,
		Attempts:        status.Server.Attempts,
		LastError:       status.Server.LastError,
		LatencyMillis:   status.Server.LastLatency.Milliseconds(),
		Endpoint:        status.Endpoint,
		Banner:          status.State.Banner(),
		QueueLength:     status.State.QueueLength,
		Queue:           newActionReports(status.Queue),
	}
	if !status.State.LastChecked.IsZero() {
		checked := status.State.LastChecked.UTC()
		report.LastChecked = &checked
	}

	return report
}

type cacheReport struct {
	Key       string    `json:"key" yaml:"key"`
	Data      rawJSON   `json:"data" yaml:"data"`
	Timestamp int64     `json:"timestamp" yaml:"timestamp"`
	SavedAt   time.Time `json:"saved_at" yaml:"saved_at"`
	Stale     bool      `json:"stale" yaml:"stale"`
}

func newCacheReport(entry domain.CacheEntry, now time.Time, maxAge time.Duration) cacheReport {
	return cacheReport{
		Key:       entry.Key,
		Data:      rawJSON(entry.Data),
		Timestamp: entry.Timestamp,
		SavedAt:   entry.SavedAt().UTC(),
		Stale:     entry.IsStale(now, maxAge),
	}
}

func sanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}
