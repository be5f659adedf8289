package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/offlinectl/internal/application"
	"github.com/bnema/offlinectl/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const retryBarWidth = 12

type RenderOptions struct {
	Now time.Time
	// StaleAfter marks the last check as stale once it is older than this.
	// Zero means twice the probe interval.
	StaleAfter time.Duration
}

func renderView(status application.Status, opts RenderOptions, s styles) string {
	label := status.State.Label()
	lines := []string{
		s.title.Render("Connectivity"),
	}
	if status.Endpoint != "" {
		lines = append(lines, s.header.Render("endpoint: "+status.Endpoint))
	}

	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, s.key.Render("state:"), " ", s.label(label).Render(string(label))))
	if banner := status.State.Banner(); banner != "" {
		lines = append(lines, s.warning.Render(banner))
	}

	lines = append(lines, s.section.Render(renderProbe(status, opts, s)))
	lines = append(lines, s.section.Render(renderQueue(status.Queue, opts, s)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderProbe(status application.Status, opts RenderOptions, s styles) string {
	state := status.State
	parts := []string{
		s.detail.Render("network: " + presenceLabel(state.NetworkPresent)),
		s.detail.Render("server: " + reachabilityLabel(state.ServerReachable)),
		lastCheckedLine(status, opts, s),
	}

	if state.Checking {
		parts = append(parts, retryLine(state.RetryCount, status.MaxRetries, s))
	}

	if status.Server.Attempts > 0 {
		parts = append(parts, s.meta.Render(fmt.Sprintf(
			"attempts: %d  latency: %s",
			status.Server.Attempts,
			status.Server.LastLatency.Round(time.Millisecond),
		)))
	}
	if status.Server.LastError != "" {
		parts = append(parts, s.warning.Render("last error: "+status.Server.LastError))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func lastCheckedLine(status application.Status, opts RenderOptions, s styles) string {
	checked := status.State.LastChecked
	if checked.IsZero() {
		return s.empty.Render("last checked: never")
	}

	now := opts.Now
	if now.IsZero() {
		return s.detail.Render("last checked: " + checked.Format(time.RFC3339))
	}

	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 2 * status.Interval
	}

	age := now.Sub(checked)
	ageStyle := lipgloss.NewStyle().Foreground(freshnessColor(age, staleAfter))
	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.key.Render("last checked:"),
		" ",
		ageStyle.Render(fmt.Sprintf("%s (%s)", checked.Format("15:04:05"), formatAge(age))),
	)

	if staleAfter > 0 && age > staleAfter {
		line += " " + s.warning.Render("[stale]")
	}

	return line
}

func retryLine(retry, maxRetries int, s styles) string {
	if maxRetries <= 0 {
		return s.meta.Render("retries: disabled")
	}

	percent := float64(retry) / float64(maxRetries) * 100
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.key.Render("retries:"),
		" ",
		renderProgressBar(percent, retryBarWidth, s),
		" ",
		s.meta.Render(fmt.Sprintf("%d/%d", retry, maxRetries)),
	)
}

func renderQueue(queue []domain.QueuedAction, opts RenderOptions, s styles) string {
	lines := []string{s.title.Render(fmt.Sprintf("queued actions: %d", len(queue)))}
	if len(queue) == 0 {
		lines = append(lines, s.empty.Render("No queued actions."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, action := range queue {
		queuedAt := time.UnixMilli(action.Timestamp).UTC()
		when := queuedAt.Format(time.RFC3339)
		if !opts.Now.IsZero() {
			when = formatAge(opts.Now.Sub(queuedAt))
		}

		lines = append(lines, lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.detail.Render("  "+action.ID),
			" ",
			s.key.Render(action.Type),
			" ",
			s.meta.Render("("+when+")"),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func presenceLabel(present bool) string {
	if present {
		return "present"
	}
	return "absent"
}

func reachabilityLabel(reachable bool) string {
	if reachable {
		return "reachable"
	}
	return "unreachable"
}

func renderProgressBar(filledPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	fraction := clampPercent(filledPercent) / 100.0
	filled := int(math.Round(float64(width) * fraction))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	empty := width - filled
	fillSegment := s.barFill.Render(strings.Repeat("=", filled))
	emptySegment := s.barEmpty.Render(strings.Repeat("-", empty))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fillSegment,
		emptySegment,
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatAge(age time.Duration) string {
	if age < time.Second {
		return "just now"
	}

	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

// freshnessColor fades from bright white for a fresh check to grey at staleAfter.
func freshnessColor(age, staleAfter time.Duration) lipgloss.Color {
	if staleAfter <= 0 || age < 0 {
		return lipgloss.Color("255")
	}

	return interpolateColor(staleAfter.Seconds()-age.Seconds(), 0, staleAfter.Seconds())
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp: 240 at min, 255 at max.
	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}
