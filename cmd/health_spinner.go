package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/bnema/offlinectl/internal/application"
	"github.com/bnema/offlinectl/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const defaultHealthLabel = "Checking server health..."

type checkDoneMsg struct {
	err error
}

type checkProgressMsg application.Status

// healthSpinnerModel renders a spinner while a health check cycle runs and relabels
// it from engine updates once the cycle starts retrying.
type healthSpinnerModel struct {
	spinner spinner.Model
	status  application.Status
	check   tea.Cmd
	next    tea.Cmd
	err     error
	done    bool
}

func newHealthSpinnerModel(check, next tea.Cmd) healthSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return healthSpinnerModel{
		spinner: s,
		check:   check,
		next:    next,
	}
}

func (m healthSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.check, m.next)
}

func (m healthSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case checkProgressMsg:
		m.status = application.Status(msg)
		return m, m.next
	case checkDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m healthSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), healthCheckLabel(m.status))
}

func healthCheckLabel(status application.Status) string {
	server := status.Server
	if server.Phase != domain.ProbePhaseRetrying || server.RetryCount == 0 {
		return defaultHealthLabel
	}

	label := fmt.Sprintf("Server unreachable, retry %d/%d after %s backoff",
		server.RetryCount, status.MaxRetries, status.NextBackoff)
	if server.LastError != "" {
		label += " (" + server.LastError + ")"
	}

	return label + "..."
}

// watchCheckProgress turns engine change notifications into a tea.Cmd that yields the
// latest status snapshot. Notifications never block the engine: pending signals
// collapse into one. The returned stop func releases the subscription and any
// blocked read.
func watchCheckProgress(subscribe func(func(domain.ConnectivityState)) func(), snapshot func() application.Status) (tea.Cmd, func()) {
	changed := make(chan struct{}, 1)
	stopped := make(chan struct{})

	unsubscribe := subscribe(func(domain.ConnectivityState) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	var once sync.Once
	stop := func() {
		once.Do(func() {
			unsubscribe()
			close(stopped)
		})
	}

	next := func() tea.Msg {
		select {
		case <-changed:
			return checkProgressMsg(snapshot())
		case <-stopped:
			return nil
		}
	}

	return next, stop
}

func runHealthSpinner(ctx context.Context, output io.Writer, app *app, check func(context.Context) error) error {
	next, stop := watchCheckProgress(app.service.Subscribe, app.status)
	defer stop()

	checkCmd := func() tea.Msg {
		return checkDoneMsg{err: check(ctx)}
	}

	p := tea.NewProgram(
		newHealthSpinnerModel(checkCmd, next),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		return err
	}

	result, ok := finalModel.(healthSpinnerModel)
	if !ok {
		return fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.err
}
