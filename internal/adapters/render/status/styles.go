package status

import (
	"github.com/bnema/offlinectl/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	detail     lipgloss.Style
	warning    lipgloss.Style
	section    lipgloss.Style
	empty      lipgloss.Style
	key        lipgloss.Style
	meta       lipgloss.Style
	barBracket lipgloss.Style
	barFill    lipgloss.Style
	barEmpty   lipgloss.Style
	labels     map[domain.ConnectivityLabel]lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		detail:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:    lipgloss.NewStyle().MarginTop(1),
		empty:      lipgloss.NewStyle().Faint(true),
		key:        lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		meta:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		barBracket: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		barEmpty:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		labels: map[domain.ConnectivityLabel]lipgloss.Style{
			domain.LabelOnline:            lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
			domain.LabelChecking:          lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
			domain.LabelServerUnreachable: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
			domain.LabelOffline:           lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		},
	}
}

func (s styles) label(label domain.ConnectivityLabel) lipgloss.Style {
	if style, ok := s.labels[label]; ok {
		return style
	}

	return s.detail
}
