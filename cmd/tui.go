// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Thermoquad/fwu/pkg/bootstrap"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// newTable returns a bordered table for command output
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return statsLabelStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

// Messages
type progressMsg struct {
	progress bootstrap.Progress
	stats    bootstrap.Statistics // snapshot taken on the transfer goroutine
}
type transferDoneMsg struct {
	err error
}

// transferModel shows a running upload
type transferModel struct {
	title    string
	target   string
	cancel   context.CancelFunc
	bar      progress.Model
	spinner  spinner.Model
	last     bootstrap.Progress
	stats    bootstrap.Statistics
	err      error
	done     bool
	quitting bool
	width    int
}

func newTransferModel(title, target string, cancel context.CancelFunc) transferModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = warningStyle

	return transferModel{
		title:   title,
		target:  target,
		cancel:  cancel,
		bar:     progress.New(progress.WithDefaultGradient()),
		spinner: sp,
		width:   80,
	}
}

func (m transferModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m transferModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			if m.done {
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-8, 10)

	case progressMsg:
		m.last = msg.progress
		m.stats = msg.stats
		return m, m.bar.SetPercent(msg.progress.Percentage / 100)

	case transferDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m transferModel) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(m.title))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to abort", m.target)))
	s.WriteString("\n\n")

	switch {
	case m.err != nil:
		s.WriteString(errorStyle.Render("✗ " + m.err.Error()))
	case m.done:
		s.WriteString(statsValueStyle.Render("✓ Transfer complete"))
	case m.quitting:
		s.WriteString(warningStyle.Render("Aborting..."))
	default:
		s.WriteString(m.spinner.View() + " " + phaseLabel(m.last.Phase))
	}
	s.WriteString("\n\n")
	s.WriteString(m.bar.View())
	s.WriteString("\n\n")

	var rate float64
	if secs := m.last.ElapsedTime.Seconds(); secs > 0 {
		rate = float64(m.last.BytesSent) / secs
	}
	content := strings.Builder{}
	content.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", m.last.BytesSent, m.last.TotalBytes)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(formatRate(rate)),
		statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(m.last.ElapsedTime.Truncate(100*time.Millisecond).String()),
	))
	content.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Requests:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Requests)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.CRCErrors+m.stats.DecodeErrors+m.stats.Nacks)),
	))
	if m.stats.Resyncs > 0 {
		content.WriteString(fmt.Sprintf("   %s %s",
			statsLabelStyle.Render("Resyncs:"), warningStyle.Render(fmt.Sprintf("%d (%d bytes skipped)", m.stats.Resyncs, m.stats.SkippedBytes))))
	}
	s.WriteString(boxStyle.Render(content.String()))
	s.WriteString("\n")
	return s.String()
}

func phaseLabel(phase string) string {
	switch phase {
	case bootstrap.PhaseSend:
		return "Announcing transfer"
	case bootstrap.PhaseData:
		return "Sending data"
	case bootstrap.PhaseHash:
		return "Verifying digest"
	case bootstrap.PhaseDecompress:
		return "Decompressing"
	case bootstrap.PhaseComplete:
		return "Finishing"
	default:
		return "Connecting"
	}
}

// formatRate formats a byte rate for display
func formatRate(bps float64) string {
	switch {
	case bps >= 1024*1024:
		return fmt.Sprintf("%.1f MiB/s", bps/(1024*1024))
	case bps >= 1024:
		return fmt.Sprintf("%.1f KiB/s", bps/1024)
	default:
		return fmt.Sprintf("%.0f B/s", bps)
	}
}

// runTransferTUI runs job on its own goroutine while a progress view is
// shown. Pressing q cancels the context passed to job.
func runTransferTUI(ctx context.Context, title, target string, stats *bootstrap.Statistics,
	job func(ctx context.Context, progress func(bootstrap.Progress)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newTransferModel(title, target, cancel))
	errCh := make(chan error, 1)
	go func() {
		err := job(ctx, func(pr bootstrap.Progress) {
			p.Send(progressMsg{progress: pr, stats: *stats})
		})
		errCh <- err
		p.Send(transferDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errCh
		return fmt.Errorf("TUI error: %w", err)
	}
	return <-errCh
}
