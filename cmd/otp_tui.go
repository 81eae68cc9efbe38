// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/fwu/pkg/otp"
	"github.com/Thermoquad/fwu/pkg/session"
)

//////////////////////////////////////////////////////////////
// Field Browser
//////////////////////////////////////////////////////////////

// fieldItem adapts an OTP field to list.Item
type fieldItem struct {
	field otp.Field
}

func (f fieldItem) Title() string { return f.field.Name }
func (f fieldItem) Description() string {
	return fmt.Sprintf("0x%04x, %d bytes, %s", f.field.Offset, f.field.Size, f.field.Flags)
}
func (f fieldItem) FilterValue() string { return f.field.Name }

// otpBrowserModel lists the OTP fields of a catalog
type otpBrowserModel struct {
	platform string
	catalog  *otp.Catalog
	fields   list.Model
	width    int
	height   int
}

func newOTPBrowserModel(platform string, cat *otp.Catalog) otpBrowserModel {
	items := make([]list.Item, 0, cat.Len())
	for _, f := range cat.Fields() {
		items = append(items, fieldItem{field: f})
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	fields := list.New(items, delegate, 40, 20)
	fields.Title = "OTP Fields"
	fields.SetShowStatusBar(false)
	fields.SetShowHelp(false)

	return otpBrowserModel{
		platform: platform,
		catalog:  cat,
		fields:   fields,
		width:    80,
		height:   24,
	}
}

func (m otpBrowserModel) Init() tea.Cmd {
	return nil
}

func (m otpBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.fields.FilterState() != list.Filtering {
			switch msg.String() {
			case "q", "ctrl+c", "esc":
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.fields.SetSize(max(msg.Width/2, 30), max(msg.Height-4, 6))
	}

	var cmd tea.Cmd
	m.fields, cmd = m.fields.Update(msg)
	return m, cmd
}

func (m otpBrowserModel) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("FWU - OTP"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %d fields, %d bytes | '/' to filter, 'q' to quit",
		m.platform, m.catalog.Len(), m.catalog.Capacity())))
	s.WriteString("\n\n")

	detail := "No field selected"
	if item, ok := m.fields.SelectedItem().(fieldItem); ok {
		f := item.field
		var d strings.Builder
		d.WriteString(statsLabelStyle.Render(f.Name))
		d.WriteString("\n\n")
		d.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Offset:"), statsValueStyle.Render(fmt.Sprintf("0x%04x (%d)", f.Offset, f.Offset))))
		d.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Size:  "), statsValueStyle.Render(fmt.Sprintf("%d bytes", f.Size))))
		d.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("End:   "), statsValueStyle.Render(fmt.Sprintf("0x%04x", f.End()))))
		flags := statsValueStyle.Render(f.Flags.String())
		if f.Flags == 0 {
			flags = warningStyle.Render(f.Flags.String())
		}
		d.WriteString(fmt.Sprintf("%s %s", statsLabelStyle.Render("Writes:"), flags))
		detail = d.String()
	}

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		m.fields.View(),
		"  ",
		boxStyle.Render(detail),
	))
	s.WriteString("\n")
	return s.String()
}

//////////////////////////////////////////////////////////////
// Write Confirmation
//////////////////////////////////////////////////////////////

// confirmModel asks the user to type the field name before an OTP write
type confirmModel struct {
	write     session.OTPWrite
	input     textinput.Model
	confirmed bool
	done      bool
}

func newConfirmModel(w session.OTPWrite) confirmModel {
	ti := textinput.New()
	ti.Placeholder = w.Field.Name
	ti.CharLimit = len(w.Field.Name) + 8
	ti.Width = len(w.Field.Name) + 8
	ti.Focus()

	return confirmModel{write: w, input: ti}
}

func (m confirmModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc":
			m.done = true
			return m, tea.Quit
		case "enter":
			m.done = true
			m.confirmed = strings.TrimSpace(m.input.Value()) == m.write.Field.Name
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	w := m.write
	var s strings.Builder
	s.WriteString(titleStyle.Render("FWU - OTP WRITE"))
	s.WriteString("\n\n")
	what := "random data generated by the device"
	if !w.Random {
		what = otp.FormatValue(w.Data)
	}
	s.WriteString(boxStyle.Render(fmt.Sprintf("%s %s\n%s %s\n%s %s",
		statsLabelStyle.Render("Field:"), statsValueStyle.Render(w.Field.Name),
		statsLabelStyle.Render("Range:"), statsValueStyle.Render(fmt.Sprintf("0x%04x-0x%04x (%d bytes)", w.Field.Offset, w.Field.End(), w.Field.Size)),
		statsLabelStyle.Render("Value:"), statsValueStyle.Render(what))))
	s.WriteString("\n\n")
	s.WriteString(errorStyle.Render("OTP bits cannot be cleared once programmed."))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Type the field name to confirm: %s\n", m.input.View()))
	s.WriteString(headerStyle.Render("enter to confirm, esc to cancel"))
	s.WriteString("\n")
	return s.String()
}

// confirmOTPWrite runs the confirmation prompt. It is a session.Confirmer.
func confirmOTPWrite(w session.OTPWrite) bool {
	final, err := tea.NewProgram(newConfirmModel(w)).Run()
	if err != nil {
		return false
	}
	m, ok := final.(confirmModel)
	return ok && m.confirmed
}
