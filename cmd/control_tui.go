// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const maxLogEntries = 100

// Focus states
const (
	focusKeyList = iota
	focusCommandInput
)

// statusPanel lists the settings shown in the status box
var statusPanel = []string{
	"power_state",
	"input_mode",
	"source_status",
	"picture_mode",
	"content_type",
	"color_mode",
	"low_latency",
	"lamp_time",
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// remoteKey is one entry of the key list
type remoteKey struct {
	label   string
	command string
}

// Implement list.Item interface
func (k remoteKey) Title() string       { return k.label }
func (k remoteKey) Description() string { return k.command }
func (k remoteKey) FilterValue() string { return k.label }

type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	connMgr *connectionManager

	keyList      list.Model
	commandInput textinput.Model
	focusedField int

	status      map[string]string
	lastRefresh time.Time
	refreshing  bool

	eventLog []logEntry

	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type statusMsg struct {
	values map[string]string
	err    error
}

type commandResultMsg struct {
	command string
	replies []jvc.Reply
	err     error
}

type exchangeMsg struct {
	rec jvc.ExchangeRecord
}

type reconnectedMsg struct {
	linkInfo string
}

type reconnectFailedMsg struct {
	err     error
	retryIn time.Duration
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func remoteKeys() []list.Item {
	items := []list.Item{
		remoteKey{"Power On", "power, on"},
		remoteKey{"Power Off", "power, off"},
	}
	for _, m := range jvc.RemoteKeys.Members() {
		items = append(items, remoteKey{
			label:   "Menu: " + strings.ToUpper(m.Name[:1]) + m.Name[1:],
			command: "menu, " + m.Name,
		})
	}
	return items
}

func initialControlModel(connMgr *connectionManager) controlModel {
	ti := textinput.New()
	ti.Placeholder = "picture_mode, natural"
	ti.CharLimit = 64
	ti.Width = 36

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	keyList := list.New(remoteKeys(), delegate, 30, 14)
	keyList.Title = "Remote"
	keyList.SetShowStatusBar(false)
	keyList.SetShowHelp(false)
	keyList.SetFilteringEnabled(false)

	return controlModel{
		connMgr:      connMgr,
		keyList:      keyList,
		commandInput: ti,
		focusedField: focusKeyList,
		status:       make(map[string]string),
		eventLog:     make([]logEntry, 0),
		width:        80,
		height:       24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), controlTickCmd())
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(controlRefresh, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		cmds := []tea.Cmd{controlTickCmd()}
		if !m.refreshing && !m.connectionLost {
			m.refreshing = true
			cmds = append(cmds, m.refreshCmd())
		}
		return m, tea.Batch(cmds...)

	case statusMsg:
		m.refreshing = false
		m.lastRefresh = time.Now()
		for k, v := range msg.values {
			m.status[k] = v
		}
		if msg.err != nil {
			return m, m.handleError("Status refresh failed", msg.err)
		}

	case commandResultMsg:
		if msg.err != nil {
			return m, m.handleError(fmt.Sprintf("%s failed", msg.command), msg.err)
		}
		m.addLogEntry(fmt.Sprintf("%s: %s", msg.command, msg.replies[len(msg.replies)-1]), false)

	case exchangeMsg:
		if msg.rec.Err != nil {
			m.addLogEntry(fmt.Sprintf("#%d %s: %v", msg.rec.Seq, msg.rec.Verb, msg.rec.Err), true)
		}

	case reconnectedMsg:
		m.connectionLost = false
		m.addLogEntry("Reconnected: "+msg.linkInfo, false)
		m.refreshing = true
		return m, m.refreshCmd()

	case reconnectFailedMsg:
		m.addLogEntry(fmt.Sprintf("Reconnect failed: %v (retry in %s)", msg.err, msg.retryIn), true)
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField == focusKeyList {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		return m.toggleFocus(), nil

	case "enter":
		return m.handleEnter()

	case "r":
		if m.focusedField == focusKeyList && !m.refreshing && !m.connectionLost {
			m.refreshing = true
			return m, m.refreshCmd()
		}
	}

	var cmd tea.Cmd
	if m.focusedField == focusCommandInput {
		m.commandInput, cmd = m.commandInput.Update(msg)
	} else {
		m.keyList, cmd = m.keyList.Update(msg)
	}
	return m, cmd
}

func (m controlModel) toggleFocus() controlModel {
	if m.focusedField == focusKeyList {
		m.focusedField = focusCommandInput
		m.commandInput.Focus()
	} else {
		m.focusedField = focusKeyList
		m.commandInput.Blur()
	}
	return m
}

func (m controlModel) handleEnter() (tea.Model, tea.Cmd) {
	// Don't allow control commands while connection is lost
	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}

	var command string
	if m.focusedField == focusCommandInput {
		command = strings.TrimSpace(m.commandInput.Value())
		m.commandInput.SetValue("")
	} else if key, ok := m.keyList.SelectedItem().(remoteKey); ok {
		command = key.command
	}
	if command == "" {
		return m, nil
	}

	if _, err := jvc.ParseCommand(command); err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}
	return m, m.execCmd(command)
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("JVCCTL CONTROL"))
	s.WriteString(" ")
	connStatus := m.connMgr.s.linkInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch r=refresh", connStatus)))
	s.WriteString("\n\n")

	// Layout: left panel (keys) | right panel (status and input)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 30 {
		rightWidth = 30
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusKeyList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	keyPanel := listStyle.Render(m.keyList.View())

	inputStyle := boxStyle.Width(rightWidth)
	if m.focusedField == focusCommandInput {
		inputStyle = focusedBoxStyle.Width(rightWidth)
	}
	right := lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Width(rightWidth).Render(m.renderStatus(labelStyle, valueStyle, headerStyle)),
		inputStyle.Render(labelStyle.Render("Command: ")+m.commandInput.View()),
	)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, keyPanel, " ", right))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	s.WriteString(m.renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderStatus(labelStyle, valueStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("STATUS"))
	if !m.lastRefresh.IsZero() {
		s.WriteString(headerStyle.Render(" updated " + m.lastRefresh.Format("15:04:05")))
	}
	s.WriteString("\n")

	for _, name := range statusPanel {
		value, ok := m.status[name]
		if !ok {
			value = "..."
		}
		s.WriteString(fmt.Sprintf("%-16s %s\n", name, valueStyle.Render(value)))
	}
	return strings.TrimSuffix(s.String(), "\n")
}

func (m controlModel) renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle lipgloss.Style) string {
	sum := m.connMgr.s.stats.Summary()
	errText := valueStyle.Render("0")
	if sum.Errors > 0 {
		errText = errorStyle.Render(fmt.Sprintf("%d", sum.Errors))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Exchanges:"), valueStyle.Render(fmt.Sprintf("%d", sum.Exchanges)),
		labelStyle.Render("Rejected:"), valueStyle.Render(fmt.Sprintf("%d", sum.Rejected)),
		labelStyle.Render("Errors:"), errText,
		labelStyle.Render("Avg:"), valueStyle.Render(sum.AverageLatency.Round(time.Microsecond).String()),
	)
	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 8
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for i := startIdx; i < len(m.eventLog); i++ {
		entry := m.eventLog[i]
		icon := "i"
		style := warningStyle
		if entry.isError {
			icon = "x"
			style = errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return boxStyle.Width(m.width - 4).Render(strings.TrimSuffix(s.String(), "\n"))
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// refreshCmd queries the status panel settings. It stops at the first fatal
// error and returns what it has.
func (m controlModel) refreshCmd() tea.Cmd {
	cm := m.connMgr
	return func() tea.Msg {
		values := make(map[string]string, len(statusPanel))
		for _, name := range statusPanel {
			q, ok := lookupQuery(name)
			if !ok {
				continue
			}
			value, err := q.run(cm.ctx, cm.s.client)
			switch {
			case err == nil:
				values[name] = value
			case jvc.NeedsReconnect(err):
				return statusMsg{values: values, err: err}
			default:
				values[name] = "-"
			}
		}
		return statusMsg{values: values}
	}
}

func (m controlModel) execCmd(command string) tea.Cmd {
	cm := m.connMgr
	return func() tea.Msg {
		replies, err := cm.s.client.ExecCommand(cm.ctx, command)
		return commandResultMsg{command: command, replies: replies, err: err}
	}
}

// handleError logs err and starts reconnecting when the connection is gone
func (m *controlModel) handleError(what string, err error) tea.Cmd {
	if errors.Is(err, jvc.ErrRejected) {
		m.addLogEntry(what+": rejected by projector", true)
		return nil
	}
	m.addLogEntry(fmt.Sprintf("%s: %v", what, err), true)
	if !jvc.NeedsReconnect(err) || m.connectionLost {
		return nil
	}
	m.connectionLost = true
	m.addLogEntry("Connection lost, reconnecting", true)
	return m.connMgr.reconnect
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 2
	if listHeight < 8 {
		listHeight = 8
	}
	m.keyList.SetSize(28, listHeight)
}
