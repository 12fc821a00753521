// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
)

var controlRefresh time.Duration

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling the projector",
	Long: `Control the projector via an interactive terminal UI.

Features:
  - Remote key list (menu navigation, power)
  - Live status panel, refreshed periodically
  - Free-form "group, value" command input
  - Exchange statistics and event log
  - Automatic reconnection on connection loss

Tab switches between the key list and the command input. Enter sends the
selected key or the typed command. r refreshes the status panel.`,
	Args: cobra.NoArgs,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().DurationVar(&controlRefresh, "refresh", 5*time.Second, "Status refresh interval")
}

// connectionManager owns the session for the TUI and forwards exchange
// records as messages
type connectionManager struct {
	s      *session
	ctx    context.Context
	p      *tea.Program
	events chan jvc.ExchangeRecord
}

// ObserveExchange queues rec for the TUI. Records are dropped when the queue
// is full; the observer runs with the exchange gate held.
func (cm *connectionManager) ObserveExchange(rec jvc.ExchangeRecord) {
	select {
	case cm.events <- rec:
	default:
	}
}

func runControl(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cm := &connectionManager{
		ctx:    ctx,
		events: make(chan jvc.ExchangeRecord, 64),
	}

	s, err := connect(ctx, cm)
	if err != nil {
		return err
	}
	cm.s = s
	defer s.Close()

	// Logs would tear the alt screen; the event log shows exchanges instead
	logger.SetOutput(io.Discard)

	m := initialControlModel(cm)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	cm.p = p

	go cm.forwardEvents()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

func (cm *connectionManager) forwardEvents() {
	for {
		select {
		case <-cm.ctx.Done():
			return
		case rec := <-cm.events:
			cm.p.Send(exchangeMsg{rec: rec})
		}
	}
}

// reconnect reopens the connection with exponential backoff. It returns nil
// if the context ends first.
func (cm *connectionManager) reconnect() tea.Msg {
	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		err := cm.s.client.Reconnect(cm.ctx)
		if err == nil {
			return reconnectedMsg{linkInfo: cm.s.linkInfo}
		}
		cm.p.Send(reconnectFailedMsg{err: err, retryIn: min(backoff*2, maxBackoff)})

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
