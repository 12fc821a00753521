// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	powerWait     bool
	powerInterval time.Duration
	powerAttempts int
)

var powerCmd = &cobra.Command{
	Use:   "power",
	Short: "Switch the projector on or off",
	Long: `Switch the projector on or off, or report its power state.

With --wait, "power on" polls the power state until the lamp or laser is on.
Warm-up typically takes a minute or more; the wait gives up after --attempts
inquiries spaced --interval apart.`,
}

var powerOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Power on",
	Args:  cobra.NoArgs,
	RunE:  runPowerOn,
}

var powerOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Power off (standby)",
	Args:  cobra.NoArgs,
	RunE:  runPowerOff,
}

var powerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the power state",
	Args:  cobra.NoArgs,
	RunE:  runPowerStatus,
}

func init() {
	rootCmd.AddCommand(powerCmd)
	powerCmd.AddCommand(powerOnCmd, powerOffCmd, powerStatusCmd)

	powerOnCmd.Flags().BoolVarP(&powerWait, "wait", "w", false, "Wait until the projector is on")
	powerOnCmd.Flags().DurationVar(&powerInterval, "interval", 0, "Poll interval while waiting (default from config)")
	powerOnCmd.Flags().IntVar(&powerAttempts, "attempts", 0, "Maximum power inquiries while waiting (default from config)")
}

func runPowerOn(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if !powerWait {
		if _, err := s.client.PowerOn(ctx); err != nil {
			return err
		}
		fmt.Println("Power on sent")
		return nil
	}

	interval := settings.Polling.Interval
	if cmd.Flags().Changed("interval") {
		interval = powerInterval
	}
	attempts := settings.Polling.Attempts
	if cmd.Flags().Changed("attempts") {
		attempts = powerAttempts
	}

	on, err := s.client.IsOn(ctx)
	if err == nil && on {
		fmt.Println("Projector is already on")
		return nil
	}
	if _, err := s.client.PowerOn(ctx); err != nil {
		return err
	}

	fmt.Printf("Waiting for warm-up (up to %d checks, %s apart)...\n", attempts, interval)
	start := time.Now()
	used, err := s.client.WaitUntil(ctx, s.client.IsOn, interval, attempts)
	if err != nil {
		return fmt.Errorf("after %d checks: %w", used, err)
	}
	fmt.Printf("Projector is on (%d checks, %s)\n", used, time.Since(start).Round(time.Second))
	return nil
}

func runPowerOff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.client.PowerOff(ctx); err != nil {
		return err
	}
	fmt.Println("Power off sent")
	return nil
}

func runPowerStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	state, err := s.client.PowerState(ctx)
	if err != nil {
		return err
	}
	fmt.Println(state)
	return nil
}
