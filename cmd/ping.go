// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
)

var (
	pingDuration time.Duration
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test connection stability",
	Long: `Send a power inquiry every --interval for --duration and report each
round trip, then print exchange statistics.

A connection loss ends the test as failed. Timeouts and rejections are counted
and the test continues.`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().DurationVarP(&pingDuration, "duration", "d", 30*time.Second, "Test duration")
	pingCmd.Flags().DurationVarP(&pingInterval, "interval", "i", time.Second, "Time between inquiries")
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Connection Stability Test\n")
	fmt.Printf("Connection: %s\n", s.linkInfo)
	fmt.Printf("Duration: %s\n\n", pingDuration)

	s.stats.Reset()
	endTime := time.Now().Add(pingDuration)
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for seq := 1; time.Now().Before(endTime); seq++ {
		start := time.Now()
		state, err := s.client.PowerState(ctx)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			fmt.Printf("[%s] #%d %s in %s\n", start.Format("15:04:05.000"), seq, state, elapsed.Round(time.Microsecond))
		case jvc.IsFatal(err):
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			fmt.Printf("\n--- Test Results ---\n")
			fmt.Print(s.stats.String())
			fmt.Printf("Result: FAILED (connection error)\n")
			return err
		default:
			fmt.Printf("[%s] #%d error: %v\n", start.Format("15:04:05.000"), seq, err)
		}

		select {
		case <-ctx.Done():
			endTime = time.Now()
		case <-ticker.C:
		}
	}

	fmt.Printf("\n--- Test Results ---\n")
	fmt.Print(s.stats.String())
	if s.stats.Errors() > 0 {
		fmt.Printf("Result: DEGRADED (%d errors)\n", s.stats.Errors())
		return nil
	}
	fmt.Printf("Result: PASSED (connection stable)\n")
	return nil
}
