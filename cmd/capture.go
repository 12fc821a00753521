// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
)

var captureSummary bool

var captureCmd = &cobra.Command{
	Use:   "capture <file>",
	Short: "Display a capture file in human-readable format",
	Long: `Decode a capture written with --capture and print every exchange with
timestamp, command, raw frames and decoded result.

With --summary only the exchange statistics are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().BoolVar(&captureSummary, "summary", false, "Print statistics only")
}

func runCapture(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	stats := jvc.NewStatistics()
	sessions := map[string]bool{}
	first := true

	err = jvc.ReadCapture(f, func(rec jvc.ExchangeRecord) error {
		stats.ObserveExchange(rec)
		if first {
			stats.StartTime = rec.Started
			first = false
		}
		if !sessions[rec.Session] {
			sessions[rec.Session] = true
			if !captureSummary {
				fmt.Printf("--- session %s ---\n", rec.Session)
			}
		}
		if !captureSummary {
			fmt.Print(jvc.FormatRecord(rec))
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n%d session(s)\n", len(sessions))
	fmt.Print(stats.String())
	return nil
}
