// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/jvcctl/pkg/jvc/jvctest"
)

var (
	emulateListen   string
	emulatePassword string
	emulateWarmup   int
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a simulated projector",
	Long: `Listen for control connections and answer like a projector.

The simulated projector performs the network handshake, acknowledges
operations and answers inquiries from an in-memory state table. "power on"
passes through a warm-up lasting --warmup power inquiries.

Useful for trying jvcctl without hardware:

  jvcctl emulate --listen 127.0.0.1:20554 &
  jvcctl --host 127.0.0.1 power on --wait --interval 200ms`,
	Args: cobra.NoArgs,
	RunE: runEmulate,
}

func init() {
	rootCmd.AddCommand(emulateCmd)
	emulateCmd.Flags().StringVarP(&emulateListen, "listen", "l", ":20554", "Listen address")
	emulateCmd.Flags().StringVar(&emulatePassword, "password", "", "Require this handshake password")
	emulateCmd.Flags().IntVar(&emulateWarmup, "warmup", 3, "Power inquiries answered with warming before on")
}

func runEmulate(cmd *cobra.Command, args []string) error {
	l, err := net.Listen("tcp", emulateListen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", emulateListen, err)
	}

	d := jvctest.NewDevice()
	d.Password = emulatePassword
	d.Warmup = emulateWarmup
	d.Logger = logger

	fmt.Printf("Simulated projector listening on %s\n", l.Addr())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	go func() {
		<-cmd.Context().Done()
		d.Close()
	}()

	if err := d.Serve(l); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
