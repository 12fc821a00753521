// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
)

var execCmd = &cobra.Command{
	Use:   `exec "<group>, <value>" [...]`,
	Short: "Send operation commands",
	Long: `Send one or more operation commands in order, for example:

  jvcctl exec "menu, menu" "menu, down" "menu, ok"
  jvcctl exec "picture-mode, frame-adapt-hdr"

Every command is checked before anything is sent. Sending stops at the first
command the projector rejects. Run "jvcctl categories" for the groups and
values.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	replies, err := s.client.ExecCommand(ctx, args...)
	for i, reply := range replies {
		fmt.Printf("%s: %s\n", args[i], reply)
	}
	if err != nil {
		if errors.Is(err, jvc.ErrUnknownCommand) {
			return err
		}
		return fmt.Errorf("%s: %w", args[len(replies)], err)
	}
	return nil
}
