// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// jvcctl - JVC D-ILA projector control
//
// A CLI tool for controlling and monitoring JVC D-ILA projectors over their
// network, serial or bridged control protocol.

package main

import (
	"os"

	"github.com/Thermoquad/jvcctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
