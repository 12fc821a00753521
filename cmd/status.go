// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every projector setting",
	Long: `Query every readable setting and print one line per setting.

Settings that the projector rejects (for example picture settings while in
standby) are shown as "-".`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var getCmd = &cobra.Command{
	Use:   "get <setting> [setting...]",
	Short: "Query individual settings",
	Long: `Query one or more settings by name. Run "jvcctl categories" for the
list of names.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGet,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List setting names and their values",
	Args:  cobra.NoArgs,
	RunE:  runCategories,
}

func init() {
	rootCmd.AddCommand(statusCmd, getCmd, categoriesCmd)
}

// query reads one setting and renders it
type query struct {
	name string
	run  func(ctx context.Context, c *jvc.Client) (string, error)
}

// queries returns every setting in display order
func queries() []query {
	var qs []query
	for _, category := range jvc.Categories() {
		category := category
		qs = append(qs, query{
			name: category.Name(),
			run: func(ctx context.Context, c *jvc.Client) (string, error) {
				state, err := c.State(ctx, category)
				if err != nil {
					return "", err
				}
				if state.Unknown() {
					return fmt.Sprintf("%s (code %q)", state.Name, state.Code), nil
				}
				return state.Name, nil
			},
		})
	}

	return append(qs,
		query{name: jvc.PowerOn.Name(), run: func(ctx context.Context, c *jvc.Client) (string, error) {
			on, err := c.IsOn(ctx)
			return strconv.FormatBool(on), err
		}},
		query{name: jvc.LowLatencyOn.Name(), run: func(ctx context.Context, c *jvc.Client) (string, error) {
			on, err := c.IsLowLatencyOn(ctx)
			return strconv.FormatBool(on), err
		}},
		query{name: "lamp_time", run: func(ctx context.Context, c *jvc.Client) (string, error) {
			hours, err := c.LampTime(ctx)
			return fmt.Sprintf("%d h", hours), err
		}},
		query{name: "software_version", run: func(ctx context.Context, c *jvc.Client) (string, error) {
			return c.SoftwareVersion(ctx)
		}},
	)
}

func lookupQuery(name string) (query, bool) {
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for _, q := range queries() {
		if q.name == name {
			return q, true
		}
	}
	return query{}, false
}

func queryNames() []string {
	var names []string
	for _, q := range queries() {
		names = append(names, q.name)
	}
	return names
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Connection: %s\n\n", s.linkInfo)
	for _, q := range queries() {
		value, err := q.run(ctx, s.client)
		switch {
		case err == nil:
		case jvc.IsFatal(err):
			return err
		case errors.Is(err, jvc.ErrRejected), errors.Is(err, jvc.ErrCommandTimedOut):
			logger.WithError(err).Debugf("%s unavailable", q.name)
			value = "-"
		case jvc.NeedsReconnect(err):
			value = "error: " + err.Error()
			if rerr := s.client.Reconnect(ctx); rerr != nil {
				return rerr
			}
		default:
			value = "error: " + err.Error()
		}
		fmt.Printf("  %-20s %s\n", q.name, value)
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	var qs []query
	for _, name := range args {
		q, ok := lookupQuery(name)
		if !ok {
			return fmt.Errorf("%w: %q (run \"jvcctl categories\")", jvc.ErrUnknownCommand, name)
		}
		qs = append(qs, q)
	}

	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, q := range qs {
		value, err := q.run(ctx, s.client)
		if err != nil {
			return fmt.Errorf("%s: %w", q.name, err)
		}
		if len(qs) == 1 {
			fmt.Println(value)
		} else {
			fmt.Printf("%s: %s\n", q.name, value)
		}
	}
	return nil
}

func runCategories(cmd *cobra.Command, args []string) error {
	fmt.Println("Settings (jvcctl get <name>):")
	for _, category := range jvc.Categories() {
		fmt.Printf("  %-20s %s\n", category.Name(), strings.Join(category.Names(), ", "))
	}
	fmt.Printf("  %-20s true, false\n", jvc.PowerOn.Name())
	fmt.Printf("  %-20s true, false\n", jvc.LowLatencyOn.Name())
	fmt.Printf("  %-20s hours\n", "lamp_time")
	fmt.Printf("  %-20s version string\n", "software_version")

	fmt.Println("\nCommands (jvcctl exec \"<group>, <value>\"):")
	for _, group := range jvc.OperationGroups() {
		category, _ := jvc.OperationGroup(group)
		fmt.Printf("  %-20s %s\n", group, strings.Join(category.Names(), ", "))
	}
	return nil
}
