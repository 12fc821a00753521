// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/jvcctl/pkg/jvc"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive command shell",
	Long: `Open one connection and run commands against it interactively.

Type "help" at the prompt for the command list.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

// shell is a readline loop over one session
type shell struct {
	s   *session
	rl  *readline.Instance
	out io.Writer
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "jvc> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    shellCompleter(),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	// Keep log lines from corrupting the prompt
	logger.SetOutput(rl.Stderr())

	sh := &shell{s: s, rl: rl, out: rl.Stdout()}
	fmt.Fprintf(sh.out, "Connected: %s\n", s.linkInfo)
	sh.printHelp()
	sh.run(ctx)
	return nil
}

func shellCompleter() *readline.PrefixCompleter {
	var getItems []readline.PrefixCompleterInterface
	for _, name := range queryNames() {
		getItems = append(getItems, readline.PcItem(name))
	}
	var execItems []readline.PrefixCompleterInterface
	for _, group := range jvc.OperationGroups() {
		execItems = append(execItems, readline.PcItem(group+","))
	}

	return readline.NewPrefixCompleter(
		readline.PcItem("get", getItems...),
		readline.PcItem("exec", execItems...),
		readline.PcItem("power",
			readline.PcItem("on"),
			readline.PcItem("off"),
			readline.PcItem("status"),
			readline.PcItem("wait"),
		),
		readline.PcItem("status"),
		readline.PcItem("stats"),
		readline.PcItem("reconnect"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func (sh *shell) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		line, err := sh.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(sh.out, "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		verb, rest, _ := strings.Cut(input, " ")
		rest = strings.TrimSpace(rest)

		switch strings.ToLower(verb) {
		case "help", "?":
			sh.printHelp()
		case "get", "g":
			sh.cmdGet(ctx, strings.Fields(rest))
		case "exec", "x":
			sh.cmdExec(ctx, rest)
		case "power", "p":
			sh.cmdPower(ctx, rest)
		case "status":
			sh.cmdStatus(ctx)
		case "stats":
			fmt.Fprint(sh.out, sh.s.stats.String())
		case "reconnect":
			sh.report(sh.s.client.Reconnect(ctx))
		case "quit", "exit", "q":
			fmt.Fprintln(sh.out, "Exiting...")
			return
		default:
			fmt.Fprintf(sh.out, "Unknown command: %s (type 'help' for commands)\n", verb)
		}
	}
}

func (sh *shell) printHelp() {
	fmt.Fprintln(sh.out, `
Commands:
  get <setting> [...]        Query settings (tab completes names)
  exec <group>, <value>      Send one operation, e.g. exec menu, down
  power on|off|status|wait   Power control; wait polls until on
  status                     Query every setting
  stats                      Exchange statistics for this session
  reconnect                  Close and reopen the connection
  help                       Show this help
  exit                       Leave the shell`)
}

func (sh *shell) cmdGet(ctx context.Context, names []string) {
	if len(names) == 0 {
		fmt.Fprintln(sh.out, "Usage: get <setting> [...]")
		return
	}
	for _, name := range names {
		q, ok := lookupQuery(name)
		if !ok {
			fmt.Fprintf(sh.out, "Unknown setting: %s\n", name)
			continue
		}
		value, err := q.run(ctx, sh.s.client)
		if err != nil {
			sh.report(err)
			continue
		}
		fmt.Fprintf(sh.out, "%s = %s\n", q.name, value)
	}
}

func (sh *shell) cmdExec(ctx context.Context, command string) {
	if command == "" {
		fmt.Fprintln(sh.out, "Usage: exec <group>, <value>")
		fmt.Fprintln(sh.out, "  Example: exec menu, menu")
		return
	}
	replies, err := sh.s.client.ExecCommand(ctx, command)
	if err != nil {
		sh.report(err)
		return
	}
	fmt.Fprintln(sh.out, replies[0])
}

func (sh *shell) cmdPower(ctx context.Context, arg string) {
	c := sh.s.client
	switch strings.ToLower(arg) {
	case "on":
		_, err := c.PowerOn(ctx)
		sh.report(err)
	case "off":
		_, err := c.PowerOff(ctx)
		sh.report(err)
	case "", "status":
		state, err := c.PowerState(ctx)
		if err != nil {
			sh.report(err)
			return
		}
		fmt.Fprintln(sh.out, state)
	case "wait":
		fmt.Fprintln(sh.out, "Waiting for the projector to turn on...")
		attempts, err := c.EnsureOn(ctx)
		if err != nil {
			sh.report(err)
			return
		}
		fmt.Fprintf(sh.out, "On after %d checks\n", attempts)
	default:
		fmt.Fprintln(sh.out, "Usage: power on|off|status|wait")
	}
}

func (sh *shell) cmdStatus(ctx context.Context) {
	for _, q := range queries() {
		value, err := q.run(ctx, sh.s.client)
		if err != nil {
			if jvc.IsFatal(err) {
				sh.report(err)
				return
			}
			value = "-"
		}
		fmt.Fprintf(sh.out, "  %-20s %s\n", q.name, value)
	}
}

// report prints OK or the error
func (sh *shell) report(err error) {
	if err == nil {
		fmt.Fprintln(sh.out, "OK")
		return
	}
	fmt.Fprintf(sh.out, "Error: %v\n", err)
	if jvc.NeedsReconnect(err) {
		fmt.Fprintln(sh.out, "Connection lost; use 'reconnect' to open it again")
	}
}
