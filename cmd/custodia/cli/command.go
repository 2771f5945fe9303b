// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command-tree framework behind the custodia
// binary: nested subcommands, pflag parsing, structured help, and
// edit-distance suggestions for mistyped commands and flags.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the CLI tree. Leaves set Run; interior nodes
// set Subcommands and dispatch on their first positional argument.
type Command struct {
	// Name as typed by the user, e.g. "audit" or "tail".
	Name string

	// Summary is the one-liner shown in the parent's command listing.
	Summary string

	// Description is the long-form text at the top of this command's
	// own help output.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	// Examples render at the bottom of the help output.
	Examples []Example

	// Flags builds this command's flag set. Called on demand; nil
	// means the command takes no flags.
	Flags func() *pflag.FlagSet

	// Subcommands dispatched on the first positional argument.
	Subcommands []*Command

	// Run receives the arguments left after flag parsing.
	Run func(args []string) error

	parent *Command
}

// Example is one help-output usage example.
type Example struct {
	Description string
	Command     string
}

// Execute dispatches args through the tree, parses flags, and invokes
// the selected command.
func (c *Command) Execute(args []string) error {
	if len(args) > 0 && isHelp(args[0]) {
		c.PrintHelp(os.Stderr)
		return nil
	}

	if len(c.Subcommands) > 0 && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub := c.lookup(args[0])
		if sub == nil {
			return c.unknownCommand(args[0])
		}
		sub.parent = c
		return sub.Execute(args[1:])
	}

	if c.Run == nil {
		c.PrintHelp(os.Stderr)
		if len(args) > 0 {
			return fmt.Errorf("subcommand required (got flag %q)", args[0])
		}
		return fmt.Errorf("subcommand required")
	}

	rest, err := c.parseFlags(args)
	if err != nil {
		return err
	}
	return c.Run(rest)
}

// lookup returns the named subcommand, or nil.
func (c *Command) lookup(name string) *Command {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			return sub
		}
	}
	return nil
}

func (c *Command) unknownCommand(name string) error {
	hint := ""
	if match := suggestCommand(name, c.Subcommands); match != "" {
		hint = fmt.Sprintf(" (did you mean %q?)", match)
	}
	return fmt.Errorf("unknown command %q%s\n\nRun '%s --help' for usage.",
		name, hint, c.fullName())
}

// parseFlags applies the command's flag set and returns the leftover
// positional arguments. Parse errors come back with a suggestion for
// the nearest defined flag where one is close enough.
func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}
	fs := c.Flags()
	// pflag's own error printing is suppressed; errors are formatted
	// here so suggestions land on the same line.
	fs.SetOutput(io.Discard)
	err := fs.Parse(args)
	if err == nil {
		return fs.Args(), nil
	}
	if strings.Contains(err.Error(), "unknown flag") {
		// A fresh flag set: the failed parse may have consumed state.
		if match := suggestFlag(args, c.Flags()); match != "" {
			return nil, fmt.Errorf("%s (did you mean %s?)\n\nRun '%s --help' for usage.",
				err, match, c.fullName())
		}
	}
	return nil, fmt.Errorf("%s\n\nRun '%s --help' for usage.", err, c.fullName())
}

// PrintHelp writes the command's structured help text to w.
func (c *Command) PrintHelp(w io.Writer) {
	if text := c.Description; text != "" {
		fmt.Fprintf(w, "%s\n\n", text)
	} else if c.Summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.Summary)
	}

	fmt.Fprintf(w, "Usage:\n  %s\n", c.usageLine())
	c.writeCommands(w)
	c.writeFlags(w)
	c.writeExamples(w)

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", c.fullName())
	}
}

func (c *Command) usageLine() string {
	if c.Usage != "" {
		return c.Usage
	}
	if len(c.Subcommands) > 0 {
		return c.fullName() + " <command> [flags]"
	}
	return c.fullName() + " [flags]"
}

func (c *Command) writeCommands(w io.Writer) {
	if len(c.Subcommands) == 0 {
		return
	}
	fmt.Fprintf(w, "\nCommands:\n")
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	for _, sub := range c.Subcommands {
		fmt.Fprintf(tw, "  %s\t%s\n", sub.Name, sub.Summary)
	}
	tw.Flush()
}

func (c *Command) writeFlags(w io.Writer) {
	if c.Flags == nil {
		return
	}
	fs := c.Flags()
	var defaults strings.Builder
	fs.SetOutput(&defaults)
	fs.PrintDefaults()
	if defaults.Len() > 0 {
		fmt.Fprintf(w, "\nFlags:\n%s", defaults.String())
	}
}

func (c *Command) writeExamples(w io.Writer) {
	if len(c.Examples) == 0 {
		return
	}
	fmt.Fprintf(w, "\nExamples:\n")
	for _, example := range c.Examples {
		if example.Description != "" {
			fmt.Fprintf(w, "  # %s\n", example.Description)
		}
		fmt.Fprintf(w, "  %s\n", example.Command)
		if example.Description != "" {
			fmt.Fprintln(w)
		}
	}
}

// fullName is the space-joined path from the root, e.g.
// "custodia audit tail".
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelp(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}
