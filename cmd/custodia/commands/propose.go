// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/custodia-foundation/custodia/cmd/custodia/cli"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/schema"
)

func proposeCommand() *cli.Command {
	var (
		configPath     string
		as             string
		kind           string
		adapter        string
		target         string
		selector       string
		signature      string
		validator      string
		operator       string
		implementation string
		router         string
		salt           string
	)
	return &cli.Command{
		Name:    "propose",
		Summary: "Schedule an admin operation behind the timelock",
		Description: `Schedule an admin operation. The operation becomes executable by the
host once the configured minimum delay has elapsed. The proposal id is
derived from the operation and salt, so re-proposing the same op needs
a fresh salt.`,
		Usage: "custodia propose --as <proposer> --kind <kind> [op flags]",
		Examples: []cli.Example{
			{
				Description: "Map a vault target to the vault adapter",
				Command:     "custodia propose --as 0xAB.. --kind register_target --target 0x12.. --adapter 0x34..",
			},
			{
				Description: "Allow deposits on a target through a validator",
				Command:     "custodia propose --as 0xAB.. --kind add_policy --target 0x12.. --signature 'deposit(address,uint256)' --validator 0x56..",
			},
		},
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("propose", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file path (default: $CUSTODIA_CONFIG)")
			fs.StringVar(&as, "as", "", "proposer address")
			fs.StringVar(&kind, "kind", "", "operation kind (e.g. register_adapter, add_policy)")
			fs.StringVar(&adapter, "adapter", "", "adapter address")
			fs.StringVar(&target, "target", "", "target address")
			fs.StringVar(&selector, "selector", "", "call selector (0x-prefixed, 4 bytes)")
			fs.StringVar(&signature, "signature", "", "call signature to derive the selector from")
			fs.StringVar(&validator, "validator", "", "validator address")
			fs.StringVar(&operator, "operator", "", "operator address")
			fs.StringVar(&implementation, "implementation", "", "implementation id (0x-prefixed) or label")
			fs.StringVar(&router, "router", "", "router address")
			fs.StringVar(&salt, "salt", "", "proposal salt (default: random)")
			return fs
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			caller, err := ref.ParseAddress(as)
			if err != nil {
				return fmt.Errorf("--as: %w", err)
			}
			op := schema.AdminOp{Kind: schema.OpKind(kind)}
			if err := setAddr(&op.Adapter, "--adapter", adapter); err != nil {
				return err
			}
			if err := setAddr(&op.Target, "--target", target); err != nil {
				return err
			}
			if err := setAddr(&op.Validator, "--validator", validator); err != nil {
				return err
			}
			if err := setAddr(&op.Operator, "--operator", operator); err != nil {
				return err
			}
			if err := setAddr(&op.Router, "--router", router); err != nil {
				return err
			}
			op.Selector, err = resolveSelector(selector, signature)
			if err != nil {
				return err
			}
			if implementation != "" {
				if strings.HasPrefix(implementation, "0x") {
					op.Implementation, err = ref.ParseImplementationID(implementation)
					if err != nil {
						return fmt.Errorf("--implementation: %w", err)
					}
				} else {
					op.Implementation = ref.ImplementationIDOf(implementation)
				}
			}
			if salt == "" {
				salt = uuid.NewString()
			}

			pool, err := openQueue(cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			tl, err := newTimelock(cfg, pool)
			if err != nil {
				return err
			}

			ctx := context.Background()
			id, err := tl.Propose(ctx, caller, op, salt)
			if err != nil {
				return err
			}
			p, err := tl.Proposal(ctx, id)
			if err != nil {
				return err
			}
			fmt.Printf("proposal %s\n", id)
			fmt.Printf("salt     %s\n", salt)
			fmt.Printf("ready    %s\n", p.ReadyAt.UTC().Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

func cancelCommand() *cli.Command {
	var (
		configPath string
		as         string
	)
	return &cli.Command{
		Name:        "cancel",
		Summary:     "Cancel a pending proposal",
		Description: `Cancel a pending proposal. Only proposers may cancel, and a canceled id can never be reused.`,
		Usage:       "custodia cancel --as <proposer> <proposal-id>",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("cancel", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file path (default: $CUSTODIA_CONFIG)")
			fs.StringVar(&as, "as", "", "proposer address")
			return fs
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: custodia cancel --as <proposer> <proposal-id>")
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			caller, err := ref.ParseAddress(as)
			if err != nil {
				return fmt.Errorf("--as: %w", err)
			}
			pool, err := openQueue(cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			tl, err := newTimelock(cfg, pool)
			if err != nil {
				return err
			}
			if err := tl.Cancel(context.Background(), caller, args[0]); err != nil {
				return err
			}
			fmt.Printf("canceled %s\n", args[0])
			return nil
		},
	}
}

func queueCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:        "queue",
		Summary:     "List pending proposals",
		Description: `List pending proposals with their operation kind and maturity time.`,
		Usage:       "custodia queue",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("queue", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file path (default: $CUSTODIA_CONFIG)")
			return fs
		},
		Run: func(args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			pool, err := openQueue(cfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			tl, err := newTimelock(cfg, pool)
			if err != nil {
				return err
			}
			pending, err := tl.Pending(context.Background())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("no pending proposals")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSCHEDULED\tREADY")
			for _, p := range pending {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					p.ID, p.Op.Kind,
					p.ScheduledAt.UTC().Format("2006-01-02 15:04"),
					p.ReadyAt.UTC().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

// setAddr parses raw into dst when the flag was given.
func setAddr(dst *ref.Address, flag, raw string) error {
	if raw == "" {
		return nil
	}
	addr, err := ref.ParseAddress(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", flag, err)
	}
	*dst = addr
	return nil
}

// resolveSelector turns the --selector / --signature pair into a
// selector. At most one may be given.
func resolveSelector(selector, signature string) (ref.Selector, error) {
	switch {
	case selector != "" && signature != "":
		return ref.Selector{}, fmt.Errorf("--selector and --signature are mutually exclusive")
	case signature != "":
		return ref.SelectorOf(signature), nil
	case selector != "":
		sel, err := ref.ParseSelector(selector)
		if err != nil {
			return ref.Selector{}, fmt.Errorf("--selector: %w", err)
		}
		return sel, nil
	default:
		return ref.Selector{}, nil
	}
}
