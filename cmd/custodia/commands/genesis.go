// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/custodia-foundation/custodia/cmd/custodia/cli"
	"github.com/custodia-foundation/custodia/lib/config"
)

func genesisCommand() *cli.Command {
	return &cli.Command{
		Name:    "genesis",
		Summary: "Work with genesis seed files",
		Subcommands: []*cli.Command{
			genesisCheckCommand(),
		},
	}
}

func genesisCheckCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "check",
		Summary: "Validate a genesis seed file",
		Description: `Parse and validate a genesis seed file without applying it. Checks
that addresses are well formed, every target's adapter is in the
adapter list, and every policy names exactly one of selector or
signature.`,
		Usage: "custodia genesis check [path]",
		Examples: []cli.Example{
			{
				Description: "Check the configured genesis file",
				Command:     "custodia genesis check",
			},
			{
				Description: "Check a specific file",
				Command:     "custodia genesis check ./genesis.jsonc",
			},
		},
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file path (default: $CUSTODIA_CONFIG)")
			return fs
		},
		Run: func(args []string) error {
			var path string
			switch len(args) {
			case 0:
				cfg, err := loadConfig(configPath)
				if err != nil {
					return err
				}
				path = cfg.Paths.Genesis
			case 1:
				path = args[0]
			default:
				return fmt.Errorf("usage: custodia genesis check [path]")
			}
			gen, err := config.LoadGenesis(path)
			if err != nil {
				return err
			}
			fmt.Printf("%s: ok\n", path)
			fmt.Printf("  adapters        %d\n", len(gen.Adapters))
			fmt.Printf("  targets         %d\n", len(gen.Targets))
			fmt.Printf("  policies        %d\n", len(gen.Policies))
			fmt.Printf("  operators       %d\n", len(gen.Operators))
			fmt.Printf("  implementations %d\n", len(gen.Implementations))
			return nil
		},
	}
}
