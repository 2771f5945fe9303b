// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the custodia CLI command tree. The binary
// manages the platform's durable state from outside a running host:
// scheduling and canceling timelock proposals, inspecting the queue,
// tailing and verifying the audit log, and checking genesis seeds.
//
// Matured proposals are applied by the host process against its live
// registry, policy, and router state; the CLI deliberately has no
// execute path.
package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/custodia-foundation/custodia/cmd/custodia/cli"
	"github.com/custodia-foundation/custodia/lib/config"
	"github.com/custodia-foundation/custodia/lib/schema"
	"github.com/custodia-foundation/custodia/lib/sqlitepool"
	"github.com/custodia-foundation/custodia/lib/timelock"
	"github.com/custodia-foundation/custodia/lib/version"
)

// Root builds and returns the complete custodia CLI command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "custodia",
		Description: `Custodia: agent wallet platform administration.

Schedule and inspect timelocked admin operations, audit the event
log, and validate genesis seeds.`,
		Subcommands: []*cli.Command{
			proposeCommand(),
			cancelCommand(),
			queueCommand(),
			auditCommand(),
			genesisCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("custodia %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Schedule an adapter registration",
				Command:     "custodia propose --as 0xAB.. --kind register_adapter --adapter 0xCD..",
			},
			{
				Description: "List pending proposals",
				Command:     "custodia queue",
			},
			{
				Description: "Verify the audit log's hash chain",
				Command:     "custodia audit verify",
			},
		},
	}
}

// loadConfig resolves the configuration: an explicit --config path
// wins, otherwise the CUSTODIA_CONFIG environment variable.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openQueue opens the timelock queue database under the configured
// database directory, creating the schema on first touch.
func openQueue(cfg *config.Config) (*sqlitepool.Pool, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(cfg.Paths.Database, "timelock.db"),
		PoolSize: 2,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, timelock.Schema, nil)
		},
	})
}

// detachedApplier rejects execution attempts. The CLI manages the
// queue; applying matured ops against live platform state is the
// host's job.
type detachedApplier struct{}

func (detachedApplier) Apply(op schema.AdminOp) error {
	return errors.New("matured proposals are applied by the custodia host, not the CLI")
}

// newTimelock constructs a queue handle from the configured roles.
func newTimelock(cfg *config.Config, pool *sqlitepool.Pool) (*timelock.Timelock, error) {
	proposers, err := cfg.Roles.ProposerAddresses()
	if err != nil {
		return nil, err
	}
	executors, err := cfg.Roles.ExecutorAddresses()
	if err != nil {
		return nil, err
	}
	emergency, err := cfg.Roles.EmergencyAddresses()
	if err != nil {
		return nil, err
	}
	delay, err := cfg.Timelock.Delay()
	if err != nil {
		return nil, err
	}
	return timelock.New(timelock.Config{
		Proposers: proposers,
		Executors: executors,
		Emergency: emergency,
		MinDelay:  delay,
		Store:     timelock.NewStore(pool),
		Applier:   detachedApplier{},
	})
}
