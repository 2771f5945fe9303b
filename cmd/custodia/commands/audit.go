// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/custodia-foundation/custodia/cmd/custodia/cli"
	"github.com/custodia-foundation/custodia/lib/auditstore"
	"github.com/custodia-foundation/custodia/lib/sqlitepool"
)

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:    "audit",
		Summary: "Inspect and verify the audit log",
		Description: `Inspect the hash-chained audit log written by the host. The tail
subcommand shows recent events newest first; verify walks the whole
chain and reports tampering.`,
		Subcommands: []*cli.Command{
			auditTailCommand(),
			auditVerifyCommand(),
		},
	}
}

func auditTailCommand() *cli.Command {
	var (
		configPath string
		kind       string
		limit      int
	)
	return &cli.Command{
		Name:    "tail",
		Summary: "Show recent audit events, newest first",
		Usage:   "custodia audit tail [--kind <kind>] [--limit <n>]",
		Examples: []cli.Example{
			{
				Description: "Last 20 executed actions",
				Command:     "custodia audit tail --kind action_executed --limit 20",
			},
		},
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("tail", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file path (default: $CUSTODIA_CONFIG)")
			fs.StringVar(&kind, "kind", "", "only show events of this kind")
			fs.IntVar(&limit, "limit", 50, "maximum events to show")
			return fs
		},
		Run: func(args []string) error {
			store, pool, err := openAudit(configPath)
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := context.Background()
			var records []auditstore.Record
			if kind != "" {
				records, err = store.ByKind(ctx, kind, limit)
			} else {
				records, err = store.Tail(ctx, limit)
			}
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no events")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tTIME\tKIND\tPAYLOAD")
			for _, r := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
					r.Seq, r.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
					r.Kind, r.Payload)
			}
			return w.Flush()
		},
	}
}

func auditVerifyCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "verify",
		Summary: "Verify the audit log's hash chain",
		Usage:   "custodia audit verify",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			fs.StringVar(&configPath, "config", "", "config file path (default: $CUSTODIA_CONFIG)")
			return fs
		},
		Run: func(args []string) error {
			store, pool, err := openAudit(configPath)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := store.Verify(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("chain intact: %d events\n", n)
			return nil
		},
	}
}

// openAudit opens the audit log database read/write. The caller owns
// the returned pool.
func openAudit(configPath string) (*auditstore.Store, *sqlitepool.Pool, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, nil, err
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(cfg.Paths.Database, "audit.db"),
		PoolSize: 2,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, auditstore.Schema, nil)
		},
	})
	if err != nil {
		return nil, nil, err
	}
	store, err := auditstore.Open(auditstore.Config{
		Pool:              pool,
		CompressThreshold: cfg.Audit.CompressThreshold,
	})
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool, nil
}
