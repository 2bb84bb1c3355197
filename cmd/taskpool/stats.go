package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ldi/taskpool/internal/audit"
)

func newStatsCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize recorded task outcomes from the audit store",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := dbPath
			if path == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				path = cfg.AuditDBPath
			}

			store, err := audit.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			total, err := store.Count(ctx)
			if err != nil {
				return err
			}
			byState, err := store.CountByState(ctx)
			if err != nil {
				return err
			}

			log.Debug().Str("db", path).Int("total", total).Msg("read audit store")
			fmt.Printf("total recorded: %d\n", total)
			for _, state := range []string{"completed", "failed", "discarded"} {
				fmt.Printf("  %-10s %d\n", state, byState[state])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the audit database (default: from config)")
	return cmd
}
