package main

import (
	"github.com/spf13/cobra"

	"github.com/ldi/taskpool/internal/audit"
	"github.com/ldi/taskpool/internal/mcpsrv"
	"github.com/ldi/taskpool/pkg/pool"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pool's control surface as an MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := audit.Open(cfg.AuditDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			p := pool.New(cfg.MaxThreads, cfg.MaxQueueLen, cfg.IdleTimeout(), cfg.StackSizeKB)
			defer p.Close()

			audit.Subscribe(p, store, func(err error) {
				log.Error().Err(err).Msg("audit: failed to record task outcome")
			})

			log.Info().Str("audit_db", cfg.AuditDBPath).Msg("serving MCP control surface over stdio")
			s := mcpsrv.NewServer(p)
			err = mcpsrv.Serve(s)
			log.Info().Msg("MCP server exited")
			return err
		},
	}
}
