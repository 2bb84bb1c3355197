package main

import (
	"github.com/spf13/cobra"

	"github.com/ldi/taskpool/internal/audit"
	"github.com/ldi/taskpool/internal/dashboard"
	"github.com/ldi/taskpool/pkg/pool"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the interactive dashboard",
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

			log.Info().Int("max_threads", cfg.MaxThreads).Int("max_queue_len", cfg.MaxQueueLen).
				Str("audit_db", cfg.AuditDBPath).Msg("starting dashboard")
			err = dashboard.Run(p)
			log.Info().Msg("dashboard exited")
			return err
		},
	}
}
