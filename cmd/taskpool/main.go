// Command taskpool runs the bounded task pool: a dashboard for interactive
// use, a headless batch submitter, an MCP control surface for agent
// clients, and a stats reader against the audit store.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ldi/taskpool/internal/applog"
	"github.com/ldi/taskpool/internal/config"
)

var (
	cfgPath  string
	logLevel string
	pretty   bool

	log zerolog.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "taskpool",
		Short: "A bounded FIFO task pool with a TUI dashboard and an MCP control surface",
		Long: `taskpool runs an elastic worker pool behind four faces:

  run     interactive dashboard (with no subcommand, taskpool prints this help)
  submit  headless batch submission of N copies of a shell command
  mcp     MCP server exposing submit/status/cancel/stats/wait_idle tools
  stats   read the audit store's recorded task outcomes`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log = applog.New(cfg.LogLevel, pretty)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to taskpool.toml (default: searched)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable console logs instead of JSON")

	root.AddCommand(newRunCmd())
	root.AddCommand(newSubmitCmd())
	root.AddCommand(newMCPCmd())
	root.AddCommand(newStatsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}
