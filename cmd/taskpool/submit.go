package main

import (
	"fmt"
	"os/exec"
	"strings"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ldi/taskpool/pkg/deadline"
	"github.com/ldi/taskpool/pkg/pool"
	"github.com/ldi/taskpool/pkg/task"
)

func newSubmitCmd() *cobra.Command {
	var n int
	var command string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit N copies of a shell command to the pool and wait for them to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			if command == "" {
				return fmt.Errorf("--cmd is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			p := pool.New(cfg.MaxThreads, cfg.MaxQueueLen, cfg.IdleTimeout(), cfg.StackSizeKB)
			defer p.Close()

			fields := strings.Fields(command)
			name, cmdArgs := fields[0], fields[1:]

			log.Info().Int("n", n).Str("cmd", command).Msg("submitting batch")

			var succeeded, failed atomic.Int64
			p.Subscribe(func(o pool.Outcome) {
				if o.State == task.Completed {
					succeeded.Add(1)
				} else {
					failed.Add(1)
				}
			})

			bar := progressbar.NewOptions(n,
				progressbar.OptionSetDescription("submitting"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			handles := make([]*pool.Handle, 0, n)
			for i := 0; i < n; i++ {
				h := p.Submit(func() error {
					return exec.Command(name, cmdArgs...).Run()
				}, nil)
				handles = append(handles, h)
				_ = bar.Add(1)
			}

			for _, h := range handles {
				h.Wait(false, deadline.Infinite())
			}
			bar.Finish()

			log.Info().Int64("succeeded", succeeded.Load()).Int64("failed", failed.Load()).Msg("batch finished")
			fmt.Printf("done: %d succeeded, %d failed\n", succeeded.Load(), failed.Load())
			return nil
		},
	}

	cmd.Flags().IntVar(&n, "n", 1, "number of copies to submit")
	cmd.Flags().StringVar(&command, "cmd", "", "shell command to run (space-split, no shell expansion)")
	return cmd
}
