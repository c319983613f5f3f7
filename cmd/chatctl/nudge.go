package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/app"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/nudge"
)

func newNudgeCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nudge",
		Short: "Re-engagement nudges",
	}
	cmd.AddCommand(newNudgeTickCmd(e))
	return cmd
}

func newNudgeTickCmd(e *env) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one nudge tick now and print the result as JSON",
		Long: "tick runs a single pass of the nudge job, the same pass the scheduler runs every interval. " +
			"It honours the run lock, so it is a no-op while another tick holds it.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if force {
				e.cfg.Nudge.Enabled = true
			}
			a, err := app.New(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return writeResult(cmd.OutOrStdout(), a.NudgeJob().Tick(cmd.Context()))
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even when NUDGE_ENABLED is off")
	return cmd
}

func writeResult(w io.Writer, res nudge.Result) error {
	return json.NewEncoder(w).Encode(res)
}
