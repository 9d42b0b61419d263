package handlers

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"dailybrief/internal/core"
)

// NewProcessCmd creates the process command for the AI pipeline.
func NewProcessCmd() *cobra.Command {
	var timeoutSeconds int

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run AI classification and extraction over unprocessed items",
		Long: `Run every unprocessed content item through the AI pipeline: topic
classification against enabled topics, then structured extraction (text or
video). The run fails when any item fails, so a clean SUCCESS means every
item was fully analyzed.

Requires a configured API key (ai.api_key, GEMINI_API_KEY, or
GOOGLE_AI_API_KEY).

Examples:
  # Process everything that has no extraction yet
  dailybrief process

  # Give a large backlog more headroom than the configured run timeout
  dailybrief process --timeout-seconds 1800`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(timeoutSeconds)
		},
	}
	cmd.Flags().IntVar(&timeoutSeconds, "timeout-seconds", 0, "Override the run timeout (0 uses the configured value)")
	return cmd
}

func runProcess(timeoutSeconds int) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.withAI(); err != nil {
		return err
	}

	timeout := e.cfg.RunTimeout()
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}

	runID, err := e.supervisor.Start(core.RunAI, timeout,
		map[string]any{"trigger": "cli"},
		func(ctx context.Context, runID int64) error {
			return e.processor.Run(ctx, runID)
		})
	if err != nil {
		return err
	}
	return e.waitAndReport(runID)
}
