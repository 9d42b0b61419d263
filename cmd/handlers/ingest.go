package handlers

import (
	"context"

	"github.com/spf13/cobra"

	"dailybrief/internal/core"
)

// NewIngestCmd creates the ingest command.
func NewIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch new content from all enabled sources",
		Long: `Fetch every enabled feed source, normalize the entries, and insert new
content items. Items already seen (same title and URL) are skipped.

Examples:
  # Pull new content from all enabled sources
  dailybrief ingest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest()
		},
	}
}

func runIngest() error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	runID, err := e.supervisor.Start(core.RunIngest, e.cfg.RunTimeout(),
		map[string]any{"trigger": "cli"},
		func(ctx context.Context, runID int64) error {
			return e.ingester.Run(ctx, runID)
		})
	if err != nil {
		return err
	}
	return e.waitAndReport(runID)
}
