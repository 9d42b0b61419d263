package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"dailybrief/internal/brief"
	"dailybrief/internal/core"
)

// NewBriefCmd creates the brief command group.
func NewBriefCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brief",
		Short: "Build and inspect daily briefs",
	}
	cmd.AddCommand(newBriefBuildCmd())
	cmd.AddCommand(newBriefShowCmd())
	return cmd
}

func newBriefBuildCmd() *cobra.Command {
	var (
		date          string
		mode          string
		maxItems      int
		maxPerTopic   int
		lookbackHours int
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rank recent items and assemble the brief for a date",
		Long: `Rank all analyzed items in the lookback window, apply the selection caps,
and assemble the brief for a (date, mode) slot. Rebuilding the same slot
replaces the previous selection. Topic narratives are generated for every
enabled topic with at least two items in the window.

Examples:
  # Build today's morning brief
  dailybrief brief build

  # Rebuild a past date with custom caps
  dailybrief brief build --date 2026-08-28 --max-items 10 --max-per-topic 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := brief.Options{}
			if cmd.Flags().Changed("max-items") {
				opts.MaxItems = &maxItems
			}
			if cmd.Flags().Changed("max-per-topic") {
				opts.MaxPerTopic = &maxPerTopic
			}
			if cmd.Flags().Changed("lookback-hours") {
				opts.LookbackHours = &lookbackHours
			}
			return runBriefBuild(date, mode, opts)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "brief date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&mode, "mode", "morning", "brief mode slot")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "total item cap (default from config)")
	cmd.Flags().IntVar(&maxPerTopic, "max-per-topic", 0, "per-topic item cap (default from config)")
	cmd.Flags().IntVar(&lookbackHours, "lookback-hours", 0, "candidate window in hours (default from config)")
	return cmd
}

func runBriefBuild(date, mode string, opts brief.Options) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()
	if err := e.withAI(); err != nil {
		return err
	}

	runID, err := e.supervisor.Start(core.RunBuildBrief, e.cfg.RunTimeout(),
		map[string]any{"trigger": "cli", "date": date, "mode": mode},
		func(ctx context.Context, runID int64) error {
			return e.builder.Build(ctx, runID, date, mode, opts)
		})
	if err != nil {
		return err
	}
	return e.waitAndReport(runID)
}

func newBriefShowCmd() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "show <date>",
		Short: "Print a built brief",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBriefShow(args[0], mode)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "morning", "brief mode slot")
	return cmd
}

func runBriefShow(date, mode string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	briefRecord, items, topicBriefs, found, err := e.store.GetBriefByDate(date, mode)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no brief found for %s/%s", date, mode)
	}

	fmt.Printf("Brief %s (%s), %d items, %d topic briefs\n\n",
		briefRecord.Date, briefRecord.Mode, len(items), len(topicBriefs))
	for _, item := range items {
		ci, err := e.store.GetContentItem(item.ContentItemID)
		if err != nil {
			fmt.Printf("%2d. item %d\n    %s\n", item.Rank, item.ContentItemID, item.Reason)
			continue
		}
		fmt.Printf("%2d. %s\n    %s\n    %s\n", item.Rank, ci.Title, ci.URL, item.Reason)
	}
	for _, tb := range topicBriefs {
		topic, err := e.store.GetTopic(tb.TopicID)
		name := fmt.Sprintf("topic %d", tb.TopicID)
		if err == nil {
			name = topic.Name
		}
		fmt.Printf("\n## %s\n\n%s\n\n%s\n", name, tb.SummaryShort, tb.SummaryFull)
	}
	return nil
}
