package handlers

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dailybrief/internal/core"
)

// NewSourcesCmd creates the sources command group.
func NewSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage content sources",
	}
	cmd.AddCommand(newSourcesListCmd())
	cmd.AddCommand(newSourcesAddCmd())
	cmd.AddCommand(newSourcesEnableCmd(true))
	cmd.AddCommand(newSourcesEnableCmd(false))
	return cmd
}

func newSourcesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			sources, err := e.store.ListSources(false)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				fmt.Println("No sources configured.")
				return nil
			}
			fmt.Printf("%-6s %-16s %-8s %-8s %-24s %s\n", "ID", "KIND", "ENABLED", "WEIGHT", "NAME", "TARGET")
			for _, src := range sources {
				fmt.Printf("%-6d %-16s %-8t %-8d %-24s %s\n",
					src.ID, src.Kind, src.Enabled, src.Weight, src.Name, src.Target)
			}
			return nil
		},
	}
}

func newSourcesAddCmd() *cobra.Command {
	var (
		kind   string
		name   string
		weight int
		notes  string
	)

	cmd := &cobra.Command{
		Use:   "add <target>",
		Short: "Add a source",
		Long: `Add a content source. The target is the feed URL for RSS sources or the
channel feed URL for YouTube channels.

Examples:
  dailybrief sources add https://example.com/feed.xml --name "Example Blog"
  dailybrief sources add https://www.youtube.com/feeds/videos.xml?channel_id=UC123 \
    --kind youtube_channel --name "Example Channel" --weight 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			if name == "" {
				name = args[0]
			}
			src, err := e.store.CreateSource(core.Source{
				Kind:    core.SourceKind(kind),
				Name:    name,
				Target:  args[0],
				Enabled: true,
				Weight:  weight,
				Notes:   notes,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created source %d: %s (%s)\n", src.ID, src.Name, src.Kind)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "rss", "source kind (rss, youtube_channel)")
	cmd.Flags().StringVar(&name, "name", "", "human-readable name (default the target)")
	cmd.Flags().IntVar(&weight, "weight", 1, "ranking weight contribution (0-10)")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form operator notes")
	return cmd
}

func newSourcesEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <id>", "Enable a source"
	if !enable {
		use, short = "disable <id>", "Disable a source"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			src, err := e.store.GetSource(id)
			if err != nil {
				return err
			}
			src.Enabled = enable
			if err := e.store.UpdateSource(src); err != nil {
				return err
			}
			fmt.Printf("Source %d (%s) enabled=%t\n", src.ID, src.Name, src.Enabled)
			return nil
		},
	}
}
