package handlers

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dailybrief/internal/core"
)

// NewTopicsCmd creates the topics command group.
func NewTopicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage classification topics",
	}
	cmd.AddCommand(newTopicsListCmd())
	cmd.AddCommand(newTopicsAddCmd())
	cmd.AddCommand(newTopicsEnableCmd(true))
	cmd.AddCommand(newTopicsEnableCmd(false))
	return cmd
}

func newTopicsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			topics, err := e.store.ListTopics(false)
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				fmt.Println("No topics configured.")
				return nil
			}
			fmt.Printf("%-6s %-10s %-10s %s\n", "ID", "PRIORITY", "ENABLED", "NAME")
			for _, t := range topics {
				fmt.Printf("%-6d %-10d %-10t %s\n", t.ID, t.Priority, t.Enabled, t.Name)
			}
			return nil
		},
	}
}

func newTopicsAddCmd() *cobra.Command {
	var (
		description  string
		includeRules string
		excludeRules string
		priority     int
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			topic, err := e.store.CreateTopic(core.Topic{
				Name:         args[0],
				Description:  description,
				IncludeRules: includeRules,
				ExcludeRules: excludeRules,
				Priority:     priority,
				Enabled:      true,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created topic %d: %s\n", topic.ID, topic.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "what the topic covers")
	cmd.Flags().StringVar(&includeRules, "include", "", "hints for content that belongs")
	cmd.Flags().StringVar(&excludeRules, "exclude", "", "hints for content that does not")
	cmd.Flags().IntVar(&priority, "priority", 0, "ranking priority, higher ranks first")
	return cmd
}

func newTopicsEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <id>", "Enable a topic"
	if !enable {
		use, short = "disable <id>", "Disable a topic"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid topic id %q", args[0])
			}
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.close()

			topic, err := e.store.GetTopic(id)
			if err != nil {
				return err
			}
			topic.Enabled = enable
			if err := e.store.UpdateTopic(topic); err != nil {
				return err
			}
			fmt.Printf("Topic %d (%s) enabled=%t\n", topic.ID, topic.Name, topic.Enabled)
			return nil
		},
	}
}
