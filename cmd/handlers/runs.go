package handlers

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunsCmd creates the runs command group.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and cancel runs",
	}
	cmd.AddCommand(newRunsListCmd())
	cmd.AddCommand(newRunsShowCmd())
	cmd.AddCommand(newRunsCancelCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsList(limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}

func runRunsList(limit int) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	runList, err := e.store.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runList) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	fmt.Printf("%-6s %-12s %-8s %-20s %s\n", "ID", "KIND", "STATUS", "STARTED", "ERROR")
	for _, run := range runList {
		errText := run.ErrorText
		if len(errText) > 60 {
			errText = errText[:57] + "..."
		}
		fmt.Printf("%-6d %-12s %-8s %-20s %s\n",
			run.ID, run.Kind, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"), errText)
	}
	return nil
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one run with its progress and task log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			return runRunsShow(id)
		},
	}
}

func runRunsShow(id int64) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	run, err := e.store.GetRun(id)
	if err != nil {
		return err
	}
	fmt.Printf("Run %d (%s): %s\n", run.ID, run.Kind, run.Status)
	fmt.Printf("Started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Printf("Finished: %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	if run.ErrorText != "" {
		fmt.Printf("Error: %s\n", run.ErrorText)
	}

	if progress, ok := run.Stats["progress"].(map[string]any); ok {
		fmt.Printf("Progress: phase=%v", progress["phase"])
		if total, ok := progress["total"]; ok {
			fmt.Printf(" completed=%v/%v", progress["completed"], total)
		}
		if msg, ok := progress["message"]; ok {
			fmt.Printf(" (%v)", msg)
		}
		fmt.Println()
	}
	if tasks, ok := run.Stats["tasks"].([]any); ok && len(tasks) > 0 {
		fmt.Printf("Tasks (%d):\n", len(tasks))
		for _, raw := range tasks {
			task, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			line := fmt.Sprintf("  %v %v", task["at"], task["task"])
			if detail, ok := task["detail"]; ok {
				line += fmt.Sprintf(" - %v", detail)
			}
			fmt.Println(line)
		}
	}
	return nil
}

func newRunsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			return runRunsCancel(id)
		},
	}
}

func runRunsCancel(id int64) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.close()

	cancelled, err := e.supervisor.Cancel(id)
	if err != nil {
		return err
	}
	if cancelled {
		fmt.Printf("Run %d cancelled.\n", id)
	} else {
		fmt.Printf("Run %d was not running.\n", id)
	}
	return nil
}
