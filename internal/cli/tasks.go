package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks [task-id]",
	Short: "List or inspect ingestion tasks",
	Long: `List all ingestion tasks or inspect a specific task by ID.

Examples:
  ragctl tasks           # List all tasks
  ragctl tasks abc123    # Show details for task abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showTask(ctx, args[0])
	}
	return listTasks(ctx)
}

func listTasks(ctx context.Context) error {
	tasks, err := apiClient.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	fmt.Printf("%-38s %-12s %-30s %s\n", "ID", "STAGE", "KEY", "CREATED")
	fmt.Println("-------------------------------------------------------------------------------------------")
	for _, t := range tasks {
		fmt.Printf("%-38s %-12s %-30s %s\n", t.ID, t.Stage, t.Key, t.CreatedAt.Format("15:04:05"))
	}
	return nil
}

func showTask(ctx context.Context, id string) error {
	task, err := apiClient.GetTask(ctx, id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}

	fmt.Printf("Task: %s\n", task.ID)
	fmt.Printf("  Bucket: %s\n", task.Bucket)
	fmt.Printf("  Key: %s\n", task.Key)
	fmt.Printf("  Stage: %s\n", task.Stage)
	fmt.Printf("  Created: %s\n", task.CreatedAt.Format(time.RFC3339))
	if task.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", task.CompletedAt.Format(time.RFC3339))
		fmt.Printf("  Duration: %s\n", task.CompletedAt.Sub(task.CreatedAt).Round(time.Second))
	}
	if task.Chunks > 0 {
		fmt.Printf("  Chunks: %d\n", task.Chunks)
	}
	if task.Error != "" {
		fmt.Printf("  Failed stage: %s\n", task.FailedStage)
		fmt.Printf("  Error: %s\n", task.Error)
	}
	return nil
}
