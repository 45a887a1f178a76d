package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	llmChunking bool
	wait        bool
)

var processCmd = &cobra.Command{
	Use:   "process <bucket> <key>",
	Short: "Submit a stored document for ingestion",
	Long: `Submit a document stored in an object bucket for ingestion.

Examples:
  ragctl process my-bucket docs/handbook.md
  ragctl process my-bucket docs/handbook.md --llm-chunking --wait`,
	Args: cobra.ExactArgs(2),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVar(&llmChunking, "llm-chunking", false, "use model-assisted chunking")
	processCmd.Flags().BoolVar(&wait, "wait", false, "poll until the task finishes")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	theme := defaultTheme

	accepted, err := apiClient.Process(ctx, args[0], args[1], llmChunking)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fmt.Printf("%s task %s\n", theme.statusStyle().Render("Accepted:"), accepted.TaskID)

	if !wait {
		fmt.Println(theme.hintStyle().Render("Use 'ragctl tasks " + accepted.TaskID + "' to check progress"))
		return nil
	}

	for {
		time.Sleep(time.Second)
		task, err := apiClient.GetTask(ctx, accepted.TaskID)
		if err != nil {
			return fmt.Errorf("poll task: %w", err)
		}
		if !task.Stage.Terminal() {
			fmt.Printf("  %s\n", theme.hintStyle().Render(string(task.Stage)))
			continue
		}
		if task.Error != "" {
			fmt.Printf("%s %s\n", theme.errorStyle().Render("Failed:"), task.ID)
			exitWithError("task failed in stage %s: %s", task.FailedStage, task.Error)
		}
		fmt.Printf("%s %d chunks inserted\n", theme.successStyle().Render("Done:"), task.Chunks)
		return nil
	}
}
