package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	h, err := apiClient.Health(context.Background())
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}

	theme := defaultTheme
	status := theme.successStyle().Render(h.Status)
	if h.Status != "healthy" {
		status = theme.errorStyle().Render(h.Status)
	}

	fmt.Printf("Status:  %s\n", status)
	fmt.Printf("Engine:  initialized=%t\n", h.EngineInitialized)
	fmt.Printf("Uptime:  %s\n", (time.Duration(h.UptimeSeconds) * time.Second).String())
	fmt.Printf("Tasks:   %d total, %d active\n", h.TasksTotal, h.TasksActive)
	return nil
}
