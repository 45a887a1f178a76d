// Package cli provides the command-line interface for ragctl.
package cli

import (
	"fmt"
	"os"

	"github.com/aweiler/ragserve/internal/client"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string

	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Control a running ragserve instance",
	Long: `Ragctl submits documents for ingestion, runs retrieval queries, and
inspects task state on a running ragserve server.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.New(serverURL)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (default from RAGSERVE_SERVER_URL)")
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
