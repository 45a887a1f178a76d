package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryMode  string
	multimodal bool
	showSrc    bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Run a retrieval query",
	Long: `Run a retrieval query against the ingested documents.

Examples:
  ragctl query "What is the refund policy?"
  ragctl query "Describe figure 3" --multimodal --mode naive`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryMode, "mode", "hybrid", "retrieval mode (hybrid, naive, local)")
	queryCmd.Flags().BoolVar(&multimodal, "multimodal", false, "route image chunks through the vision model")
	queryCmd.Flags().BoolVar(&showSrc, "sources", false, "print retrieved sources")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	res, err := apiClient.Query(context.Background(), args[0], queryMode, multimodal)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	theme := defaultTheme
	fmt.Println(res.Answer)
	fmt.Println()

	meta := fmt.Sprintf("mode=%s sources=%d total=%.2fs", res.Mode, len(res.Sources), res.Timing.TotalDuration)
	if res.Confidence != nil {
		meta += fmt.Sprintf(" confidence=%.3f", *res.Confidence)
	}
	fmt.Println(theme.hintStyle().Render(meta))

	if showSrc {
		for i, src := range res.Sources {
			fmt.Printf("\n%s %s (%.3f)\n", theme.statusStyle().Render(fmt.Sprintf("[%d]", i+1)), src.DocID, src.Score)
			fmt.Println(src.Content)
		}
	}
	return nil
}
