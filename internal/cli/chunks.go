package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var chunkLimit int

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "Sample stored chunks",
	Args:  cobra.NoArgs,
	RunE:  runChunks,
}

func init() {
	chunksCmd.Flags().IntVar(&chunkLimit, "limit", 10, "maximum chunks to fetch")
	rootCmd.AddCommand(chunksCmd)
}

func runChunks(cmd *cobra.Command, args []string) error {
	chunks, err := apiClient.Chunks(context.Background(), chunkLimit)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}

	if len(chunks) == 0 {
		fmt.Println("No chunks stored")
		return nil
	}

	theme := defaultTheme
	for i, c := range chunks {
		header := fmt.Sprintf("[%d] %s (%s, page %d)", i+1, c.DocID, c.Type, c.PageIdx)
		fmt.Println(theme.statusStyle().Render(header))
		fmt.Println(c.Content)
		fmt.Println()
	}
	return nil
}
