package cmd

import (
	"context"
	"fmt"
	"os"

	"DiscBox/config"
	"DiscBox/repository"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild-index",
	Short: "Rebuild the artist index from the artist documents",
	Long: `Re-derives index.json from every artist document on disk.
Useful after hand-editing documents while the server is stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()

		store, err := repository.NewStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open data directory: %w", err)
		}

		artistRepo := repository.NewFSArtistRepository(store)
		if err := artistRepo.RebuildIndex(context.Background()); err != nil {
			return fmt.Errorf("failed to rebuild index: %w", err)
		}

		summaries, err := artistRepo.ListIndex(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "index rebuilt: %d artists\n", len(summaries))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
