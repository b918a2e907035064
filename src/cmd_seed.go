package main

import (
	"fmt"

	"herd/src/db"

	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load posts from a tab-separated file into the store",
	Long: `Load posts from a tab-separated file into the configured store.

Columns: UUID, author UUID, emoji, text, timePosted (RFC3339), latitude, longitude.
The first row is a header. Rows with an empty UUID get a generated one.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "./materials/posts.tsv", "Seed file to load")
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}

	posts, err := db.LoadPostsFile(seedFile, log)
	if err != nil {
		return fmt.Errorf("load %s: %w", seedFile, err)
	}

	store, err := db.Open(cmd.Context(), cfg.Store, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.EnsureSchema(cmd.Context()); err != nil {
		return err
	}
	if err := store.SavePosts(cmd.Context(), posts); err != nil {
		return err
	}

	log.Info().Int("count", len(posts)).Str("file", seedFile).Msg("Seeded posts")
	return nil
}
