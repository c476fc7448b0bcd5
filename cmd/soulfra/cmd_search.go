package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"soulfra/api/internal/search"
)

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search index commands",
	}
	cmd.AddCommand(searchReindexCmd())
	return cmd
}

func searchReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Push all posts, brands, and domains to Meilisearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			if strings.TrimSpace(env.cfg.MeiliURL) == "" {
				return errors.New("MEILI_URL is not configured")
			}

			meili := search.NewMeili(env.cfg.MeiliURL, env.cfg.MeiliMasterKey)
			defer meili.Close()
			fts := search.NewSqliteFTS(env.db)

			posts, brands, domains, err := fts.LoadAllRecords(ctx)
			if err != nil {
				return err
			}
			if err := meili.IndexPosts(posts); err != nil {
				return err
			}
			if err := meili.IndexBrands(brands); err != nil {
				return err
			}
			if err := meili.IndexDomains(domains); err != nil {
				return err
			}

			fmt.Printf("reindex complete: %d posts, %d brands, %d domains\n", len(posts), len(brands), len(domains))
			return nil
		},
	}
}
