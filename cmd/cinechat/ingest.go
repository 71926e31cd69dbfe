package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/user/cinechat/internal/service"
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch popular movies and their casts from TMDB into the database",
		RunE:  runIngest,
	}

	cmd.Flags().Bool("force", false, "reload without asking when the database already contains data")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	cfg, repos, err := setup()
	if err != nil {
		return err
	}

	tmdb := service.NewTMDBClient(cfg.TMDBToken)
	svc := service.NewIngestService(tmdb, repos)

	return svc.Run(context.Background(), force)
}
