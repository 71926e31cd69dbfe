package main

import (
	"github.com/spf13/cobra"
	"github.com/user/cinechat/internal/config"
	"github.com/user/cinechat/internal/repository"
	"github.com/user/cinechat/internal/utils"
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cinechat",
		Short:         "Chat with an AI agent about movies and actors from TMDB",
		Long:          "cinechat ingests popular movies and their casts from the TMDB API into Postgres,\nthen answers natural-language questions about the data via an LLM agent.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(newIngestCmd())
	root.AddCommand(newChatCmd())

	return root
}

// setup 公共引导：配置 + 数据库 + 缓存
func setup() (*config.Config, *repository.Repositories, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	db, err := repository.InitDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	utils.InitCache()

	return cfg, repository.NewRepositories(db), nil
}
