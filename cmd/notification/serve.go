package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/swish/internal/config"
	"github.com/nao1215/swish/internal/notification"
	"github.com/nao1215/swish/internal/store"
	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "通知サーバーを起動する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

// runServe は設定を読み込み、SIGINTまたはSIGTERMを受け取るまでサーバーを動かす。
func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("データベースの初期化に失敗: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Printf("[Notification] データベースのクローズに失敗: %v", err)
		}
	}()

	server := notification.NewServer(cfg, repo)

	log.Printf("通知サービスを起動します: :%s", cfg.Port)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("通知サービスの起動に失敗: %w", err)
	}
	log.Printf("通知サービスを停止しました")
	return nil
}
