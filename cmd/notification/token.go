package main

import (
	"fmt"

	"github.com/nao1215/swish/internal/config"
	"github.com/nao1215/swish/pkg/middleware"
	"github.com/spf13/cobra"
)

// newTokenCmd は開発用にJWTを発行するコマンドを生成する。
// 署名鍵はサーバーと同じ設定から読み込む。
func newTokenCmd(configPath *string) *cobra.Command {
	var userID, email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "開発用のJWTを発行する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			token, err := middleware.GenerateJWT(cfg.JWTSecret, userID, email)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "トークンのユーザーID")
	cmd.Flags().StringVar(&email, "email", "", "トークンのメールアドレス")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
