package main

import (
	"github.com/spf13/cobra"
)

// newRootCmd はルートコマンドを生成する。サブコマンド省略時はserveとして動作する。
func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "notification",
		Short:        "キャンパスSNSのリアルタイム通知サービス",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML設定ファイルのパス")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newTokenCmd(&configPath),
		newSendCmd(),
	)

	return rootCmd
}
