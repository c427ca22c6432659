package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nao1215/swish/pkg/httpclient"
	"github.com/spf13/cobra"
)

// sendOptions はsendコマンドのフラグ。
type sendOptions struct {
	url       string
	token     string
	recipient string
	kind      string
	subject   string
	message   string
	timeout   time.Duration
}

// newSendCmd は稼働中のサーバーへ通知トリガーを送るコマンドを生成する。
// 送信者は--tokenのユーザーとなる。
func newSendCmd() *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "通知トリガーを送信する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			body := map[string]any{
				"recipient_id": opts.recipient,
				"type":         opts.kind,
			}
			if opts.subject != "" {
				body["subject_id"] = opts.subject
			}
			if opts.message != "" {
				body["message"] = opts.message
			}

			client := httpclient.New(opts.url, httpclient.WithToken(opts.token), httpclient.WithTimeout(opts.timeout))
			var created map[string]any
			if err := client.PostJSON(cmd.Context(), "/api/v1/internal/notify", body, &created); err != nil {
				return fmt.Errorf("通知の送信に失敗: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(created)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "http://localhost:8086", "通知サービスのベースURL")
	cmd.Flags().StringVar(&opts.token, "token", "", "送信者のJWT")
	cmd.Flags().StringVar(&opts.recipient, "to", "", "受信者のユーザーID")
	cmd.Flags().StringVar(&opts.kind, "type", "", "通知の種類 (like, comment, follow)")
	cmd.Flags().StringVar(&opts.subject, "subject", "", "対象オブジェクトのID")
	cmd.Flags().StringVar(&opts.message, "message", "", "表示用メッセージ。省略時はサーバーが組み立てる")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "リクエストのタイムアウト")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}
