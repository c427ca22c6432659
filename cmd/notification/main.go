// 通知サービスのエントリポイント。
// いいね・コメント・フォローから通知を生成・保存し、
// 受信者のWebSocket接続へリアルタイムに配信する。
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
