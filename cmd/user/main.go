// ユーザーサービスのエントリポイント。
// ユーザー登録、ログイン（JWT発行）、プロフィール管理を担当する。
package main

import (
	"log"

	"github.com/shokutaku/demae/internal/user"
)

func main() {
	cfg, err := user.LoadConfig()
	if err != nil {
		log.Fatalf("ユーザーサービス設定の読み込みに失敗: %v", err)
	}

	server, err := user.NewServer(cfg)
	if err != nil {
		log.Fatalf("ユーザーサーバーの初期化に失敗: %v", err)
	}

	log.Printf("ユーザーサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("ユーザーサービスの起動に失敗: %v", err)
	}
}
