// レストランサービスのエントリポイント。
// レストランとメニューのCRUD、Redisによる詳細キャッシュを担当する。
package main

import (
	"log"

	"github.com/shokutaku/demae/internal/restaurant"
)

func main() {
	cfg, err := restaurant.LoadConfig()
	if err != nil {
		log.Fatalf("レストランサービス設定の読み込みに失敗: %v", err)
	}

	server, err := restaurant.NewServer(cfg)
	if err != nil {
		log.Fatalf("レストランサーバーの初期化に失敗: %v", err)
	}

	log.Printf("レストランサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("レストランサービスの起動に失敗: %v", err)
	}
}
