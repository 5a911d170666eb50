// 注文サービスのエントリポイント。
// 注文ライフサイクル管理、配達パートナーへの割り当て、決済レコードの
// 管理を担当する。
package main

import (
	"log"

	"github.com/shokutaku/demae/internal/order"
)

func main() {
	cfg, err := order.LoadConfig()
	if err != nil {
		log.Fatalf("注文サービス設定の読み込みに失敗: %v", err)
	}

	server, err := order.NewServer(cfg)
	if err != nil {
		log.Fatalf("注文サーバーの初期化に失敗: %v", err)
	}

	log.Printf("注文サービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("注文サービスの起動に失敗: %v", err)
	}
}
