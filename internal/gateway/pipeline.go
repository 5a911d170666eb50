package gateway

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shokutaku/demae/pkg/token"
)

// pipeline は1リクエスト分の許可判定と転送を行う。
// 段の順序は ルート照合 → 認証 → 認可 → 転送 で固定であり、
// いずれかの段が失敗した時点で後続の段は実行されない。
// リクエストごとの状態（Identity、照合結果）は共有されない。
type pipeline struct {
	// table は不変のルートテーブル。
	table *Table
	// jwtSecret はトークン検証用の共有秘密鍵。起動時に読み込む。
	jwtSecret string
	// fwd はupstreamへの転送を担う最終段。
	fwd *forwarder
}

// newPipeline は各段を明示的に注入してパイプラインを構築する。
func newPipeline(table *Table, jwtSecret string, fwd *forwarder) *pipeline {
	return &pipeline{
		table:     table,
		jwtSecret: jwtSecret,
		fwd:       fwd,
	}
}

// handle は受信リクエストをパイプラインへ通すGinハンドラ。
func (p *pipeline) handle(c *gin.Context) {
	// ルート照合。一致しなければ認証・認可を経ずに404で打ち切る。
	m, ok := p.table.Match(c.Request.Method, c.Request.URL.Path)
	if !ok {
		writeError(c, http.StatusNotFound, "Route not found")
		return
	}

	// 認証。認可より必ず先に完了する。
	var identity *token.Identity
	if m.rule.RequiresAuth {
		id, err := authenticate(c.Request, p.jwtSecret)
		if err != nil {
			// 失敗種別はログにのみ残し、外部へは同一の401を返す
			if errors.Is(err, errMissingCredential) {
				log.Printf("認証失敗（ヘッダー欠如）: rule=%s, %s %s", m.rule.ID, c.Request.Method, c.Request.URL.Path)
			} else {
				log.Printf("認証失敗（トークン不正）: rule=%s, %s %s", m.rule.ID, c.Request.Method, c.Request.URL.Path)
			}
			writeError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		identity = &id

		// 認可。失敗したリクエストは転送段へ到達しない。
		if err := authorize(id, m.rule); err != nil {
			log.Printf("認可失敗: rule=%s, subject=%s, role=%s", m.rule.ID, id.Subject, id.Role)
			writeError(c, http.StatusForbidden, "Forbidden")
			return
		}
	}

	p.fwd.forward(c, m, identity)
}

// writeError は拒否レスポンスを構造化JSONで出力する。
// 内部のスタックやクレーム詳細は含めない。
func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message, "status": status})
}
