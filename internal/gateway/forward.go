package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shokutaku/demae/pkg/middleware"
	"github.com/shokutaku/demae/pkg/token"
)

// Resolver は論理サービス名を実際のベースURLへ解決する。
// サービスディスカバリやロードバランシングの実装はこの境界の外側にある。
type Resolver interface {
	// Resolve は論理サービス名に対応するベースURLを返す。
	Resolve(upstream string) (string, error)
}

// StaticResolver は環境変数から与えられた固定URL表によるResolver。
type StaticResolver map[string]string

// Resolve はStaticResolverのResolver実装。
func (r StaticResolver) Resolve(upstream string) (string, error) {
	baseURL, ok := r[upstream]
	if !ok {
		return "", fmt.Errorf("未知のupstreamサービス: %s", upstream)
	}
	return baseURL, nil
}

// forwarder はパイプライン最終段として、リクエストをupstreamへ中継する。
// パイプライン内で唯一のブロッキング操作を持ち、タイムアウトと
// 呼び出し元切断時のキャンセルをサポートする。リトライは行わない。
type forwarder struct {
	// client はupstream呼び出し用のHTTPクライアント。タイムアウト付き。
	client *http.Client
	// resolver は論理サービス名をベースURLへ解決する。
	resolver Resolver
}

// newForwarder は新しいforwarderを生成する。
func newForwarder(resolver Resolver, timeout time.Duration) *forwarder {
	return &forwarder{
		client:   &http.Client{Timeout: timeout},
		resolver: resolver,
	}
}

// forward はリクエストをルールのupstreamへ中継し、レスポンスの
// ステータス・ヘッダー・ボディをそのまま呼び出し元へ返す。
// identityが存在する場合はX-User-Id / X-User-Roleヘッダーを注入する。
func (f *forwarder) forward(c *gin.Context, m match, identity *token.Identity) {
	baseURL, err := f.resolver.Resolve(m.rule.Upstream)
	if err != nil {
		log.Printf("upstream解決エラー: rule=%s, error=%v", m.rule.ID, err)
		writeError(c, http.StatusBadGateway, "Bad gateway")
		return
	}

	proxyURL := baseURL + m.rule.rewritePath(c.Request.URL.Path, m.params)
	if c.Request.URL.RawQuery != "" {
		proxyURL += "?" + c.Request.URL.RawQuery
	}

	// 呼び出し元のコンテキストを引き継ぎ、切断時にupstream呼び出しを打ち切る
	req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, proxyURL, c.Request.Body)
	if err != nil {
		log.Printf("転送リクエスト作成エラー: rule=%s, error=%v", m.rule.ID, err)
		writeError(c, http.StatusBadGateway, "Bad gateway")
		return
	}

	req.Header = c.Request.Header.Clone()
	// 識別ヘッダーの設定者はgatewayのみ。外部から届いた値は必ず破棄する。
	req.Header.Del(middleware.HeaderUserID)
	req.Header.Del(middleware.HeaderUserRole)
	if identity != nil {
		req.Header.Set(middleware.HeaderUserID, identity.Subject)
		req.Header.Set(middleware.HeaderUserRole, identity.Role)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		f.writeUpstreamError(c, m.rule.ID, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("upstreamレスポンス読み取りエラー: rule=%s, error=%v", m.rule.ID, err)
		writeError(c, http.StatusBadGateway, "Bad gateway")
		return
	}

	// レスポンスヘッダーをそのまま引き継ぐ。長さはc.Dataが再計算する。
	for key, values := range resp.Header {
		if key == "Content-Length" || key == "Transfer-Encoding" {
			continue
		}
		for _, v := range values {
			c.Writer.Header().Add(key, v)
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}

// writeUpstreamError はupstream呼び出しの失敗を502/504へ写像する。
// upstream内部の情報は呼び出し元へ一切漏らさない。
func (f *forwarder) writeUpstreamError(c *gin.Context, ruleID string, err error) {
	// 呼び出し元が切断済みの場合、返すべき相手がいない
	if errors.Is(err, context.Canceled) {
		log.Printf("呼び出し元切断により転送を中断: rule=%s", ruleID)
		c.Abort()
		return
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		log.Printf("upstreamタイムアウト: rule=%s, error=%v", ruleID, err)
		writeError(c, http.StatusGatewayTimeout, "Gateway timeout")
		return
	}

	log.Printf("upstream接続エラー: rule=%s, error=%v", ruleID, err)
	writeError(c, http.StatusBadGateway, "Bad gateway")
}
