package gateway

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shokutaku/demae/pkg/middleware"
)

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// pipeline はリクエスト許可判定と転送のパイプライン。
	pipeline *pipeline
}

// NewServer は新しいGatewayサーバーを生成する。
// ルートテーブルはここで一度だけ構築・検証され、以後変更されない。
func NewServer(cfg Config) (*Server, error) {
	table, err := NewTable(defaultRules())
	if err != nil {
		return nil, fmt.Errorf("ルートテーブルの構築に失敗: %w", err)
	}

	fwd := newForwarder(cfg.resolver(), cfg.UpstreamTimeout)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	s := &Server{
		router:   router,
		port:     cfg.Port,
		pipeline: newPipeline(table, cfg.JWTSecret, fwd),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はルーティングを設定する。
// ヘルスチェック以外の全リクエストはパイプラインが処理する。
func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})

	s.router.NoRoute(s.pipeline.handle)
}
