package restaurant

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	_ "modernc.org/sqlite"

	"github.com/shokutaku/demae/pkg/middleware"
)

// Config はrestaurantサービスの設定。環境変数から読み込む。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string `envconfig:"PORT" default:"8082"`
	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string `envconfig:"DB_PATH" default:"/data/restaurant.db"`
	// RedisURL はキャッシュ用RedisのURL。
	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	// CacheTTL はレストラン詳細キャッシュの有効期間。
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"5m"`
}

// LoadConfig は環境変数からrestaurantサービス設定を読み込む。
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("restaurantサービス設定の読み込みに失敗: %w", err)
	}
	return cfg, nil
}

// Server はレストランサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はクエリ実行オブジェクト。
	queries *Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// cache はレストラン詳細のキャッシュ。nilの場合はDB直読み。
	cache *Cache
}

// NewServer は新しいレストランサーバーを生成する。
// Redisへ接続できない場合はキャッシュなしで起動する。
func NewServer(cfg Config) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	var cache *Cache
	client, err := NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Printf("redisに接続できないためキャッシュなしで起動します: %v", err)
	} else {
		cache = NewCache(client, cfg.CacheTTL)
	}

	return newServer(cfg.Port, sqlDB, cache), nil
}

// newServer は依存を注入してサーバーを組み立てる。
func newServer(port string, sqlDB *sql.DB, cache *Cache) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:  router,
		port:    port,
		queries: NewQueries(sqlDB),
		db:      sqlDB,
		cache:   cache,
	}
	s.setupRoutes()

	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// ロール制限はgatewayのルートテーブルが担うため、ここでは行わない。
func (s *Server) setupRoutes() {
	restaurants := s.router.Group("/restaurants")
	{
		// 公開エンドポイント
		restaurants.GET("", s.handleListOpen())
		restaurants.GET("/:id", s.handleGetRestaurant())
		restaurants.GET("/:id/menu", s.handleListMenu())

		// gatewayで認証済みのエンドポイント
		authed := restaurants.Group("", middleware.Identity(), middleware.RequireIdentity())
		{
			authed.POST("", s.handleCreateRestaurant())
			authed.PUT("/:id", s.handleUpdateRestaurant())
			authed.DELETE("/:id", s.handleDeleteRestaurant())
			authed.POST("/:id/menu-items", s.handleCreateMenuItem())
		}
	}

	// 管理者向け一覧。/restaurants/:id と衝突しないよう別パスに置き、
	// gatewayが /api/restaurants/all をここへ書き換える。
	admin := s.router.Group("/admin", middleware.Identity(), middleware.RequireIdentity())
	{
		admin.GET("/restaurants", s.handleListAll())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "restaurant"})
	})
}

// createRestaurantRequest はレストラン登録リクエストのJSON構造。
type createRestaurantRequest struct {
	// Name は店舗名。
	Name string `json:"name" binding:"required"`
	// Description は店舗説明。
	Description string `json:"description"`
	// Address は住所。
	Address string `json:"address" binding:"required"`
	// Phone は電話番号。
	Phone string `json:"phone"`
	// Cuisine は料理ジャンル。
	Cuisine string `json:"cuisine"`
	// ImageURL は画像URL。
	ImageURL string `json:"image_url"`
	// DeliveryTimeMinutes は配達目安時間（分）。
	DeliveryTimeMinutes int `json:"delivery_time_minutes"`
}

// updateRestaurantRequest はレストラン更新リクエストのJSON構造。
type updateRestaurantRequest struct {
	// Name は店舗名。
	Name string `json:"name" binding:"required"`
	// Description は店舗説明。
	Description string `json:"description"`
	// Address は住所。
	Address string `json:"address" binding:"required"`
	// Phone は電話番号。
	Phone string `json:"phone"`
	// Cuisine は料理ジャンル。
	Cuisine string `json:"cuisine"`
	// ImageURL は画像URL。
	ImageURL string `json:"image_url"`
	// IsOpen は営業中フラグ。
	IsOpen bool `json:"is_open"`
	// DeliveryTimeMinutes は配達目安時間（分）。
	DeliveryTimeMinutes int `json:"delivery_time_minutes"`
}

// createMenuItemRequest はメニュー項目追加リクエストのJSON構造。
type createMenuItemRequest struct {
	// Name は品名。
	Name string `json:"name" binding:"required"`
	// Description は説明。
	Description string `json:"description"`
	// Price は価格。
	Price float64 `json:"price" binding:"required,gt=0"`
	// Category はカテゴリー。
	Category string `json:"category"`
	// ImageURL は画像URL。
	ImageURL string `json:"image_url"`
}

// handleListOpen は営業中レストラン一覧を返すハンドラを返す。
// クエリパラメータcuisineでジャンルを絞り込める。
func (s *Server) handleListOpen() gin.HandlerFunc {
	return func(c *gin.Context) {
		restaurants, err := s.queries.ListOpenRestaurants(c.Request.Context(), c.Query("cuisine"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レストラン一覧の取得に失敗しました"})
			log.Printf("レストラン一覧取得エラー: %v", err)
			return
		}

		if restaurants == nil {
			restaurants = []Restaurant{}
		}
		c.JSON(http.StatusOK, restaurants)
	}
}

// handleListAll は休業中を含む全レストラン一覧を返すハンドラを返す。
func (s *Server) handleListAll() gin.HandlerFunc {
	return func(c *gin.Context) {
		restaurants, err := s.queries.ListAllRestaurants(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レストラン一覧の取得に失敗しました"})
			log.Printf("レストラン一覧取得エラー: %v", err)
			return
		}

		if restaurants == nil {
			restaurants = []Restaurant{}
		}
		c.JSON(http.StatusOK, restaurants)
	}
}

// handleGetRestaurant はレストラン詳細を返すハンドラを返す。
// キャッシュヒット時はDBへアクセスしない。キャッシュのエラーは
// DB直読みへ縮退し、リクエストを失敗させない。
func (s *Server) handleGetRestaurant() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ctx := c.Request.Context()

		if s.cache != nil {
			cached, err := s.cache.GetRestaurant(ctx, id)
			if err != nil {
				log.Printf("キャッシュ取得エラー: %v", err)
			} else if cached != nil {
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		r, err := s.queries.GetRestaurant(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "レストランが見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レストラン取得に失敗しました"})
			log.Printf("レストラン取得エラー: %v", err)
			return
		}

		if s.cache != nil {
			if err := s.cache.SetRestaurant(ctx, r); err != nil {
				log.Printf("キャッシュ書き込みエラー: %v", err)
			}
		}
		c.JSON(http.StatusOK, r)
	}
}

// handleCreateRestaurant はレストラン登録を処理するハンドラを返す。
func (s *Server) handleCreateRestaurant() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRestaurantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		deliveryTime := req.DeliveryTimeMinutes
		if deliveryTime <= 0 {
			deliveryTime = 30
		}

		params := CreateRestaurantParams{
			ID:                  uuid.New().String(),
			Name:                req.Name,
			Description:         req.Description,
			Address:             req.Address,
			Phone:               req.Phone,
			Cuisine:             req.Cuisine,
			ImageURL:            req.ImageURL,
			DeliveryTimeMinutes: deliveryTime,
		}
		if err := s.queries.CreateRestaurant(c.Request.Context(), params); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レストラン登録に失敗しました"})
			log.Printf("レストラン登録エラー: %v", err)
			return
		}

		r, err := s.queries.GetRestaurant(c.Request.Context(), params.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レストラン取得に失敗しました"})
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

// handleUpdateRestaurant はレストラン更新を処理するハンドラを返す。
// 更新後にキャッシュを無効化する。
func (s *Server) handleUpdateRestaurant() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		var req updateRestaurantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		err := s.queries.UpdateRestaurant(c.Request.Context(), UpdateRestaurantParams{
			ID:                  id,
			Name:                req.Name,
			Description:         req.Description,
			Address:             req.Address,
			Phone:               req.Phone,
			Cuisine:             req.Cuisine,
			ImageURL:            req.ImageURL,
			IsOpen:              req.IsOpen,
			DeliveryTimeMinutes: req.DeliveryTimeMinutes,
		})
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "レストランが見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レストラン更新に失敗しました"})
			log.Printf("レストラン更新エラー: %v", err)
			return
		}

		s.invalidate(c, id)

		r, err := s.queries.GetRestaurant(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レストラン取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, r)
	}
}

// handleDeleteRestaurant はレストラン削除を処理するハンドラを返す。
// 削除後にキャッシュを無効化する。
func (s *Server) handleDeleteRestaurant() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		err := s.queries.DeleteRestaurant(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "レストランが見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レストラン削除に失敗しました"})
			log.Printf("レストラン削除エラー: %v", err)
			return
		}

		s.invalidate(c, id)
		c.JSON(http.StatusOK, gin.H{"message": "レストランを削除しました"})
	}
}

// invalidate はレストラン詳細キャッシュを無効化する。失敗してもログのみ。
func (s *Server) invalidate(c *gin.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteRestaurant(c.Request.Context(), id); err != nil {
		log.Printf("キャッシュ無効化エラー: %v", err)
	}
}

// handleListMenu はレストランのメニュー一覧を返すハンドラを返す。
func (s *Server) handleListMenu() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		if _, err := s.queries.GetRestaurant(c.Request.Context(), id); errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "レストランが見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レストラン取得に失敗しました"})
			log.Printf("レストラン取得エラー: %v", err)
			return
		}

		items, err := s.queries.ListMenuItems(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "メニュー一覧の取得に失敗しました"})
			log.Printf("メニュー一覧取得エラー: %v", err)
			return
		}

		if items == nil {
			items = []MenuItem{}
		}
		c.JSON(http.StatusOK, items)
	}
}

// handleCreateMenuItem はメニュー項目追加を処理するハンドラを返す。
func (s *Server) handleCreateMenuItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		if _, err := s.queries.GetRestaurant(c.Request.Context(), id); errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "レストランが見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "レストラン取得に失敗しました"})
			log.Printf("レストラン取得エラー: %v", err)
			return
		}

		var req createMenuItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		params := CreateMenuItemParams{
			ID:           uuid.New().String(),
			RestaurantID: id,
			Name:         req.Name,
			Description:  req.Description,
			Price:        req.Price,
			Category:     req.Category,
			ImageURL:     req.ImageURL,
		}
		if err := s.queries.CreateMenuItem(c.Request.Context(), params); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "メニュー項目の追加に失敗しました"})
			log.Printf("メニュー項目追加エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, MenuItem{
			ID:           params.ID,
			RestaurantID: id,
			Name:         params.Name,
			Description:  params.Description,
			Price:        params.Price,
			Category:     params.Category,
			ImageURL:     params.ImageURL,
			Available:    true,
		})
	}
}
