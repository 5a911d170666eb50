package order

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	_ "modernc.org/sqlite"

	"github.com/shokutaku/demae/pkg/httpclient"
	"github.com/shokutaku/demae/pkg/middleware"
	"github.com/shokutaku/demae/pkg/token"
)

// Config はorderサービスの設定。環境変数から読み込む。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string `envconfig:"PORT" default:"8083"`
	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string `envconfig:"DB_PATH" default:"/data/order.db"`
	// RestaurantServiceURL はrestaurantサービスのベースURL。
	RestaurantServiceURL string `envconfig:"RESTAURANT_SERVICE_URL" default:"http://localhost:8082"`
}

// LoadConfig は環境変数からorderサービス設定を読み込む。
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("orderサービス設定の読み込みに失敗: %w", err)
	}
	return cfg, nil
}

// Server は注文サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はクエリ実行オブジェクト。
	queries *Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// restaurants はrestaurantサービスへのHTTPクライアント。
	restaurants *httpclient.Client
}

// NewServer は新しい注文サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(cfg Config) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return newServer(cfg.Port, sqlDB, httpclient.New(cfg.RestaurantServiceURL)), nil
}

// newServer は依存を注入してサーバーを組み立てる。
func newServer(port string, sqlDB *sql.DB, restaurants *httpclient.Client) *Server {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:      router,
		port:        port,
		queries:     NewQueries(sqlDB),
		db:          sqlDB,
		restaurants: restaurants,
	}
	s.setupRoutes()

	return s
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// すべてgatewayで認証済みの前提。ロール制限もgatewayのルートテーブルが
// 担うが、リソース単位のアクセス制御（自分の注文かどうか等）はここで行う。
func (s *Server) setupRoutes() {
	authed := s.router.Group("", middleware.Identity(), middleware.RequireIdentity())
	{
		orders := authed.Group("/orders")
		{
			orders.POST("", s.handleCreateOrder())
			orders.GET("", s.handleListCustomerOrders())
			orders.GET("/:id", s.handleGetOrder())
			orders.PUT("/:id/status", s.handleUpdateStatus())
			orders.PUT("/:id/accept", s.handleAcceptOrder())
			orders.PUT("/:id/complete", s.handleCompleteOrder())
			orders.PUT("/:id/cancel", s.handleCancelOrder())
		}

		// /orders/:id と衝突しないようリテラルパスは別系統に置く。
		// gatewayのルートテーブルが公開パスをこれらへ書き換える。
		authed.GET("/restaurant-orders/:id", s.handleListRestaurantOrders())
		authed.GET("/delivery/available", s.handleListAvailableOrders())
		authed.GET("/admin/orders", s.handleListAllOrders())

		payments := authed.Group("/payments")
		{
			payments.POST("/initiate", s.handleInitiatePayment())
			payments.POST("/verify", s.handleVerifyPayment())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "order"})
	})
}

// orderItemRequest は注文明細のJSON構造。
type orderItemRequest struct {
	// MenuItemID はメニュー項目のID。
	MenuItemID string `json:"menu_item_id" binding:"required"`
	// Name は品名。
	Name string `json:"name" binding:"required"`
	// Price は単価。
	Price float64 `json:"price" binding:"required,gt=0"`
	// Quantity は数量。
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// createOrderRequest は注文作成リクエストのJSON構造。
type createOrderRequest struct {
	// RestaurantID は注文先レストランのID。
	RestaurantID string `json:"restaurant_id" binding:"required"`
	// DeliveryAddress は配達先住所。
	DeliveryAddress string `json:"delivery_address" binding:"required"`
	// Items は注文明細。1件以上必須。
	Items []orderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// updateStatusRequest はステータス更新リクエストのJSON構造。
type updateStatusRequest struct {
	// Status は遷移先の注文ステータス。
	Status string `json:"status" binding:"required"`
}

// cancelOrderRequest はキャンセルリクエストのJSON構造。
type cancelOrderRequest struct {
	// Reason はキャンセル理由。
	Reason string `json:"reason"`
}

// handleCreateOrder は注文作成を処理するハンドラを返す。
// restaurantサービスへ問い合わせてレストランの存在を検証し、
// 合計金額は明細から算出する。
func (s *Server) handleCreateOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		customerID := middleware.GetUserID(c)
		ctx := httpclient.WithUserID(c.Request.Context(), customerID)

		var restaurant struct {
			ID     string `json:"id"`
			IsOpen bool   `json:"is_open"`
		}
		if err := s.restaurants.GetJSON(ctx, "/restaurants/"+req.RestaurantID, &restaurant); err != nil {
			if errors.Is(err, httpclient.ErrNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "レストランが見つかりません"})
				return
			}
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "レストランサービスに接続できません"})
			log.Printf("レストラン検証エラー: %v", err)
			return
		}
		if !restaurant.IsOpen {
			c.JSON(http.StatusBadRequest, gin.H{"error": "レストランは現在注文を受け付けていません"})
			return
		}

		orderID := uuid.New().String()
		var total float64
		items := make([]OrderItem, 0, len(req.Items))
		for _, item := range req.Items {
			total += item.Price * float64(item.Quantity)
			items = append(items, OrderItem{
				ID:         uuid.New().String(),
				OrderID:    orderID,
				MenuItemID: item.MenuItemID,
				Name:       item.Name,
				Price:      item.Price,
				Quantity:   item.Quantity,
			})
		}

		params := CreateOrderParams{
			ID:              orderID,
			CustomerID:      customerID,
			RestaurantID:    req.RestaurantID,
			TotalAmount:     total,
			DeliveryAddress: req.DeliveryAddress,
			Items:           items,
		}
		if err := s.queries.CreateOrder(c.Request.Context(), params); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文の作成に失敗しました"})
			log.Printf("注文作成エラー: %v", err)
			return
		}

		o, err := s.queries.GetOrder(c.Request.Context(), orderID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文取得に失敗しました"})
			return
		}
		o.Items = items
		c.JSON(http.StatusCreated, o)
	}
}

// handleListCustomerOrders は顧客自身の注文一覧を返すハンドラを返す。
func (s *Server) handleListCustomerOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := s.queries.ListOrdersByCustomer(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文一覧の取得に失敗しました"})
			log.Printf("注文一覧取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, emptyIfNil(orders))
	}
}

// handleListRestaurantOrders はレストラン視点の注文一覧を返すハンドラを返す。
func (s *Server) handleListRestaurantOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := s.queries.ListOrdersByRestaurant(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文一覧の取得に失敗しました"})
			log.Printf("注文一覧取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, emptyIfNil(orders))
	}
}

// handleListAvailableOrders は配達引き受け可能な注文一覧を返すハンドラを返す。
func (s *Server) handleListAvailableOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := s.queries.ListAvailableOrders(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文一覧の取得に失敗しました"})
			log.Printf("注文一覧取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, emptyIfNil(orders))
	}
}

// handleListAllOrders は全注文の一覧を返すハンドラを返す。
// ADMINロールの確認はgatewayのルートテーブルが行う。
func (s *Server) handleListAllOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := s.queries.ListAllOrders(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文一覧の取得に失敗しました"})
			log.Printf("注文一覧取得エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, emptyIfNil(orders))
	}
}

// handleGetOrder は注文詳細を返すハンドラを返す。
// 管理者、注文した本人、割り当てられた配達パートナーのみ閲覧できる。
func (s *Server) handleGetOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		o, ok := s.loadOrder(c)
		if !ok {
			return
		}

		userID := middleware.GetUserID(c)
		role := middleware.GetUserRole(c)
		if role != token.RoleAdmin && o.CustomerID != userID && o.DeliveryPartnerID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "この注文を閲覧する権限がありません"})
			return
		}

		items, err := s.queries.ListOrderItems(c.Request.Context(), o.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文明細の取得に失敗しました"})
			log.Printf("注文明細取得エラー: %v", err)
			return
		}
		o.Items = items
		c.JSON(http.StatusOK, o)
	}
}

// handleUpdateStatus は注文ステータス更新を処理するハンドラを返す。
// 定義された遷移規則に従わない更新は409で拒否する。
// キャンセルは専用エンドポイントで行う。
func (s *Server) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if !ValidStatus(req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("未知のステータスです: %s", req.Status)})
			return
		}
		if req.Status == StatusCancelled {
			c.JSON(http.StatusBadRequest, gin.H{"error": "キャンセルはキャンセルAPIを使用してください"})
			return
		}

		o, ok := s.loadOrder(c)
		if !ok {
			return
		}

		if !CanTransition(o.Status, req.Status) {
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("%sから%sへは遷移できません", o.Status, req.Status)})
			return
		}

		if err := s.queries.SetStatus(c.Request.Context(), o.ID, req.Status); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ステータス更新に失敗しました"})
			log.Printf("ステータス更新エラー: %v", err)
			return
		}

		o.Status = req.Status
		c.JSON(http.StatusOK, o)
	}
}

// handleAcceptOrder は配達パートナーによる注文引き受けを処理するハンドラを返す。
// 調理完了済みかつ未割り当ての注文のみ引き受けられる。
func (s *Server) handleAcceptOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		o, ok := s.loadOrder(c)
		if !ok {
			return
		}

		partnerID := middleware.GetUserID(c)
		err := s.queries.AcceptOrder(c.Request.Context(), o.ID, partnerID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusConflict, gin.H{"error": "この注文は引き受けできません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文の引き受けに失敗しました"})
			log.Printf("注文引き受けエラー: %v", err)
			return
		}

		o.Status = StatusOutForDelivery
		o.DeliveryPartnerID = partnerID
		c.JSON(http.StatusOK, o)
	}
}

// handleCompleteOrder は配達完了を処理するハンドラを返す。
// 割り当てられた配達パートナー本人のみ完了させられる。
func (s *Server) handleCompleteOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		o, ok := s.loadOrder(c)
		if !ok {
			return
		}

		if o.DeliveryPartnerID != middleware.GetUserID(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "この注文の配達パートナーではありません"})
			return
		}
		if o.Status != StatusOutForDelivery {
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("%sの注文は完了にできません", o.Status)})
			return
		}

		if err := s.queries.SetStatus(c.Request.Context(), o.ID, StatusDelivered); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ステータス更新に失敗しました"})
			log.Printf("ステータス更新エラー: %v", err)
			return
		}

		o.Status = StatusDelivered
		c.JSON(http.StatusOK, o)
	}
}

// handleCancelOrder は注文キャンセルを処理するハンドラを返す。
// 管理者または注文した本人のみキャンセルでき、終端ステータスの注文は
// キャンセルできない。
func (s *Server) handleCancelOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelOrderRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
				return
			}
		}

		o, ok := s.loadOrder(c)
		if !ok {
			return
		}

		userID := middleware.GetUserID(c)
		role := middleware.GetUserRole(c)
		if role != token.RoleAdmin && o.CustomerID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "この注文をキャンセルする権限がありません"})
			return
		}
		if Terminal(o.Status) {
			c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("%sの注文はキャンセルできません", o.Status)})
			return
		}

		if err := s.queries.CancelOrder(c.Request.Context(), o.ID, req.Reason); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "キャンセルに失敗しました"})
			log.Printf("キャンセルエラー: %v", err)
			return
		}

		o.Status = StatusCancelled
		o.CancelReason = req.Reason
		c.JSON(http.StatusOK, o)
	}
}

// initiatePaymentRequest は決済開始リクエストのJSON構造。
type initiatePaymentRequest struct {
	// OrderID は対象の注文ID。
	OrderID string `json:"order_id" binding:"required"`
	// Method は決済手段。
	Method string `json:"method"`
}

// verifyPaymentRequest は決済確認リクエストのJSON構造。
type verifyPaymentRequest struct {
	// TransactionID は決済プロバイダのトランザクションID。
	TransactionID string `json:"transaction_id" binding:"required"`
}

// handleInitiatePayment は決済開始を処理するハンドラを返す。
// 金額は注文の合計金額から算出する。
func (s *Server) handleInitiatePayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req initiatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		o, err := s.queries.GetOrder(c.Request.Context(), req.OrderID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "注文が見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "注文取得に失敗しました"})
			log.Printf("注文取得エラー: %v", err)
			return
		}
		if o.Status == StatusCancelled {
			c.JSON(http.StatusConflict, gin.H{"error": "キャンセル済みの注文は決済できません"})
			return
		}

		params := CreatePaymentParams{
			ID:            uuid.New().String(),
			OrderID:       o.ID,
			Amount:        o.TotalAmount,
			Method:        req.Method,
			TransactionID: uuid.New().String(),
		}
		if err := s.queries.CreatePayment(c.Request.Context(), params); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "決済の開始に失敗しました"})
			log.Printf("決済開始エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, Payment{
			ID:            params.ID,
			OrderID:       params.OrderID,
			Amount:        params.Amount,
			Status:        PaymentInitiated,
			Method:        params.Method,
			TransactionID: params.TransactionID,
		})
	}
}

// handleVerifyPayment は決済確認を処理するハンドラを返す。
func (s *Server) handleVerifyPayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if err := s.queries.CompletePayment(c.Request.Context(), req.TransactionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.JSON(http.StatusNotFound, gin.H{"error": "決済が見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "決済の確認に失敗しました"})
			log.Printf("決済確認エラー: %v", err)
			return
		}

		p, err := s.queries.GetPaymentByTransactionID(c.Request.Context(), req.TransactionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "決済取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// loadOrder はパスパラメータのIDで注文を読み込む。
// 見つからない場合は404を書き込みfalseを返す。
func (s *Server) loadOrder(c *gin.Context) (Order, bool) {
	o, err := s.queries.GetOrder(c.Request.Context(), c.Param("id"))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "注文が見つかりません"})
		return Order{}, false
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "注文取得に失敗しました"})
		log.Printf("注文取得エラー: %v", err)
		return Order{}, false
	}
	return o, true
}

// emptyIfNil はnilスライスを空スライスに変換する。JSONでnullではなく[]を返すため。
func emptyIfNil(orders []Order) []Order {
	if orders == nil {
		return []Order{}
	}
	return orders
}
