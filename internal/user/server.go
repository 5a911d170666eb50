package user

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
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/shokutaku/demae/pkg/middleware"
	"github.com/shokutaku/demae/pkg/token"
)

// Config はuserサービスの設定。環境変数から読み込む。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string `envconfig:"PORT" default:"8081"`
	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string `envconfig:"DB_PATH" default:"/data/user.db"`
	// JWTSecret はJWT署名用の共有秘密鍵。gatewayと同じ値を設定する。
	JWTSecret string `envconfig:"JWT_SECRET" default:"dev-secret-key"`
	// TokenTTL は発行するトークンの有効期間。
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
}

// LoadConfig は環境変数からuserサービス設定を読み込む。
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("userサービス設定の読み込みに失敗: %w", err)
	}
	return cfg, nil
}

// Server はユーザーサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はクエリ実行オブジェクト。
	queries *Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はJWT署名用の秘密鍵。
	jwtSecret string
	// tokenTTL は発行するトークンの有効期間。
	tokenTTL time.Duration
}

// NewServer は新しいユーザーサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(cfg Config) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:    router,
		port:      cfg.Port,
		queries:   NewQueries(sqlDB),
		db:        sqlDB,
		jwtSecret: cfg.JWTSecret,
		tokenTTL:  cfg.TokenTTL,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// 認証・認可の判定はgatewayが済ませているため、ここでは
// 識別ヘッダーの読み取りのみを行う。
func (s *Server) setupRoutes() {
	users := s.router.Group("/users")
	{
		// 公開エンドポイント
		users.POST("/register", s.handleRegister())
		users.POST("/login", s.handleLogin())

		// gatewayで認証済みのエンドポイント
		authed := users.Group("", middleware.Identity(), middleware.RequireIdentity())
		{
			authed.GET("/profile", s.handleGetProfile())
			authed.PUT("/profile", s.handleUpdateProfile())
			// 管理者向け（ロール制限はgatewayのルートテーブルが担う）
			authed.GET("", s.handleListUsers())
			authed.DELETE("/:id", s.handleDeleteUser())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "user"})
	})
}

// registerRequest はユーザー登録リクエストのJSON構造。
type registerRequest struct {
	// Name は表示名。
	Name string `json:"name" binding:"required"`
	// Email はメールアドレス。ユーザー名としても使用する。
	Email string `json:"email" binding:"required,email"`
	// Password は平文パスワード。保存前にbcryptでハッシュ化する。
	Password string `json:"password" binding:"required,min=8"`
	// Phone は電話番号。
	Phone string `json:"phone"`
	// Address は配達先住所。
	Address string `json:"address"`
	// Role はロール識別子。省略時はCUSTOMER。
	Role string `json:"role"`
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Username はユーザー名（メールアドレス）。
	Username string `json:"username" binding:"required"`
	// Password は平文パスワード。
	Password string `json:"password" binding:"required"`
}

// updateProfileRequest はプロフィール更新リクエストのJSON構造。
type updateProfileRequest struct {
	// Name は表示名。
	Name string `json:"name" binding:"required"`
	// Phone は電話番号。
	Phone string `json:"phone"`
	// Address は配達先住所。
	Address string `json:"address"`
}

// userResponse はユーザーのJSONレスポンス構造。パスワードハッシュは含めない。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Username はユーザー名。
	Username string `json:"username"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Role はロール識別子。
	Role string `json:"role"`
	// Name は表示名。
	Name string `json:"name"`
	// Phone は電話番号。
	Phone string `json:"phone"`
	// Address は配達先住所。
	Address string `json:"address"`
}

// toUserResponse はDB行をJSONレスポンスに変換する。
func toUserResponse(u User) userResponse {
	return userResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Name:     u.FullName,
		Phone:    u.Phone,
		Address:  u.Address,
	}
}

// handleRegister はユーザー登録を処理するハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		role := req.Role
		if role == "" {
			role = token.RoleCustomer
		}
		if !token.ValidRole(role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("未知のロールです: %s", role)})
			return
		}

		// メールアドレスをユーザー名として使用する
		if _, err := s.queries.GetUserByUsername(c.Request.Context(), req.Email); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "このメールアドレスは既に登録されています"})
			return
		} else if !errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "パスワードの処理に失敗しました"})
			log.Printf("bcryptエラー: %v", err)
			return
		}

		params := CreateUserParams{
			ID:           uuid.New().String(),
			Username:     req.Email,
			Email:        req.Email,
			PasswordHash: string(hash),
			Role:         role,
			FullName:     req.Name,
			Phone:        req.Phone,
			Address:      req.Address,
		}
		if err := s.queries.CreateUser(c.Request.Context(), params); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー登録に失敗しました"})
			log.Printf("ユーザー登録エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, userResponse{
			ID:       params.ID,
			Username: params.Username,
			Email:    params.Email,
			Role:     params.Role,
			Name:     params.FullName,
			Phone:    params.Phone,
			Address:  params.Address,
		})
	}
}

// handleLogin はログインを処理するハンドラを返す。
// 認証に成功した場合、subjectとロールを含むJWTトークンを発行する。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		u, err := s.queries.GetUserByUsername(c.Request.Context(), req.Username)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名またはパスワードが不正です"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザー名またはパスワードが不正です"})
			return
		}

		tokenStr, err := token.Generate(s.jwtSecret, u.Username, u.Role, s.tokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			log.Printf("JWT生成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": tokenStr, "role": u.Role})
	}
}

// handleGetProfile は認証済みユーザーのプロフィールを返すハンドラを返す。
func (s *Server) handleGetProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := middleware.GetUserID(c)

		u, err := s.queries.GetUserByUsername(c.Request.Context(), username)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toUserResponse(u))
	}
}

// handleUpdateProfile はプロフィール更新を処理するハンドラを返す。
func (s *Server) handleUpdateProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := middleware.GetUserID(c)

		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		err := s.queries.UpdateProfile(c.Request.Context(), UpdateProfileParams{
			Username: username,
			FullName: req.Name,
			Phone:    req.Phone,
			Address:  req.Address,
		})
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "プロフィール更新に失敗しました"})
			log.Printf("プロフィール更新エラー: %v", err)
			return
		}

		u, err := s.queries.GetUserByUsername(c.Request.Context(), username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, toUserResponse(u))
	}
}

// handleListUsers は全ユーザー一覧を返すハンドラを返す。
// ADMINロールの確認はgatewayのルートテーブルが行う。
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := s.queries.ListUsers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー一覧の取得に失敗しました"})
			log.Printf("ユーザー一覧取得エラー: %v", err)
			return
		}

		resp := make([]userResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, toUserResponse(u))
		}
		c.JSON(http.StatusOK, resp)
	}
}

// handleDeleteUser はユーザー削除を処理するハンドラを返す。
func (s *Server) handleDeleteUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		err := s.queries.DeleteUser(c.Request.Context(), id)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		} else if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー削除に失敗しました"})
			log.Printf("ユーザー削除エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "ユーザーを削除しました"})
	}
}
