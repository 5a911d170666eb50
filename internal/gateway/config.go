package gateway

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config はgatewayサービスの設定。環境変数から読み込む。
type Config struct {
	// Port はサーバーのリッスンポート。
	Port string `envconfig:"PORT" default:"8080"`
	// JWTSecret はJWT検証用の共有秘密鍵。
	JWTSecret string `envconfig:"JWT_SECRET" default:"dev-secret-key"`
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	// UserServiceURL はuserサービスのベースURL。
	UserServiceURL string `envconfig:"USER_SERVICE_URL" default:"http://localhost:8081"`
	// RestaurantServiceURL はrestaurantサービスのベースURL。
	RestaurantServiceURL string `envconfig:"RESTAURANT_SERVICE_URL" default:"http://localhost:8082"`
	// OrderServiceURL はorderサービスのベースURL。
	OrderServiceURL string `envconfig:"ORDER_SERVICE_URL" default:"http://localhost:8083"`
	// UpstreamTimeout はupstream呼び出しの上限時間。超過時は504を返す。
	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
}

// LoadConfig は環境変数からgateway設定を読み込む。
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("gateway設定の読み込みに失敗: %w", err)
	}
	return cfg, nil
}

// resolver は設定されたサービスURLからStaticResolverを構築する。
func (c Config) resolver() StaticResolver {
	return StaticResolver{
		upstreamUser:       c.UserServiceURL,
		upstreamRestaurant: c.RestaurantServiceURL,
		upstreamOrder:      c.OrderServiceURL,
	}
}
