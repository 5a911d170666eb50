package gateway

import (
	"net/http"

	"github.com/shokutaku/demae/pkg/token"
)

// 転送先の論理サービス名。
const (
	upstreamUser       = "user-service"
	upstreamRestaurant = "restaurant-service"
	upstreamOrder      = "order-service"
)

// defaultRules はフードデリバリーAPIのルートテーブルを返す。
// テーブル順が優先順位となるため、/all や /available のようなリテラルは
// {id}キャプチャを持つルールより前に置くこと。
func defaultRules() []Rule {
	anyRole := []string{token.RoleCustomer, token.RoleRestaurantOwner, token.RoleDeliveryPartner, token.RoleAdmin}
	ownerAdmin := []string{token.RoleRestaurantOwner, token.RoleAdmin}
	partnerAdmin := []string{token.RoleDeliveryPartner, token.RoleAdmin}
	adminOnly := []string{token.RoleAdmin}

	return []Rule{
		// ---------- 公開ルート（認証不要） ----------
		{
			ID:       "user-register",
			Pattern:  "/api/users/register",
			Methods:  []string{http.MethodPost},
			Upstream: upstreamUser,
		},
		{
			ID:       "user-login",
			Pattern:  "/api/users/login",
			Methods:  []string{http.MethodPost},
			Upstream: upstreamUser,
		},

		// ---------- ユーザー ----------
		{
			ID:           "user-profile-get",
			Pattern:      "/api/users/profile",
			Methods:      []string{http.MethodGet},
			RequiresAuth: true,
			AllowedRoles: anyRole,
			Upstream:     upstreamUser,
		},
		{
			ID:           "user-profile-update",
			Pattern:      "/api/users/profile",
			Methods:      []string{http.MethodPut},
			RequiresAuth: true,
			AllowedRoles: anyRole,
			Upstream:     upstreamUser,
		},
		{
			ID:           "users-list",
			Pattern:      "/api/users",
			Methods:      []string{http.MethodGet},
			RequiresAuth: true,
			AllowedRoles: adminOnly,
			Upstream:     upstreamUser,
		},
		{
			ID:           "user-delete",
			Pattern:      "/api/users/{id}",
			Methods:      []string{http.MethodDelete},
			RequiresAuth: true,
			AllowedRoles: adminOnly,
			Upstream:     upstreamUser,
		},

		// ---------- レストラン ----------
		{
			// upstream側では /restaurants/{id} と衝突しないよう
			// 管理者用パスに載せ替える。
			ID:           "restaurants-manage",
			Pattern:      "/api/restaurants/all",
			Methods:      []string{http.MethodGet},
			RequiresAuth: true,
			AllowedRoles: adminOnly,
			Upstream:     upstreamRestaurant,
			Rewrite:      "/admin/restaurants",
		},
		{
			ID:       "restaurants-browse",
			Pattern:  "/api/restaurants",
			Methods:  []string{http.MethodGet},
			Upstream: upstreamRestaurant,
		},
		{
			ID:           "restaurant-create",
			Pattern:      "/api/restaurants",
			Methods:      []string{http.MethodPost},
			RequiresAuth: true,
			AllowedRoles: ownerAdmin,
			Upstream:     upstreamRestaurant,
		},
		{
			ID:       "restaurant-menu",
			Pattern:  "/api/restaurants/{id}/menu",
			Methods:  []string{http.MethodGet},
			Upstream: upstreamRestaurant,
		},
		{
			ID:           "restaurant-menu-add",
			Pattern:      "/api/restaurants/{id}/menu-items",
			Methods:      []string{http.MethodPost},
			RequiresAuth: true,
			AllowedRoles: ownerAdmin,
			Upstream:     upstreamRestaurant,
		},
		{
			// レストラン視点の注文一覧はorderサービスが保持しているため、
			// キャプチャを使ってupstream側のパス形式へ書き換える。
			ID:           "restaurant-orders",
			Pattern:      "/api/restaurants/{id}/orders",
			RequiresAuth: true,
			AllowedRoles: ownerAdmin,
			Upstream:     upstreamOrder,
			Rewrite:      "/restaurant-orders/{id}",
		},
		{
			ID:       "restaurant-details",
			Pattern:  "/api/restaurants/{id}",
			Methods:  []string{http.MethodGet},
			Upstream: upstreamRestaurant,
		},
		{
			ID:           "restaurant-update",
			Pattern:      "/api/restaurants/{id}",
			Methods:      []string{http.MethodPut},
			RequiresAuth: true,
			AllowedRoles: ownerAdmin,
			Upstream:     upstreamRestaurant,
		},
		{
			ID:           "restaurant-delete",
			Pattern:      "/api/restaurants/{id}",
			Methods:      []string{http.MethodDelete},
			RequiresAuth: true,
			AllowedRoles: ownerAdmin,
			Upstream:     upstreamRestaurant,
		},

		// ---------- 注文 ----------
		{
			ID:           "orders-available",
			Pattern:      "/api/orders/available",
			Methods:      []string{http.MethodGet},
			RequiresAuth: true,
			AllowedRoles: partnerAdmin,
			Upstream:     upstreamOrder,
			Rewrite:      "/delivery/available",
		},
		{
			ID:           "orders-all",
			Pattern:      "/api/orders/all",
			Methods:      []string{http.MethodGet},
			RequiresAuth: true,
			AllowedRoles: adminOnly,
			Upstream:     upstreamOrder,
			Rewrite:      "/admin/orders",
		},
		{
			ID:           "orders-create",
			Pattern:      "/api/orders",
			Methods:      []string{http.MethodPost},
			RequiresAuth: true,
			AllowedRoles: []string{token.RoleCustomer},
			Upstream:     upstreamOrder,
		},
		{
			ID:           "orders-customer-view",
			Pattern:      "/api/orders",
			Methods:      []string{http.MethodGet},
			RequiresAuth: true,
			AllowedRoles: []string{token.RoleCustomer},
			Upstream:     upstreamOrder,
		},
		{
			ID:           "order-status-update",
			Pattern:      "/api/orders/{id}/status",
			Methods:      []string{http.MethodPut},
			RequiresAuth: true,
			AllowedRoles: ownerAdmin,
			Upstream:     upstreamOrder,
		},
		{
			ID:           "order-accept",
			Pattern:      "/api/orders/{id}/accept",
			Methods:      []string{http.MethodPut},
			RequiresAuth: true,
			AllowedRoles: partnerAdmin,
			Upstream:     upstreamOrder,
		},
		{
			ID:           "order-complete",
			Pattern:      "/api/orders/{id}/complete",
			Methods:      []string{http.MethodPut},
			RequiresAuth: true,
			AllowedRoles: partnerAdmin,
			Upstream:     upstreamOrder,
		},
		{
			ID:           "order-cancel",
			Pattern:      "/api/orders/{id}/cancel",
			Methods:      []string{http.MethodPut},
			RequiresAuth: true,
			AllowedRoles: []string{token.RoleCustomer, token.RoleAdmin},
			Upstream:     upstreamOrder,
		},
		{
			ID:           "order-details",
			Pattern:      "/api/orders/{id}",
			Methods:      []string{http.MethodGet},
			RequiresAuth: true,
			AllowedRoles: anyRole,
			Upstream:     upstreamOrder,
		},

		// ---------- 決済（認証必須・ロール制限なし） ----------
		{
			ID:           "payment-initiate",
			Pattern:      "/api/payments/initiate",
			RequiresAuth: true,
			Upstream:     upstreamOrder,
		},
		{
			ID:           "payment-verify",
			Pattern:      "/api/payments/verify",
			RequiresAuth: true,
			Upstream:     upstreamOrder,
		},
	}
}
