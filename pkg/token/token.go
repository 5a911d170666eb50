package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ロール識別子。大文字小文字を区別する閉じた列挙であり、
// ロール間の階層関係は存在しない。
const (
	// RoleCustomer は注文を行う一般顧客。roleクレーム省略時のデフォルト。
	RoleCustomer = "CUSTOMER"
	// RoleRestaurantOwner はレストランとメニューを管理する店舗オーナー。
	RoleRestaurantOwner = "RESTAURANT_OWNER"
	// RoleDeliveryPartner は注文の受け取りと配達を行う配達パートナー。
	RoleDeliveryPartner = "DELIVERY_PARTNER"
	// RoleAdmin は全リソースを管理する運用管理者。
	RoleAdmin = "ADMIN"
)

// ValidRole はロール識別子が既知の列挙に含まれるかを返す。
func ValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleRestaurantOwner, RoleDeliveryPartner, RoleAdmin:
		return true
	}
	return false
}

// ErrInvalidToken はトークンの検証失敗を表す。
// 署名不正・期限切れ・構造不正のいずれも呼び出し側には区別させない。
var ErrInvalidToken = errors.New("トークンが無効")

// Claims はJWTトークンのクレーム（ペイロード）を表す。
// subjectにはユーザー名、roleにはロール識別子を格納する。
type Claims struct {
	jwt.RegisteredClaims
	// Role は認証済みユーザーのロール識別子。省略可。
	Role string `json:"role,omitempty"`
}

// Identity は認証に成功した呼び出し元の識別情報。
// リクエストごとに生成され、gatewayから先へはHTTPヘッダーでのみ伝播する。
type Identity struct {
	// Subject は安定したユーザー識別子（ユーザー名）。
	Subject string
	// Role はロール識別子。トークンにroleクレームが無い場合はRoleCustomer。
	Role string
}

// issuer はこのシステムが発行するトークンのissクレーム値。
const issuer = "demae"

// Generate はユーザー情報からHS256署名付きJWTトークンを生成する。
// userサービスがログイン成功時に呼び出す。
func Generate(secret, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークン文字列を検証し、Identityへ変換する。
// 署名・有効期限・クレーム構造のいずれかが不正な場合、詳細を問わず
// ErrInvalidTokenを返す。roleクレームが無いトークンはRoleCustomerとして扱う。
func Verify(secret, tokenString string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	if claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	role := claims.Role
	if role == "" {
		role = RoleCustomer
	}

	return Identity{Subject: claims.Subject, Role: role}, nil
}
