package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// gatewayがupstreamへ注入する識別ヘッダーのキー。
// 内部サービスはgatewayを唯一の設定者として信頼し、
// 外部から直接届いたこれらのヘッダーを受け入れてはならない。
const (
	// HeaderUserID は認証済みユーザーの識別子を伝播するヘッダー。
	HeaderUserID = "X-User-Id"
	// HeaderUserRole は認証済みユーザーのロールを伝播するヘッダー。
	HeaderUserRole = "X-User-Role"
)

// コンテキストに識別情報を格納するキー。
const (
	contextKeyUserID   = "user_id"
	contextKeyUserRole = "user_role"
)

// Identity はgatewayが注入した識別ヘッダーをコンテキストへ読み込む
// Ginミドルウェアを返す。ヘッダーが無い場合は未認証として素通しし、
// 認証が必要なハンドラはGetUserIDの空チェックで拒否する。
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader(HeaderUserID); userID != "" {
			c.Set(contextKeyUserID, userID)
		}
		if role := c.GetHeader(HeaderUserRole); role != "" {
			c.Set(contextKeyUserRole, role)
		}
		c.Next()
	}
}

// RequireIdentity は識別ヘッダーが存在しないリクエストを401で拒否する
// Ginミドルウェアを返す。Identityの後に適用すること。
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証情報がありません",
			})
			return
		}
		c.Next()
	}
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// Identityミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get(contextKeyUserID)
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetUserRole はGinコンテキストからユーザーロールを取得する。
// Identityミドルウェアが事前に適用されている必要がある。
func GetUserRole(c *gin.Context) string {
	role, _ := c.Get(contextKeyUserRole)
	if r, ok := role.(string); ok {
		return r
	}
	return ""
}
