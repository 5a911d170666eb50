package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shokutaku/demae/pkg/token"
)

// 認証段階の失敗種別。ログでの区別にのみ使用し、
// 外部へのレスポンスはどちらも同一の401となる。
var (
	// errMissingCredential はAuthorizationヘッダーが存在しないことを表す。
	errMissingCredential = errors.New("Authorizationヘッダーが存在しない")
	// errInvalidCredential はトークンの検証失敗を表す。署名不正・期限切れ・
	// 構造不正のいずれかだが、オラクル攻撃を避けるため区別しない。
	errInvalidCredential = errors.New("認証トークンが無効")
)

// bearerPrefix はAuthorizationヘッダーのBearerスキームマーカー。
const bearerPrefix = "Bearer "

// authenticate はリクエストのAuthorizationヘッダーからIdentityを導出する。
// RequiresAuth=trueのルートでのみ呼び出される。I/Oは一切行わず、
// 検証は共有秘密鍵によるローカルな計算のみで完結する。
func authenticate(r *http.Request, secret string) (token.Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return token.Identity{}, errMissingCredential
	}

	// Bearerプレフィックスがあれば取り除き、無ければ値全体をトークンとして扱う
	tokenString, found := strings.CutPrefix(authHeader, bearerPrefix)
	if !found {
		tokenString = authHeader
	}

	id, err := token.Verify(secret, tokenString)
	if err != nil {
		return token.Identity{}, errInvalidCredential
	}
	return id, nil
}
