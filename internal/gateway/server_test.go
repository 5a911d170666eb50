package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shokutaku/demae/pkg/middleware"
	"github.com/shokutaku/demae/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestServer はテスト用のGatewayサーバーを生成する。
// 全upstreamをbackendURLへ解決する。
func newTestServer(t *testing.T, backendURL string, timeout time.Duration) *Server {
	t.Helper()

	table, err := NewTable(defaultRules())
	if err != nil {
		t.Fatalf("ルートテーブルの構築に失敗: %v", err)
	}

	resolver := StaticResolver{
		upstreamUser:       backendURL,
		upstreamRestaurant: backendURL,
		upstreamOrder:      backendURL,
	}

	router := gin.New()
	s := &Server{
		router:   router,
		port:     "0",
		pipeline: newPipeline(table, testJWTSecret, newForwarder(resolver, timeout)),
	}
	s.setupRoutes()

	return s
}

// newTestServerWithBackend はモックバックエンドを持つテスト用Gatewayサーバーを生成する。
func newTestServerWithBackend(t *testing.T, backendHandler http.HandlerFunc) *Server {
	t.Helper()

	backend := httptest.NewServer(backendHandler)
	t.Cleanup(backend.Close)

	return newTestServer(t, backend.URL, 5*time.Second)
}

// generateTestJWT はテスト用のJWTトークンを生成する。
func generateTestJWT(t *testing.T, subject, role string, ttl time.Duration) string {
	t.Helper()

	tokenStr, err := token.Generate(testJWTSecret, subject, role, ttl)
	if err != nil {
		t.Fatalf("テスト用JWT生成に失敗: %v", err)
	}
	return tokenStr
}

// doRequest はテスト用リクエストをサーバーへ送り、レスポンスを返す。
func doRequest(s *Server, method, path, bearerToken string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// TestPipelineRouteNotFound はルート不一致時の挙動を検証する。
func TestPipelineRouteNotFound(t *testing.T) {
	t.Parallel()

	t.Run("未知のパスで404とエラーJSONが返ること", func(t *testing.T) {
		t.Parallel()

		backendCalled := false
		s := newTestServerWithBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			backendCalled = true
			w.WriteHeader(http.StatusOK)
		})

		w := doRequest(s, http.MethodGet, "/api/unknown/path", "", nil)

		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["error"] == "" {
			t.Error("errorフィールドが空")
		}
		if body["status"] != float64(http.StatusNotFound) {
			t.Errorf("status = %v, want %d", body["status"], http.StatusNotFound)
		}
		if backendCalled {
			t.Error("ルート不一致なのにバックエンドへ転送された")
		}
	})
}

// TestPipelineAuthentication は認証段階の外部挙動を検証する。
func TestPipelineAuthentication(t *testing.T) {
	t.Parallel()

	t.Run("公開ルートはトークン無しで転送されること", func(t *testing.T) {
		t.Parallel()

		var gotPath, gotUserID string
		s := newTestServerWithBackend(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotUserID = r.Header.Get(middleware.HeaderUserID)
			w.Write([]byte(`{"status":"ok"}`))
		})

		w := doRequest(s, http.MethodPost, "/api/users/login", "", strings.NewReader(`{}`))

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if gotPath != "/users/login" {
			t.Errorf("転送先パス = %q, want %q", gotPath, "/users/login")
		}
		if gotUserID != "" {
			t.Errorf("未認証リクエストにX-User-Idが付与された: %q", gotUserID)
		}
	})

	t.Run("保護ルートでヘッダー無しの場合401が返ること", func(t *testing.T) {
		t.Parallel()

		backendCalled := false
		s := newTestServerWithBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			backendCalled = true
			w.WriteHeader(http.StatusOK)
		})

		w := doRequest(s, http.MethodGet, "/api/orders", "", nil)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if !strings.Contains(w.Body.String(), "error") {
			t.Errorf("ボディにerrorが含まれない: %s", w.Body.String())
		}
		if backendCalled {
			t.Error("認証失敗なのにバックエンドへ転送された")
		}
	})

	t.Run("期限切れトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		expired := generateTestJWT(t, "u42", token.RoleCustomer, -time.Hour)
		w := doRequest(s, http.MethodGet, "/api/orders", expired, nil)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("期限切れと不正形式で同一のレスポンスが返ること", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		expired := generateTestJWT(t, "u42", token.RoleCustomer, -time.Hour)
		wExpired := doRequest(s, http.MethodGet, "/api/orders", expired, nil)
		wGarbage := doRequest(s, http.MethodGet, "/api/orders", "garbage-token", nil)

		if wExpired.Code != wGarbage.Code {
			t.Errorf("ステータスコードが異なる: %d vs %d", wExpired.Code, wGarbage.Code)
		}
		if wExpired.Body.String() != wGarbage.Body.String() {
			t.Errorf("失敗理由がレスポンスから区別できてしまう: %q vs %q", wExpired.Body.String(), wGarbage.Body.String())
		}
	})
}

// TestPipelineAuthorization は認可段階の外部挙動を検証する。
func TestPipelineAuthorization(t *testing.T) {
	t.Parallel()

	t.Run("許可ロールのリクエストが識別ヘッダー付きで転送されること", func(t *testing.T) {
		t.Parallel()

		var gotPath, gotUserID, gotUserRole string
		s := newTestServerWithBackend(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotUserID = r.Header.Get(middleware.HeaderUserID)
			gotUserRole = r.Header.Get(middleware.HeaderUserRole)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"o-1"}`))
		})

		tokenStr := generateTestJWT(t, "u42", token.RoleCustomer, time.Hour)
		w := doRequest(s, http.MethodPost, "/api/orders", tokenStr, strings.NewReader(`{}`))

		if w.Code != http.StatusCreated {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusCreated)
		}
		if gotPath != "/orders" {
			t.Errorf("転送先パス = %q, want %q", gotPath, "/orders")
		}
		if gotUserID != "u42" {
			t.Errorf("X-User-Id = %q, want %q", gotUserID, "u42")
		}
		if gotUserRole != token.RoleCustomer {
			t.Errorf("X-User-Role = %q, want %q", gotUserRole, token.RoleCustomer)
		}
	})

	t.Run("許可されていないロールで403が返り転送されないこと", func(t *testing.T) {
		t.Parallel()

		backendCalled := false
		s := newTestServerWithBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			backendCalled = true
			w.WriteHeader(http.StatusOK)
		})

		tokenStr := generateTestJWT(t, "dp-1", token.RoleDeliveryPartner, time.Hour)
		w := doRequest(s, http.MethodPost, "/api/orders", tokenStr, strings.NewReader(`{}`))

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["status"] != float64(http.StatusForbidden) {
			t.Errorf("status = %v, want %d", body["status"], http.StatusForbidden)
		}
		if backendCalled {
			t.Error("認可失敗なのにバックエンドへ転送された")
		}
	})

	t.Run("roleクレーム無しトークンがCUSTOMERとして転送されること", func(t *testing.T) {
		t.Parallel()

		var gotUserRole string
		s := newTestServerWithBackend(t, func(w http.ResponseWriter, r *http.Request) {
			gotUserRole = r.Header.Get(middleware.HeaderUserRole)
			w.Write([]byte(`[]`))
		})

		tokenStr := generateTestJWT(t, "u42", "", time.Hour)
		w := doRequest(s, http.MethodGet, "/api/orders", tokenStr, nil)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if gotUserRole != token.RoleCustomer {
			t.Errorf("X-User-Role = %q, want %q", gotUserRole, token.RoleCustomer)
		}
	})

	t.Run("ロール制限なしの認証ルートは任意のロールを通すこと", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`{}`))
		})

		for _, role := range []string{token.RoleCustomer, token.RoleRestaurantOwner, token.RoleDeliveryPartner, token.RoleAdmin} {
			tokenStr := generateTestJWT(t, "u-"+role, role, time.Hour)
			w := doRequest(s, http.MethodPost, "/api/payments/initiate", tokenStr, strings.NewReader(`{}`))
			if w.Code != http.StatusOK {
				t.Errorf("role=%s: ステータスコード = %d, want %d", role, w.Code, http.StatusOK)
			}
		}
	})

	t.Run("ADMINは列挙されたルートにのみアクセスできること", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(`[]`))
		})

		adminToken := generateTestJWT(t, "admin-1", token.RoleAdmin, time.Hour)

		// orders-all はADMINを列挙している
		if w := doRequest(s, http.MethodGet, "/api/orders/all", adminToken, nil); w.Code != http.StatusOK {
			t.Errorf("orders-all: ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		// orders-create はCUSTOMERのみ。ADMINでも拒否される
		if w := doRequest(s, http.MethodPost, "/api/orders", adminToken, strings.NewReader(`{}`)); w.Code != http.StatusForbidden {
			t.Errorf("orders-create: ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

// TestPipelineForwarding は転送段の外部挙動を検証する。
func TestPipelineForwarding(t *testing.T) {
	t.Parallel()

	t.Run("キャプチャによるパス書き換えが行われること", func(t *testing.T) {
		t.Parallel()

		var gotPath string
		s := newTestServerWithBackend(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Write([]byte(`[]`))
		})

		tokenStr := generateTestJWT(t, "owner-1", token.RoleRestaurantOwner, time.Hour)
		w := doRequest(s, http.MethodGet, "/api/restaurants/r-9/orders", tokenStr, nil)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if gotPath != "/restaurant-orders/r-9" {
			t.Errorf("転送先パス = %q, want %q", gotPath, "/restaurant-orders/r-9")
		}
	})

	t.Run("クエリ文字列が保持されること", func(t *testing.T) {
		t.Parallel()

		var gotQuery string
		s := newTestServerWithBackend(t, func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`[]`))
		})

		w := doRequest(s, http.MethodGet, "/api/restaurants?cuisine=ramen", "", nil)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if gotQuery != "cuisine=ramen" {
			t.Errorf("クエリ = %q, want %q", gotQuery, "cuisine=ramen")
		}
	})

	t.Run("外部から届いた識別ヘッダーが破棄されること", func(t *testing.T) {
		t.Parallel()

		var gotUserID, gotUserRole string
		s := newTestServerWithBackend(t, func(w http.ResponseWriter, r *http.Request) {
			gotUserID = r.Header.Get(middleware.HeaderUserID)
			gotUserRole = r.Header.Get(middleware.HeaderUserRole)
			w.Write([]byte(`[]`))
		})

		req := httptest.NewRequest(http.MethodGet, "/api/restaurants", nil)
		req.Header.Set(middleware.HeaderUserID, "spoofed-admin")
		req.Header.Set(middleware.HeaderUserRole, token.RoleAdmin)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if gotUserID != "" {
			t.Errorf("偽装X-User-Idが転送された: %q", gotUserID)
		}
		if gotUserRole != "" {
			t.Errorf("偽装X-User-Roleが転送された: %q", gotUserRole)
		}
	})

	t.Run("upstreamのステータスとヘッダーがそのまま返ること", func(t *testing.T) {
		t.Parallel()

		s := newTestServerWithBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("X-Request-Id", "req-123")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":"すでに存在します"}`))
		})

		w := doRequest(s, http.MethodPost, "/api/users/register", "", strings.NewReader(`{}`))

		if w.Code != http.StatusConflict {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusConflict)
		}
		if got := w.Header().Get("X-Request-Id"); got != "req-123" {
			t.Errorf("X-Request-Id = %q, want %q", got, "req-123")
		}
		if !strings.Contains(w.Body.String(), "すでに存在します") {
			t.Errorf("upstreamのボディが欠落: %s", w.Body.String())
		}
	})

	t.Run("upstreamへ接続できない場合502が返ること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t, "http://127.0.0.1:1", 2*time.Second)

		w := doRequest(s, http.MethodGet, "/api/restaurants", "", nil)

		if w.Code != http.StatusBadGateway {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadGateway)
		}
	})

	t.Run("upstreamがタイムアウトした場合504が返ること", func(t *testing.T) {
		t.Parallel()

		backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(500 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(backend.Close)

		s := newTestServer(t, backend.URL, 50*time.Millisecond)

		w := doRequest(s, http.MethodGet, "/api/restaurants", "", nil)

		if w.Code != http.StatusGatewayTimeout {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusGatewayTimeout)
		}
	})
}

// TestHealthCheck はヘルスチェックエンドポイントを検証する。
func TestHealthCheck(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, "http://127.0.0.1:1", time.Second)

	w := doRequest(s, http.MethodGet, "/health", "", nil)

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "gateway") {
		t.Errorf("サービス名が含まれない: %s", w.Body.String())
	}
}
