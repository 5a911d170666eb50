package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// TestGenerate はGenerate関数を検証する。
func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("正常にJWTトークンを生成できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := Generate(testSecret, "alice@example.com", RoleCustomer, time.Hour)
		if err != nil {
			t.Fatalf("Generate()でエラーが発生: %v", err)
		}
		if tokenStr == "" {
			t.Fatal("Generate()が空文字列を返した")
		}

		claims := &Claims{}
		parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
			return []byte(testSecret), nil
		})
		if err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if !parsed.Valid {
			t.Fatal("トークンが無効")
		}

		if claims.Subject != "alice@example.com" {
			t.Errorf("Subject = %q, want %q", claims.Subject, "alice@example.com")
		}
		if claims.Role != RoleCustomer {
			t.Errorf("Role = %q, want %q", claims.Role, RoleCustomer)
		}
		if claims.Issuer != "demae" {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, "demae")
		}
	})

	t.Run("有効期限が指定したTTLで設定されること", func(t *testing.T) {
		t.Parallel()

		before := time.Now()
		tokenStr, err := Generate(testSecret, "bob", RoleAdmin, 30*time.Minute)
		if err != nil {
			t.Fatalf("Generate()でエラーが発生: %v", err)
		}

		claims := &Claims{}
		if _, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
			return []byte(testSecret), nil
		}); err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}

		want := before.Add(30 * time.Minute)
		if claims.ExpiresAt.Time.Before(want.Add(-time.Minute)) || claims.ExpiresAt.Time.After(want.Add(time.Minute)) {
			t.Errorf("ExpiresAt = %v, want %v前後", claims.ExpiresAt.Time, want)
		}
	})
}

// TestVerify はVerify関数を検証する。
func TestVerify(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンからIdentityを取得できること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := Generate(testSecret, "u42", RoleDeliveryPartner, time.Hour)
		if err != nil {
			t.Fatalf("Generate()でエラーが発生: %v", err)
		}

		id, err := Verify(testSecret, tokenStr)
		if err != nil {
			t.Fatalf("Verify()でエラーが発生: %v", err)
		}
		if id.Subject != "u42" {
			t.Errorf("Subject = %q, want %q", id.Subject, "u42")
		}
		if id.Role != RoleDeliveryPartner {
			t.Errorf("Role = %q, want %q", id.Role, RoleDeliveryPartner)
		}
	})

	t.Run("roleクレームが無い場合CUSTOMERにデフォルトすること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := Generate(testSecret, "u42", "", time.Hour)
		if err != nil {
			t.Fatalf("Generate()でエラーが発生: %v", err)
		}

		id, err := Verify(testSecret, tokenStr)
		if err != nil {
			t.Fatalf("Verify()でエラーが発生: %v", err)
		}
		if id.Role != RoleCustomer {
			t.Errorf("Role = %q, want %q", id.Role, RoleCustomer)
		}
	})

	t.Run("期限切れトークンはErrInvalidTokenとなること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := Generate(testSecret, "u42", RoleCustomer, -time.Hour)
		if err != nil {
			t.Fatalf("Generate()でエラーが発生: %v", err)
		}

		if _, err := Verify(testSecret, tokenStr); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify() = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("署名鍵が異なるトークンはErrInvalidTokenとなること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := Generate("other-secret", "u42", RoleCustomer, time.Hour)
		if err != nil {
			t.Fatalf("Generate()でエラーが発生: %v", err)
		}

		if _, err := Verify(testSecret, tokenStr); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify() = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("不正な形式の文字列はErrInvalidTokenとなること", func(t *testing.T) {
		t.Parallel()

		if _, err := Verify(testSecret, "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify() = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("subjectが空のトークンはErrInvalidTokenとなること", func(t *testing.T) {
		t.Parallel()

		tokenStr, err := Generate(testSecret, "", RoleCustomer, time.Hour)
		if err != nil {
			t.Fatalf("Generate()でエラーが発生: %v", err)
		}

		if _, err := Verify(testSecret, tokenStr); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify() = %v, want ErrInvalidToken", err)
		}
	})

	t.Run("none署名アルゴリズムを拒否すること", func(t *testing.T) {
		t.Parallel()

		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "u42",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		tokenStr, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("noneトークンの生成に失敗: %v", err)
		}

		if _, err := Verify(testSecret, tokenStr); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify() = %v, want ErrInvalidToken", err)
		}
	})
}

// TestValidRole はValidRole関数を検証する。
func TestValidRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role string
		want bool
	}{
		{RoleCustomer, true},
		{RoleRestaurantOwner, true},
		{RoleDeliveryPartner, true},
		{RoleAdmin, true},
		{"customer", false},
		{"SUPERUSER", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidRole(tt.role); got != tt.want {
			t.Errorf("ValidRole(%q) = %v, want %v", tt.role, got, tt.want)
		}
	}
}
