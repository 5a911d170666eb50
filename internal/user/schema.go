package user

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS users (
    -- ユーザーの一意識別子
    id TEXT PRIMARY KEY,
    -- ログインに使用するユーザー名（メールアドレスを使用）
    username TEXT NOT NULL UNIQUE,
    -- メールアドレス
    email TEXT NOT NULL,
    -- bcryptでハッシュ化されたパスワード
    password_hash TEXT NOT NULL,
    -- ロール識別子（CUSTOMER / RESTAURANT_OWNER / DELIVERY_PARTNER / ADMIN）
    role TEXT NOT NULL DEFAULT 'CUSTOMER',
    -- 表示名
    full_name TEXT NOT NULL DEFAULT '',
    -- 電話番号
    phone TEXT NOT NULL DEFAULT '',
    -- 配達先住所
    address TEXT NOT NULL DEFAULT '',
    -- 作成日時（RFC3339）
    created_at TEXT NOT NULL,
    -- 更新日時（RFC3339）
    updated_at TEXT NOT NULL
);

-- ユーザー名での検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_users_username
    ON users(username);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
