package restaurant

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS restaurants (
    -- レストランの一意識別子
    id TEXT PRIMARY KEY,
    -- 店舗名
    name TEXT NOT NULL,
    -- 店舗説明
    description TEXT NOT NULL DEFAULT '',
    -- 住所
    address TEXT NOT NULL,
    -- 電話番号
    phone TEXT NOT NULL DEFAULT '',
    -- 料理ジャンル（例: japanese, italian）
    cuisine TEXT NOT NULL DEFAULT '',
    -- 画像URL
    image_url TEXT NOT NULL DEFAULT '',
    -- 評価（0.0〜5.0）
    rating REAL NOT NULL DEFAULT 0,
    -- 営業中フラグ（0: 休業中, 1: 営業中）
    is_open INTEGER NOT NULL DEFAULT 1,
    -- 配達目安時間（分）
    delivery_time_minutes INTEGER NOT NULL DEFAULT 30,
    -- 作成日時（RFC3339）
    created_at TEXT NOT NULL,
    -- 更新日時（RFC3339）
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS menu_items (
    -- メニュー項目の一意識別子
    id TEXT PRIMARY KEY,
    -- 所属するレストランのID
    restaurant_id TEXT NOT NULL,
    -- 品名
    name TEXT NOT NULL,
    -- 説明
    description TEXT NOT NULL DEFAULT '',
    -- 価格
    price REAL NOT NULL,
    -- カテゴリー（例: appetizer, main, dessert）
    category TEXT NOT NULL DEFAULT '',
    -- 画像URL
    image_url TEXT NOT NULL DEFAULT '',
    -- 提供可能フラグ（0: 売り切れ, 1: 提供可能）
    available INTEGER NOT NULL DEFAULT 1,
    -- 作成日時（RFC3339）
    created_at TEXT NOT NULL,
    FOREIGN KEY (restaurant_id) REFERENCES restaurants(id)
);

-- レストラン単位のメニュー取得を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_menu_items_restaurant_id
    ON menu_items(restaurant_id);

-- ジャンルでの絞り込みを高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_restaurants_cuisine
    ON restaurants(cuisine);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
