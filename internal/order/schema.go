package order

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS orders (
    -- 注文の一意識別子
    id TEXT PRIMARY KEY,
    -- 注文した顧客のID（ユーザー名）
    customer_id TEXT NOT NULL,
    -- 注文先レストランのID
    restaurant_id TEXT NOT NULL,
    -- 注文ステータス（PENDING / PREPARING / READY / OUT_FOR_DELIVERY / DELIVERED / CANCELLED）
    status TEXT NOT NULL DEFAULT 'PENDING',
    -- 合計金額
    total_amount REAL NOT NULL,
    -- 配達先住所
    delivery_address TEXT NOT NULL,
    -- 割り当てられた配達パートナーのID（未割り当ては空文字列）
    delivery_partner_id TEXT NOT NULL DEFAULT '',
    -- キャンセル理由
    cancel_reason TEXT NOT NULL DEFAULT '',
    -- 作成日時（RFC3339）
    created_at TEXT NOT NULL,
    -- 更新日時（RFC3339）
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
    -- 注文明細の一意識別子
    id TEXT PRIMARY KEY,
    -- 所属する注文のID
    order_id TEXT NOT NULL,
    -- メニュー項目のID
    menu_item_id TEXT NOT NULL,
    -- 品名（注文時点のスナップショット）
    name TEXT NOT NULL,
    -- 単価（注文時点のスナップショット）
    price REAL NOT NULL,
    -- 数量
    quantity INTEGER NOT NULL,
    FOREIGN KEY (order_id) REFERENCES orders(id)
);

CREATE TABLE IF NOT EXISTS payments (
    -- 決済の一意識別子
    id TEXT PRIMARY KEY,
    -- 対象の注文ID
    order_id TEXT NOT NULL,
    -- 決済金額
    amount REAL NOT NULL,
    -- 決済ステータス（INITIATED / COMPLETED）
    status TEXT NOT NULL DEFAULT 'INITIATED',
    -- 決済手段（例: card, cash）
    method TEXT NOT NULL DEFAULT '',
    -- 決済プロバイダのトランザクションID
    transaction_id TEXT NOT NULL UNIQUE,
    -- 作成日時（RFC3339）
    created_at TEXT NOT NULL,
    FOREIGN KEY (order_id) REFERENCES orders(id)
);

-- 顧客視点の注文一覧を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_orders_customer_id
    ON orders(customer_id);

-- レストラン視点の注文一覧を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_orders_restaurant_id
    ON orders(restaurant_id);

-- 注文明細の取得を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_order_items_order_id
    ON order_items(order_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
