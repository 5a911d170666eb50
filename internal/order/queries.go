package order

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Order はordersテーブルの1行を表す。
type Order struct {
	// ID は注文の一意識別子。
	ID string `json:"id"`
	// CustomerID は注文した顧客のID。
	CustomerID string `json:"customer_id"`
	// RestaurantID は注文先レストランのID。
	RestaurantID string `json:"restaurant_id"`
	// Status は注文ステータス。
	Status string `json:"status"`
	// TotalAmount は合計金額。
	TotalAmount float64 `json:"total_amount"`
	// DeliveryAddress は配達先住所。
	DeliveryAddress string `json:"delivery_address"`
	// DeliveryPartnerID は割り当てられた配達パートナーのID。未割り当ては空。
	DeliveryPartnerID string `json:"delivery_partner_id,omitempty"`
	// CancelReason はキャンセル理由。
	CancelReason string `json:"cancel_reason,omitempty"`
	// CreatedAt は作成日時（RFC3339）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時（RFC3339）。
	UpdatedAt string `json:"updated_at"`
	// Items は注文明細。詳細取得時のみ設定される。
	Items []OrderItem `json:"items,omitempty"`
}

// OrderItem はorder_itemsテーブルの1行を表す。
type OrderItem struct {
	// ID は注文明細の一意識別子。
	ID string `json:"id"`
	// OrderID は所属する注文のID。
	OrderID string `json:"order_id"`
	// MenuItemID はメニュー項目のID。
	MenuItemID string `json:"menu_item_id"`
	// Name は品名（注文時点のスナップショット）。
	Name string `json:"name"`
	// Price は単価（注文時点のスナップショット）。
	Price float64 `json:"price"`
	// Quantity は数量。
	Quantity int `json:"quantity"`
}

// Payment はpaymentsテーブルの1行を表す。
type Payment struct {
	// ID は決済の一意識別子。
	ID string `json:"id"`
	// OrderID は対象の注文ID。
	OrderID string `json:"order_id"`
	// Amount は決済金額。
	Amount float64 `json:"amount"`
	// Status は決済ステータス。
	Status string `json:"status"`
	// Method は決済手段。
	Method string `json:"method"`
	// TransactionID は決済プロバイダのトランザクションID。
	TransactionID string `json:"transaction_id"`
	// CreatedAt は作成日時（RFC3339）。
	CreatedAt string `json:"created_at"`
}

// 決済ステータス。
const (
	// PaymentInitiated は決済開始済み、確認待ち。
	PaymentInitiated = "INITIATED"
	// PaymentCompleted は決済確認済み。
	PaymentCompleted = "COMPLETED"
)

// Queries はorderサービスのクエリ実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// NewQueries は新しいQueriesを生成する。
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// CreateOrderParams はCreateOrderのパラメータ。
type CreateOrderParams struct {
	ID              string
	CustomerID      string
	RestaurantID    string
	TotalAmount     float64
	DeliveryAddress string
	Items           []OrderItem
}

// CreateOrder は注文と明細を1トランザクションで挿入する。
func (q *Queries) CreateOrder(ctx context.Context, params CreateOrderParams) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, restaurant_id, status, total_amount, delivery_address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		params.ID, params.CustomerID, params.RestaurantID, StatusPending,
		params.TotalAmount, params.DeliveryAddress, now, now,
	); err != nil {
		return fmt.Errorf("注文の挿入に失敗: %w", err)
	}

	for _, item := range params.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, menu_item_id, name, price, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, params.ID, item.MenuItemID, item.Name, item.Price, item.Quantity,
		); err != nil {
			return fmt.Errorf("注文明細の挿入に失敗: %w", err)
		}
	}

	return tx.Commit()
}

// GetOrder はIDで注文を取得する。明細は含まない。
func (q *Queries) GetOrder(ctx context.Context, id string) (Order, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, customer_id, restaurant_id, status, total_amount, delivery_address, delivery_partner_id, cancel_reason, created_at, updated_at
		FROM orders WHERE id = ?`, id)
	return scanOrder(row)
}

// ListOrderItems は注文の明細を取得する。
func (q *Queries) ListOrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, order_id, menu_item_id, name, price, quantity
		FROM order_items WHERE order_id = ?`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListOrdersByCustomer は顧客の注文を新しい順で取得する。
func (q *Queries) ListOrdersByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return q.listOrders(ctx, `
		SELECT id, customer_id, restaurant_id, status, total_amount, delivery_address, delivery_partner_id, cancel_reason, created_at, updated_at
		FROM orders WHERE customer_id = ? ORDER BY created_at DESC`, customerID)
}

// ListOrdersByRestaurant はレストランへの注文を新しい順で取得する。
func (q *Queries) ListOrdersByRestaurant(ctx context.Context, restaurantID string) ([]Order, error) {
	return q.listOrders(ctx, `
		SELECT id, customer_id, restaurant_id, status, total_amount, delivery_address, delivery_partner_id, cancel_reason, created_at, updated_at
		FROM orders WHERE restaurant_id = ? ORDER BY created_at DESC`, restaurantID)
}

// ListAvailableOrders は配達引き受け可能な注文を取得する。
// 調理完了済みかつ配達パートナー未割り当ての注文が対象。
func (q *Queries) ListAvailableOrders(ctx context.Context) ([]Order, error) {
	return q.listOrders(ctx, `
		SELECT id, customer_id, restaurant_id, status, total_amount, delivery_address, delivery_partner_id, cancel_reason, created_at, updated_at
		FROM orders WHERE status = ? AND delivery_partner_id = '' ORDER BY created_at`, StatusReady)
}

// ListAllOrders は全注文を新しい順で取得する。
func (q *Queries) ListAllOrders(ctx context.Context) ([]Order, error) {
	return q.listOrders(ctx, `
		SELECT id, customer_id, restaurant_id, status, total_amount, delivery_address, delivery_partner_id, cancel_reason, created_at, updated_at
		FROM orders ORDER BY created_at DESC`)
}

func (q *Queries) listOrders(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// SetStatus は注文ステータスを更新する。
// 対象が存在しない場合sql.ErrNoRowsを返す。遷移の妥当性は呼び出し側が検証する。
func (q *Queries) SetStatus(ctx context.Context, id, status string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := q.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`, status, now, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// AcceptOrder は配達パートナーを割り当てて配達中ステータスへ進める。
// 引き受け可能な状態でない場合sql.ErrNoRowsを返す。
// WHERE句の条件により、2人のパートナーが同じ注文を同時に引き受けることはできない。
func (q *Queries) AcceptOrder(ctx context.Context, id, partnerID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := q.db.ExecContext(ctx, `
		UPDATE orders SET delivery_partner_id = ?, status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND delivery_partner_id = ''`,
		partnerID, StatusOutForDelivery, now, id, StatusReady)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// CancelOrder は注文をキャンセルし理由を記録する。
// 対象が存在しない場合sql.ErrNoRowsを返す。
func (q *Queries) CancelOrder(ctx context.Context, id, reason string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := q.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, cancel_reason = ?, updated_at = ? WHERE id = ?`,
		StatusCancelled, reason, now, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// CreatePaymentParams はCreatePaymentのパラメータ。
type CreatePaymentParams struct {
	ID            string
	OrderID       string
	Amount        float64
	Method        string
	TransactionID string
}

// CreatePayment は新しい決済レコードを挿入する。
func (q *Queries) CreatePayment(ctx context.Context, params CreatePaymentParams) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, amount, status, method, transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		params.ID, params.OrderID, params.Amount, PaymentInitiated,
		params.Method, params.TransactionID, now,
	)
	return err
}

// GetPaymentByTransactionID はトランザクションIDで決済を取得する。
func (q *Queries) GetPaymentByTransactionID(ctx context.Context, transactionID string) (Payment, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, order_id, amount, status, method, transaction_id, created_at
		FROM payments WHERE transaction_id = ?`, transactionID)

	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.Method, &p.TransactionID, &p.CreatedAt)
	return p, err
}

// CompletePayment は決済を確認済みへ更新する。
// 対象が存在しない場合sql.ErrNoRowsを返す。
func (q *Queries) CompletePayment(ctx context.Context, transactionID string) error {
	result, err := q.db.ExecContext(ctx, `
		UPDATE payments SET status = ? WHERE transaction_id = ?`,
		PaymentCompleted, transactionID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// requireAffected は更新が1行も行われなかった場合sql.ErrNoRowsを返す。
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// scanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type scanner interface {
	Scan(dest ...any) error
}

// scanOrder は1行をOrderへスキャンする。
func scanOrder(row scanner) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.RestaurantID, &o.Status, &o.TotalAmount,
		&o.DeliveryAddress, &o.DeliveryPartnerID, &o.CancelReason,
		&o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}
