package restaurant

import (
	"context"
	"database/sql"
	"time"
)

// Restaurant はrestaurantsテーブルの1行を表す。
type Restaurant struct {
	// ID はレストランの一意識別子。
	ID string `json:"id"`
	// Name は店舗名。
	Name string `json:"name"`
	// Description は店舗説明。
	Description string `json:"description"`
	// Address は住所。
	Address string `json:"address"`
	// Phone は電話番号。
	Phone string `json:"phone"`
	// Cuisine は料理ジャンル。
	Cuisine string `json:"cuisine"`
	// ImageURL は画像URL。
	ImageURL string `json:"image_url"`
	// Rating は評価（0.0〜5.0）。
	Rating float64 `json:"rating"`
	// IsOpen は営業中フラグ。
	IsOpen bool `json:"is_open"`
	// DeliveryTimeMinutes は配達目安時間（分）。
	DeliveryTimeMinutes int `json:"delivery_time_minutes"`
	// CreatedAt は作成日時（RFC3339）。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時（RFC3339）。
	UpdatedAt string `json:"updated_at"`
}

// MenuItem はmenu_itemsテーブルの1行を表す。
type MenuItem struct {
	// ID はメニュー項目の一意識別子。
	ID string `json:"id"`
	// RestaurantID は所属するレストランのID。
	RestaurantID string `json:"restaurant_id"`
	// Name は品名。
	Name string `json:"name"`
	// Description は説明。
	Description string `json:"description"`
	// Price は価格。
	Price float64 `json:"price"`
	// Category はカテゴリー。
	Category string `json:"category"`
	// ImageURL は画像URL。
	ImageURL string `json:"image_url"`
	// Available は提供可能フラグ。
	Available bool `json:"available"`
	// CreatedAt は作成日時（RFC3339）。
	CreatedAt string `json:"created_at"`
}

// Queries はrestaurantサービスのクエリ実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// NewQueries は新しいQueriesを生成する。
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// CreateRestaurantParams はCreateRestaurantのパラメータ。
type CreateRestaurantParams struct {
	ID                  string
	Name                string
	Description         string
	Address             string
	Phone               string
	Cuisine             string
	ImageURL            string
	DeliveryTimeMinutes int
}

// CreateRestaurant は新しいレストランレコードを挿入する。
func (q *Queries) CreateRestaurant(ctx context.Context, params CreateRestaurantParams) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO restaurants (id, name, description, address, phone, cuisine, image_url, rating, is_open, delivery_time_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 1, ?, ?, ?)`,
		params.ID, params.Name, params.Description, params.Address, params.Phone,
		params.Cuisine, params.ImageURL, params.DeliveryTimeMinutes, now, now,
	)
	return err
}

// GetRestaurant はIDでレストランを取得する。
func (q *Queries) GetRestaurant(ctx context.Context, id string) (Restaurant, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, description, address, phone, cuisine, image_url, rating, is_open, delivery_time_minutes, created_at, updated_at
		FROM restaurants WHERE id = ?`, id)
	return scanRestaurant(row)
}

// ListOpenRestaurants は営業中のレストランを取得する。
// cuisineが空でない場合はジャンルで絞り込む。
func (q *Queries) ListOpenRestaurants(ctx context.Context, cuisine string) ([]Restaurant, error) {
	query := `
		SELECT id, name, description, address, phone, cuisine, image_url, rating, is_open, delivery_time_minutes, created_at, updated_at
		FROM restaurants WHERE is_open = 1`
	args := []any{}
	if cuisine != "" {
		query += ` AND cuisine = ?`
		args = append(args, cuisine)
	}
	query += ` ORDER BY rating DESC, created_at`
	return q.listRestaurants(ctx, query, args...)
}

// ListAllRestaurants は休業中を含む全レストランを取得する。
func (q *Queries) ListAllRestaurants(ctx context.Context) ([]Restaurant, error) {
	return q.listRestaurants(ctx, `
		SELECT id, name, description, address, phone, cuisine, image_url, rating, is_open, delivery_time_minutes, created_at, updated_at
		FROM restaurants ORDER BY created_at`)
}

func (q *Queries) listRestaurants(ctx context.Context, query string, args ...any) ([]Restaurant, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var restaurants []Restaurant
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, err
		}
		restaurants = append(restaurants, r)
	}
	return restaurants, rows.Err()
}

// UpdateRestaurantParams はUpdateRestaurantのパラメータ。
type UpdateRestaurantParams struct {
	ID                  string
	Name                string
	Description         string
	Address             string
	Phone               string
	Cuisine             string
	ImageURL            string
	IsOpen              bool
	DeliveryTimeMinutes int
}

// UpdateRestaurant はレストラン情報を更新する。
// 対象が存在しない場合sql.ErrNoRowsを返す。
func (q *Queries) UpdateRestaurant(ctx context.Context, params UpdateRestaurantParams) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := q.db.ExecContext(ctx, `
		UPDATE restaurants
		SET name = ?, description = ?, address = ?, phone = ?, cuisine = ?, image_url = ?, is_open = ?, delivery_time_minutes = ?, updated_at = ?
		WHERE id = ?`,
		params.Name, params.Description, params.Address, params.Phone, params.Cuisine,
		params.ImageURL, params.IsOpen, params.DeliveryTimeMinutes, now, params.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteRestaurant はIDでレストランとそのメニューを削除する。
// 対象が存在しない場合sql.ErrNoRowsを返す。
func (q *Queries) DeleteRestaurant(ctx context.Context, id string) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM menu_items WHERE restaurant_id = ?`, id); err != nil {
		return err
	}
	result, err := q.db.ExecContext(ctx, `DELETE FROM restaurants WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateMenuItemParams はCreateMenuItemのパラメータ。
type CreateMenuItemParams struct {
	ID           string
	RestaurantID string
	Name         string
	Description  string
	Price        float64
	Category     string
	ImageURL     string
}

// CreateMenuItem は新しいメニュー項目を挿入する。
func (q *Queries) CreateMenuItem(ctx context.Context, params CreateMenuItemParams) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO menu_items (id, restaurant_id, name, description, price, category, image_url, available, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		params.ID, params.RestaurantID, params.Name, params.Description,
		params.Price, params.Category, params.ImageURL, now,
	)
	return err
}

// ListMenuItems はレストランのメニュー項目を取得する。
func (q *Queries) ListMenuItems(ctx context.Context, restaurantID string) ([]MenuItem, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, restaurant_id, name, description, price, category, image_url, available, created_at
		FROM menu_items WHERE restaurant_id = ? ORDER BY category, name`, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(
			&m.ID, &m.RestaurantID, &m.Name, &m.Description,
			&m.Price, &m.Category, &m.ImageURL, &m.Available, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// scanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type scanner interface {
	Scan(dest ...any) error
}

// scanRestaurant は1行をRestaurantへスキャンする。
func scanRestaurant(row scanner) (Restaurant, error) {
	var r Restaurant
	err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.Address, &r.Phone, &r.Cuisine,
		&r.ImageURL, &r.Rating, &r.IsOpen, &r.DeliveryTimeMinutes,
		&r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}
