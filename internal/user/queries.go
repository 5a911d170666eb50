package user

import (
	"context"
	"database/sql"
	"time"
)

// User はusersテーブルの1行を表す。
type User struct {
	// ID はユーザーの一意識別子。
	ID string
	// Username はログインに使用するユーザー名（メールアドレス）。
	Username string
	// Email はメールアドレス。
	Email string
	// PasswordHash はbcryptでハッシュ化されたパスワード。
	PasswordHash string
	// Role はロール識別子。
	Role string
	// FullName は表示名。
	FullName string
	// Phone は電話番号。
	Phone string
	// Address は配達先住所。
	Address string
	// CreatedAt は作成日時（RFC3339）。
	CreatedAt string
	// UpdatedAt は更新日時（RFC3339）。
	UpdatedAt string
}

// Queries はuserサービスのクエリ実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// NewQueries は新しいQueriesを生成する。
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// CreateUserParams はCreateUserのパラメータ。
type CreateUserParams struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	FullName     string
	Phone        string
	Address      string
}

// CreateUser は新しいユーザーレコードを挿入する。
func (q *Queries) CreateUser(ctx context.Context, params CreateUserParams) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, full_name, phone, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.ID, params.Username, params.Email, params.PasswordHash,
		params.Role, params.FullName, params.Phone, params.Address, now, now,
	)
	return err
}

// GetUserByUsername はユーザー名でユーザーを取得する。
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, full_name, phone, address, created_at, updated_at
		FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// GetUserByID はIDでユーザーを取得する。
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, role, full_name, phone, address, created_at, updated_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// UpdateProfileParams はUpdateProfileのパラメータ。
type UpdateProfileParams struct {
	Username string
	FullName string
	Phone    string
	Address  string
}

// UpdateProfile はユーザーのプロフィール項目を更新する。
// 対象が存在しない場合sql.ErrNoRowsを返す。
func (q *Queries) UpdateProfile(ctx context.Context, params UpdateProfileParams) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := q.db.ExecContext(ctx, `
		UPDATE users SET full_name = ?, phone = ?, address = ?, updated_at = ?
		WHERE username = ?`,
		params.FullName, params.Phone, params.Address, now, params.Username,
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

// ListUsers は全ユーザーを作成日時順で取得する。
func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, username, email, password_hash, role, full_name, phone, address, created_at, updated_at
		FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser はIDでユーザーを削除する。
// 対象が存在しない場合sql.ErrNoRowsを返す。
func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
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

// scanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type scanner interface {
	Scan(dest ...any) error
}

// scanUser は1行をUserへスキャンする。
func scanUser(row scanner) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.FullName, &u.Phone, &u.Address, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}
