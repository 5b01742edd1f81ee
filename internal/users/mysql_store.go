package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AvertonDias/lista-limpeza-facil/internal/database"
)

// ==================== 错误定义 ====================

var (
	// ErrNotFound 用户不存在错误
	ErrNotFound = errors.New("user record not found")
)

// ==================== 数据结构 ====================

// User 用户账户记录
// 档案由认证服务创建,本服务只读取;token 集合不在这张表里
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at,omitempty"`
}

// MySQLStore 基于 MySQL 的用户账户存储
type MySQLStore struct {
	db *database.MySQLDB
}

// NewMySQLStore 创建用户账户存储实例
func NewMySQLStore(db *database.MySQLDB) *MySQLStore {
	return &MySQLStore{db: db}
}

// ==================== 核心方法 ====================

// Exists 判断用户记录是否存在
// 实现 push.UserResolver,供注册表与分发器做 UserNotFound 判定
func (store *MySQLStore) Exists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := store.db.QueryRowContext(ctx,
		"SELECT 1 FROM users WHERE id = ? LIMIT 1", userID,
	).Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user existence: %w", err)
	}

	return true, nil
}

// Get 按 ID 读取用户记录
func (store *MySQLStore) Get(ctx context.Context, userID string) (*User, error) {
	var user User
	var email, displayName sql.NullString

	err := store.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, created_at, updated_at FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &email, &displayName, &user.CreatedAt, &user.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	user.Email = email.String
	user.DisplayName = displayName.String
	return &user, nil
}

// Create 创建用户记录
// 幂等:主键冲突时更新档案字段而不是报错(认证服务可能重复回调)
func (store *MySQLStore) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		return errors.New("user id is required")
	}

	now := time.Now().Unix()
	_, err := store.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			email = VALUES(email),
			display_name = VALUES(display_name),
			updated_at = VALUES(updated_at)`,
		user.ID, user.Email, user.DisplayName, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}
