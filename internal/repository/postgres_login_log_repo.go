package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/ayurshop/internal/model"
)

// PostgresLoginLogRepo はPostgreSQLを使用したログイン監査ログリポジトリ。
type PostgresLoginLogRepo struct {
	db *sql.DB
}

// NewPostgresLoginLogRepo はPostgresLoginLogRepoを生成する。
func NewPostgresLoginLogRepo(db *sql.DB) *PostgresLoginLogRepo {
	return &PostgresLoginLogRepo{db: db}
}

// Create はログインイベントを1件追記する。
func (r *PostgresLoginLogRepo) Create(ctx context.Context, event *model.LoginEvent) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO login_log (user_id, user_name, email, login_time)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		event.UserID, event.UserName, event.Email, event.LoginTime,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert login event: %w", err)
	}
	return nil
}

// compile-time interface check
var _ LoginLogRepository = (*PostgresLoginLogRepo)(nil)
