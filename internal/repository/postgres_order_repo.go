package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/ayurshop/internal/model"
)

const orderColumns = `id, user_id, user_name, customer_name, email, phone, address, payment_method, items, total, created_at`

// PostgresOrderRepo はPostgreSQLを使用した注文台帳リポジトリ。
// 明細はJSONB、合計金額はNUMERICで保存する。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// Create は注文を追記し、採番されたIDを返す。
func (r *PostgresOrderRepo) Create(ctx context.Context, order *model.Order) (int64, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return 0, fmt.Errorf("failed to encode order items: %w", err)
	}

	var id int64
	// lib/pqは[]byteをbyteaとして送るため、JSONBへは文字列で渡す
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, user_name, customer_name, email, phone, address, payment_method, items, total, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		order.UserID, order.UserName, order.CustomerName, order.Email, order.Phone,
		order.Address, order.PaymentMethod, string(items), order.Total, order.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order: %w", err)
	}

	return id, nil
}

// List は注文を新しい順に返す。
func (r *PostgresOrderRepo) List(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + orderColumns + ` FROM orders`)

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		sb.WriteString(` WHERE customer_name ILIKE $1 OR email ILIKE $1`)
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var (
			o     model.Order
			items []byte
		)
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.UserName, &o.CustomerName, &o.Email, &o.Phone,
			&o.Address, &o.PaymentMethod, &items, &o.Total, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("failed to decode items of order %d: %w", o.ID, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	return orders, nil
}

// Summary は注文件数、売上合計、注文件数上位の顧客を集計する。
// 件数と上位顧客の整合性を保つため、読み取り専用トランザクション内で実行する。
func (r *PostgresOrderRepo) Summary(ctx context.Context, topN int) (*model.LedgerSummary, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	summary := &model.LedgerSummary{TopCustomers: []model.CustomerOrderCount{}}
	var revenue decimal.Decimal
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total), 0) FROM orders`,
	).Scan(&summary.TotalOrders, &revenue); err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}
	summary.TotalRevenue = revenue

	rows, err := tx.QueryContext(ctx,
		`SELECT user_id, MAX(user_name), COUNT(*) AS order_count
		 FROM orders
		 GROUP BY user_id
		 ORDER BY order_count DESC, user_id ASC
		 LIMIT $1`,
		topN,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query top customers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.CustomerOrderCount
		if err := rows.Scan(&c.UserID, &c.UserName, &c.OrderCount); err != nil {
			return nil, fmt.Errorf("failed to scan top customer: %w", err)
		}
		summary.TopCustomers = append(summary.TopCustomers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top customers: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return summary, nil
}

// DeleteAll は全注文を削除し、削除件数を返す。
func (r *PostgresOrderRepo) DeleteAll(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orders: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
