// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/ayurshop/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成し、採番されたIDを返す。
	// メールアドレスが重複している場合はmodel.ErrCodeDuplicateEmailのAPIErrorを返す。
	Create(ctx context.Context, user *model.User) (int64, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// LoginLogRepository はログイン監査ログの永続化インターフェース。
type LoginLogRepository interface {
	// Create はログインイベントを1件追記する。
	Create(ctx context.Context, event *model.LoginEvent) error
}

// OrderFilter は注文一覧の絞り込み条件。
type OrderFilter struct {
	// Query は顧客名またはメールアドレスの部分一致検索語（大文字小文字を区別しない）。空なら全件。
	Query string
	// Limit は最大取得件数。0以下なら無制限。
	Limit int
}

// OrderRepository は注文台帳の永続化インターフェース。
// 注文は追記のみで、個別の更新・削除は提供しない。
type OrderRepository interface {
	// Create は注文を追記し、採番されたIDを返す。
	Create(ctx context.Context, order *model.Order) (int64, error)

	// List は注文を新しい順に返す。
	List(ctx context.Context, filter OrderFilter) ([]model.Order, error)

	// Summary は注文件数、売上合計、注文件数上位の顧客を集計する。
	Summary(ctx context.Context, topN int) (*model.LedgerSummary, error)

	// DeleteAll は全注文を削除し、削除件数を返す。
	DeleteAll(ctx context.Context) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
