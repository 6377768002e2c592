// Package ledger は確定済み注文の台帳（追記、一覧、集計、一括削除）を提供する。
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ayurshop/internal/metrics"
	"github.com/hitoshi/ayurshop/internal/model"
	"github.com/hitoshi/ayurshop/internal/repository"
)

// TopCustomerLimit はダッシュボードに表示する上位顧客数。
const TopCustomerLimit = 5

// ListFilter は注文一覧の絞り込み条件。
type ListFilter struct {
	Query string // 顧客名またはメールアドレスの部分一致（大文字小文字を区別しない）
	Limit int    // 0以下なら無制限
}

// Service は注文台帳のビジネスロジックを提供する。
type Service struct {
	repo    repository.OrderRepository
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(repo repository.OrderRepository, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		repo:    repo,
		metrics: collector,
		now:     time.Now,
	}
}

// Append は注文を台帳に追記し、採番されたIDを返す。
// 明細が空の注文、および合計が明細の価格合計と一致しない注文は受け付けない。
func (s *Service) Append(ctx context.Context, order *model.Order) (int64, error) {
	if len(order.Items) == 0 {
		return 0, model.NewCartEmptyError()
	}
	if sum := model.SumLineItems(order.Items); !order.Total.Equal(sum) {
		return 0, fmt.Errorf("order total %s does not match line items sum %s", order.Total, sum)
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}

	id, err := s.repo.Create(ctx, order)
	if err != nil {
		return 0, fmt.Errorf("failed to append order: %w", err)
	}
	order.ID = id

	slog.Info("order placed",
		slog.Int64("order_id", id),
		slog.Int64("user_id", order.UserID),
		slog.Int("items", len(order.Items)),
		slog.String("total", order.Total.StringFixed(2)),
	)
	return id, nil
}

// List は注文を新しい順に返す。
func (s *Service) List(ctx context.Context, filter ListFilter) ([]model.Order, error) {
	orders, err := s.repo.List(ctx, repository.OrderFilter{
		Query: filter.Query,
		Limit: filter.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Aggregate は注文件数、売上合計、注文件数上位の顧客を返す。
func (s *Service) Aggregate(ctx context.Context) (*model.LedgerSummary, error) {
	summary, err := s.repo.Summary(ctx, TopCustomerLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate orders: %w", err)
	}
	return summary, nil
}

// ClearAll は全注文を削除し、削除件数を返す。取り消しはできない。
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear orders: %w", err)
	}

	s.metrics.RecordOrdersCleared(n)
	slog.Warn("orders cleared", slog.Int64("deleted", n))
	return n, nil
}
