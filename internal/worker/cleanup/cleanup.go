// Package cleanup はログイン監査ログの自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過したlogin_logの行を定期的に削除する。
// 注文台帳は削除対象にしない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ayurshop/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は保持期間を超過したログイン監査ログの自動削除ジョブ。
// 削除処理は冪等で、対象がなくてもエラーにならない。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	metrics       metrics.MetricsCollector
	RetentionDays int // 監査ログの保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// metricsCollectorがnilの場合は記録しない。
func NewCleanupJob(db Executor, logger *slog.Logger, metricsCollector metrics.MetricsCollector) *CleanupJob {
	if metricsCollector == nil {
		metricsCollector = metrics.NopCollector{}
	}
	return &CleanupJob{
		db:            db,
		logger:        logger,
		metrics:       metricsCollector,
		RetentionDays: 90,
	}
}

// Run はlogin_timeがRetentionDays日前より古い監査ログを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM login_log WHERE login_time < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("ログイン監査ログのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("ログイン監査ログのクリーンアップに失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.metrics.RecordLoginLogsPurged(deletedCount)

	duration := time.Since(start)
	j.logger.Info("ログイン監査ログのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回実行し、以降はinterval間隔で実行する。
// コンテキストがキャンセルされるまで実行を継続する。
// 1回の実行失敗はログに記録し、次の周期で再試行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
