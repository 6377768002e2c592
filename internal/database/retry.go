package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// initialBackoff は接続リトライの初回遅延。
	initialBackoff = 500 * time.Millisecond
	// maxBackoff は接続リトライの最大遅延。
	maxBackoff = 8 * time.Second
)

// CalculateBackoff は失敗回数に基づいて指数バックオフ遅延を計算する。
// 初回500ms、2倍ずつ増加、最大8秒。
func CalculateBackoff(failures int) time.Duration {
	delay := initialBackoff
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// WaitFor は疎通確認pingが成功するまで指数バックオフで最大attempts回試行する。
// コンテナ起動直後にPostgreSQLやRedisの準備が整う前に接続するケースを吸収する。
// attemptsが1未満の場合は1回だけ試行する。
func WaitFor(ctx context.Context, name string, attempts int, ping func(ctx context.Context) error) error {
	return waitFor(ctx, name, attempts, ping, CalculateBackoff)
}

func waitFor(ctx context.Context, name string, attempts int, ping func(ctx context.Context) error, backoff func(int) time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}

		delay := backoff(i)
		slog.Warn("dependency not ready, retrying",
			slog.String("dependency", name),
			slog.Int("attempt", i+1),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("gave up waiting for %s: %w", name, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed to connect to %s after %d attempts: %w", name, attempts, err)
}
