// Package cleanup はフォロー一覧スナップショットの保持期間管理ジョブを提供する。
// 保持日数を超えて更新されていないスナップショットを定期的に削除する。
// スナップショットはAPI障害時の代替応答にのみ使うため、削除しても
// 次回のライブ取得で再作成される。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays はスナップショットの既定の保持日数。
const DefaultRetentionDays = 30

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SnapshotCleanupJob は保持期間を超過したスナップショットの削除ジョブ。
// 削除は冪等で、対象がなくてもエラーにならない。
type SnapshotCleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int
}

// NewSnapshotCleanupJob はSnapshotCleanupJobを生成する。
// retentionDaysが0以下の場合はDefaultRetentionDaysを使う。
func NewSnapshotCleanupJob(db Executor, logger *slog.Logger, retentionDays int) *SnapshotCleanupJob {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &SnapshotCleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Run はupdated_atがRetentionDays日前より古いスナップショットを削除する。
func (j *SnapshotCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	query := `DELETE FROM user_following WHERE updated_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("スナップショットのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("failed to delete expired snapshots: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to read deleted snapshot count: %w", err)
	}

	j.logger.Info("スナップショットのクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return nil
}

// Start は起動直後に1回Runを実行し、以後intervalごとに繰り返す。
// ctxがキャンセルされるまでブロックする。Runの失敗はログに残して継続する。
func (j *SnapshotCleanupJob) Start(ctx context.Context, interval time.Duration) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
