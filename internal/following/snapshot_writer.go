package following

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
)

const defaultWriteTimeout = 5 * time.Second

// SnapshotRecorder はスナップショット書き込みの成否を記録するインターフェース。
type SnapshotRecorder interface {
	RecordSnapshotWrite(success bool)
}

// SnapshotWriter はフォロー一覧スナップショットをバックグラウンドで保存する。
// 呼び出し元のレスポンスは書き込みの完了を待たない。
type SnapshotWriter struct {
	repo     repository.FollowingSnapshotRepository
	logger   *slog.Logger
	recorder SnapshotRecorder
	timeout  time.Duration
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewSnapshotWriter はSnapshotWriterを生成する。recorderはnilでもよい。
func NewSnapshotWriter(
	repo repository.FollowingSnapshotRepository,
	logger *slog.Logger,
	recorder SnapshotRecorder,
	timeout time.Duration,
) *SnapshotWriter {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &SnapshotWriter{
		repo:     repo,
		logger:   logger,
		recorder: recorder,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Save はスナップショットの上書き保存を開始してすぐに返る。
// 書き込みはリクエストのコンテキストから切り離され、独自のタイムアウトで実行される。
// 失敗はログに残すだけで呼び出し元には伝えない。
func (w *SnapshotWriter) Save(internalID string, profiles []model.ProfileSummary) {
	snapshot := &model.FollowingSnapshot{
		UserID:    internalID,
		Following: append([]model.ProfileSummary(nil), profiles...),
		UpdatedAt: w.now().UTC(),
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		err := w.repo.Upsert(ctx, snapshot)
		if w.recorder != nil {
			w.recorder.RecordSnapshotWrite(err == nil)
		}
		if err != nil {
			w.logger.Error("フォロー一覧スナップショットの保存に失敗しました",
				slog.String("internal_id", internalID),
				slog.String("operation", "snapshot_write"),
				slog.String("error", err.Error()),
			)
			return
		}
		w.logger.Debug("フォロー一覧スナップショットを保存しました",
			slog.String("internal_id", internalID),
			slog.Int("count", len(snapshot.Following)),
		)
	}()
}

// Wait は実行中の書き込みがすべて終わるまで待つ。
func (w *SnapshotWriter) Wait() {
	w.wg.Wait()
}
