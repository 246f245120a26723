package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/bookshelf/internal/model"
)

// PostgresFollowingRepo はPostgreSQLを使用したフォロー一覧スナップショットリポジトリ。
// following_dataはJSONB列に順序付き配列として保存する。
type PostgresFollowingRepo struct {
	db *sql.DB
}

// NewPostgresFollowingRepo はPostgresFollowingRepoを生成する。
func NewPostgresFollowingRepo(db *sql.DB) *PostgresFollowingRepo {
	return &PostgresFollowingRepo{db: db}
}

// Upsert はユーザーIDをキーにスナップショットを丸ごと上書きする。
func (r *PostgresFollowingRepo) Upsert(ctx context.Context, snapshot *model.FollowingSnapshot) error {
	following := snapshot.Following
	if following == nil {
		following = []model.ProfileSummary{}
	}
	data, err := json.Marshal(following)
	if err != nil {
		return fmt.Errorf("failed to encode following data: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO user_following (user_id, following_data, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
			following_data = EXCLUDED.following_data,
			updated_at     = EXCLUDED.updated_at`,
		snapshot.UserID, data, snapshot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert following snapshot: %w", err)
	}
	return nil
}

// FindByUserID は指定ユーザーのスナップショットを取得する。見つからない場合はnilを返す。
func (r *PostgresFollowingRepo) FindByUserID(ctx context.Context, userID string) (*model.FollowingSnapshot, error) {
	snapshot := &model.FollowingSnapshot{}
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, following_data, updated_at FROM user_following WHERE user_id = $1`,
		userID,
	).Scan(&snapshot.UserID, &data, &snapshot.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find following snapshot: %w", err)
	}

	if err := json.Unmarshal(data, &snapshot.Following); err != nil {
		return nil, fmt.Errorf("failed to decode following data: %w", err)
	}

	return snapshot, nil
}

// compile-time interface check
var _ FollowingSnapshotRepository = (*PostgresFollowingRepo)(nil)
