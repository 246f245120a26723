package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/bookshelf/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Upsert は内部IDをキーにユーザーを冪等にUPSERTする。
// created_atは初回作成時の値を維持し、それ以外の可変項目はすべて上書きする。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (
			id, provider, provider_user_id, username, display_name, avatar_url, email,
			access_token, refresh_token, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
			username      = EXCLUDED.username,
			display_name  = EXCLUDED.display_name,
			avatar_url    = EXCLUDED.avatar_url,
			email         = EXCLUDED.email,
			access_token  = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			updated_at    = EXCLUDED.updated_at`,
		user.ID, user.Provider, user.ProviderUserID, user.Username, user.DisplayName,
		user.AvatarURL, nullString(user.Email), user.AccessToken, nullString(user.RefreshToken),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var email, refreshToken sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, provider, provider_user_id, username, display_name, avatar_url, email,
		        access_token, refresh_token, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(
		&user.ID, &user.Provider, &user.ProviderUserID, &user.Username, &user.DisplayName,
		&user.AvatarURL, &email, &user.AccessToken, &refreshToken,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	user.Email = email.String
	user.RefreshToken = refreshToken.String
	return user, nil
}

// FindCredential は指定IDのユーザーの委任クレデンシャルを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindCredential(ctx context.Context, id string) (*model.Credential, error) {
	cred := &model.Credential{}
	err := r.db.QueryRowContext(ctx,
		`SELECT provider_user_id, access_token FROM users WHERE id = $1`,
		id,
	).Scan(&cred.ProviderUserID, &cred.AccessToken)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	return cred, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するuser_following、booksはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// nullString は空文字列をNULLとして扱う。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
