// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/bookshelf/internal/model"
)

// UserRepository はユーザー記録と委任クレデンシャルの永続化インターフェース。
type UserRepository interface {
	// Upsert は内部IDをキーにユーザーを冪等にUPSERTする。
	// 既存レコードがある場合はプロフィール項目・両トークン・updated_atを上書きし、重複行は作らない。
	Upsert(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindCredential は指定IDのユーザーの委任クレデンシャルを取得する。
	// 見つからない場合はnilを返す。
	FindCredential(ctx context.Context, id string) (*model.Credential, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するuser_following、booksはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// FollowingSnapshotRepository はフォロー一覧スナップショットの永続化インターフェース。
type FollowingSnapshotRepository interface {
	// Upsert はユーザーIDをキーにスナップショットを丸ごと上書きする。
	Upsert(ctx context.Context, snapshot *model.FollowingSnapshot) error

	// FindByUserID は指定ユーザーのスナップショットを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.FollowingSnapshot, error)
}

// BookRepository は本棚データの永続化インターフェース。
// すべての操作は所有者のユーザーIDで絞り込む。
type BookRepository interface {
	// ListByUserID はユーザーの本一覧をcreated_at降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Book, error)

	// Create は本を作成する。
	Create(ctx context.Context, book *model.Book) error

	// UpdateStatus は本の読書状態を更新する。
	// 対象が存在しないか所有者が異なる場合はnilを返す。
	UpdateStatus(ctx context.Context, userID, bookID string, status model.BookStatus) (*model.Book, error)

	// Delete は本を削除する。削除した行があった場合にtrueを返す。
	Delete(ctx context.Context, userID, bookID string) (bool, error)
}
