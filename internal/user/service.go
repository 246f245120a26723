// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/bookshelf/internal/model"
)

// UserStore は退会処理に必要なユーザー記録の操作。
// repository.UserRepositoryが満たす。
type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	DeleteByID(ctx context.Context, id string) error
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo UserStore
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo UserStore) *Service {
	return &Service{userRepo: userRepo}
}

// Withdraw はユーザーの退会処理を実行する。
// ユーザー記録を削除すると、保存済みトークン・フォロー一覧スナップショット・本棚はCASCADE削除される。
// セッショントークンはステートレスなため、Cookieの削除はハンドラーが行う。
func (s *Service) Withdraw(ctx context.Context, internalID string) error {
	user, err := s.userRepo.FindByID(ctx, internalID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("internal_id", internalID),
	)

	if err := s.userRepo.DeleteByID(ctx, internalID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("internal_id", internalID),
	)

	return nil
}
