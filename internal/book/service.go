// Package book は本棚（読書リスト）のドメインロジックを提供する。
package book

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
)

const (
	maxTitleLength  = 500
	maxAuthorLength = 300
)

// Service は本棚のサービス層。
// すべての操作はセッションのユーザーIDを所有者として扱う。
type Service struct {
	bookRepo repository.BookRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(bookRepo repository.BookRepository) *Service {
	return &Service{
		bookRepo: bookRepo,
		now:      time.Now,
	}
}

// List はユーザーの本一覧を新しい順に返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Book, error) {
	books, err := s.bookRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("本一覧の取得に失敗しました: %w", err)
	}
	if books == nil {
		books = []*model.Book{}
	}
	return books, nil
}

// Add は本を追加する。タイトルと著者は必須で、読書状態の省略時はreadingとする。
func (s *Service) Add(ctx context.Context, userID, title, author, status string) (*model.Book, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)

	if title == "" || author == "" {
		return nil, model.NewInvalidBookError("タイトルと著者は必須です")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, model.NewInvalidBookError("タイトルが長すぎます")
	}
	if utf8.RuneCountInString(author) > maxAuthorLength {
		return nil, model.NewInvalidBookError("著者名が長すぎます")
	}

	bookStatus := model.BookStatusReading
	if status != "" {
		bookStatus = model.BookStatus(status)
		if !bookStatus.Valid() {
			return nil, model.NewInvalidBookStatusError(status)
		}
	}

	now := s.now().UTC()
	book := &model.Book{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		Author:    author,
		Status:    bookStatus,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("本の追加に失敗しました: %w", err)
	}

	return book, nil
}

// ChangeStatus は本の読書状態を変更する。
// 存在しない本や他ユーザーの本はBOOK_NOT_FOUNDとして扱う。
func (s *Service) ChangeStatus(ctx context.Context, userID, bookID, status string) (*model.Book, error) {
	bookStatus := model.BookStatus(status)
	if !bookStatus.Valid() {
		return nil, model.NewInvalidBookStatusError(status)
	}
	if _, err := uuid.Parse(bookID); err != nil {
		return nil, model.NewBookNotFoundError(bookID)
	}

	book, err := s.bookRepo.UpdateStatus(ctx, userID, bookID, bookStatus)
	if err != nil {
		return nil, fmt.Errorf("読書状態の更新に失敗しました: %w", err)
	}
	if book == nil {
		return nil, model.NewBookNotFoundError(bookID)
	}

	return book, nil
}

// Remove は本を削除する。
func (s *Service) Remove(ctx context.Context, userID, bookID string) error {
	if _, err := uuid.Parse(bookID); err != nil {
		return model.NewBookNotFoundError(bookID)
	}

	deleted, err := s.bookRepo.Delete(ctx, userID, bookID)
	if err != nil {
		return fmt.Errorf("本の削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewBookNotFoundError(bookID)
	}

	return nil
}
