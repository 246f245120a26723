package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/bookshelf/internal/model"
)

// PostgresBookRepo はPostgreSQLを使用した本棚リポジトリ。
type PostgresBookRepo struct {
	db *sql.DB
}

// NewPostgresBookRepo はPostgresBookRepoを生成する。
func NewPostgresBookRepo(db *sql.DB) *PostgresBookRepo {
	return &PostgresBookRepo{db: db}
}

// ListByUserID はユーザーの本一覧をcreated_at降順で返す。
func (r *PostgresBookRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Book, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, author, status, created_at, updated_at
		 FROM books
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	defer rows.Close()

	books := []*model.Book{}
	for rows.Next() {
		book := &model.Book{}
		if err := rows.Scan(
			&book.ID, &book.UserID, &book.Title, &book.Author, &book.Status,
			&book.CreatedAt, &book.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate books: %w", err)
	}

	return books, nil
}

// Create は本を作成する。
func (r *PostgresBookRepo) Create(ctx context.Context, book *model.Book) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO books (id, user_id, title, author, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		book.ID, book.UserID, book.Title, book.Author, string(book.Status),
		book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// UpdateStatus は本の読書状態を更新する。
// 対象が存在しないか所有者が異なる場合はnilを返す。
func (r *PostgresBookRepo) UpdateStatus(ctx context.Context, userID, bookID string, status model.BookStatus) (*model.Book, error) {
	book := &model.Book{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE books SET status = $1, updated_at = $2
		 WHERE id = $3 AND user_id = $4
		 RETURNING id, user_id, title, author, status, created_at, updated_at`,
		string(status), time.Now().UTC(), bookID, userID,
	).Scan(
		&book.ID, &book.UserID, &book.Title, &book.Author, &book.Status,
		&book.CreatedAt, &book.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update book status: %w", err)
	}

	return book, nil
}

// Delete は本を削除する。削除した行があった場合にtrueを返す。
func (r *PostgresBookRepo) Delete(ctx context.Context, userID, bookID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM books WHERE id = $1 AND user_id = $2`,
		bookID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete book: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ BookRepository = (*PostgresBookRepo)(nil)
