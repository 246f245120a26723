package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/bookshelf/internal/model"
)

// BookServiceInterface は本棚ハンドラーが必要とするサービスインターフェース。
type BookServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Book, error)
	Add(ctx context.Context, userID, title, author, status string) (*model.Book, error)
	ChangeStatus(ctx context.Context, userID, bookID, status string) (*model.Book, error)
	Remove(ctx context.Context, userID, bookID string) error
}

// BookHandler は本棚のHTTPハンドラー。
type BookHandler struct {
	service BookServiceInterface
}

// NewBookHandler はBookHandlerを生成する。
func NewBookHandler(service BookServiceInterface) *BookHandler {
	return &BookHandler{service: service}
}

// addBookRequest は本の登録リクエストのボディ。
type addBookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Status string `json:"status"`
}

// changeStatusRequest は読書状態の更新リクエストのボディ。
type changeStatusRequest struct {
	Status string `json:"status"`
}

// bookResponse は本のAPIレスポンス。
type bookResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// List は本棚の本をcreated_at降順で返す。
// GET /api/books
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireInternalID(w, r)
	if !ok {
		return
	}

	books, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]bookResponse, 0, len(books))
	for _, b := range books {
		resp = append(resp, toBookResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Add は本を登録する。
// POST /api/books
func (h *BookHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireInternalID(w, r)
	if !ok {
		return
	}

	var req addBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	book, err := h.service.Add(r.Context(), userID, req.Title, req.Author, req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookResponse(book))
}

// ChangeStatus は本の読書状態を更新する。
// PATCH /api/books/{id}
func (h *BookHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireInternalID(w, r)
	if !ok {
		return
	}

	var req changeStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	book, err := h.service.ChangeStatus(r.Context(), userID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBookResponse(book))
}

// Remove は本を削除する。
// DELETE /api/books/{id}
func (h *BookHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireInternalID(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toBookResponse(b *model.Book) bookResponse {
	return bookResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		Title:     b.Title,
		Author:    b.Author,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}
