package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/bookshelf/internal/following"
	"github.com/hitoshi/bookshelf/internal/middleware"
	"github.com/hitoshi/bookshelf/internal/model"
)

// followingSourceHeader は応答元（live / snapshot / empty）を示すレスポンスヘッダー。
const followingSourceHeader = "X-Following-Source"

// FollowingServiceInterface はフォロー一覧ハンドラーが必要とするサービスインターフェース。
type FollowingServiceInterface interface {
	// GetFollowing はフォロー一覧を返す。失敗してもエラーは返さない。
	GetFollowing(ctx context.Context, internalID string) *following.Result
}

// FollowingHandler はフォロー一覧のHTTPハンドラー。
type FollowingHandler struct {
	service FollowingServiceInterface
}

// NewFollowingHandler はFollowingHandlerを生成する。
func NewFollowingHandler(service FollowingServiceInterface) *FollowingHandler {
	return &FollowingHandler{service: service}
}

// List はフォロー一覧をJSON配列で返す。
// 外部APIの失敗やクレデンシャル不在の場合も200と配列（空の場合あり）を返す。
// GET /api/following
func (h *FollowingHandler) List(w http.ResponseWriter, r *http.Request) {
	internalID, err := middleware.InternalIDFromContext(r.Context())
	if err != nil {
		middleware.WriteEmptyListUnauthorized(w, r)
		return
	}

	result := h.service.GetFollowing(r.Context(), internalID)

	profiles := []model.ProfileSummary{}
	source := following.SourceEmpty
	if result != nil {
		source = result.Source
		if result.Profiles != nil {
			profiles = result.Profiles
		}
	}

	w.Header().Set(followingSourceHeader, string(source))
	writeJSON(w, http.StatusOK, profiles)
}

// RateLimited はレート制限超過時の応答。外部APIは呼ばず、200と空配列を返す。
func (h *FollowingHandler) RateLimited(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(followingSourceHeader, string(following.SourceEmpty))
	writeJSON(w, http.StatusOK, []model.ProfileSummary{})
}
