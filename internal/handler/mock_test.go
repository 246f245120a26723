package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/bookshelf/internal/auth"
	"github.com/hitoshi/bookshelf/internal/book"
	"github.com/hitoshi/bookshelf/internal/following"
	"github.com/hitoshi/bookshelf/internal/middleware"
	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/user"
)

const testSessionSecret = "0123456789abcdef0123456789abcdef"

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state, verifier string) string
	handleCallbackFn func(ctx context.Context, code, verifier string) (*model.Session, error)
	currentUserFn    func(ctx context.Context, claims auth.SessionClaims) (*auth.CurrentUser, error)
	logoutFn         func(ctx context.Context, claims auth.SessionClaims)
}

func (m *mockAuthService) GetLoginURL(state, verifier string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state, verifier)
	}
	return "https://twitter.com/i/oauth2/authorize?state=" + state
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code, verifier string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code, verifier)
	}
	return nil, nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, claims auth.SessionClaims) (*auth.CurrentUser, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, claims)
	}
	return &auth.CurrentUser{InternalID: claims.InternalID, ProviderUserID: claims.ProviderID}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, claims auth.SessionClaims) {
	if m.logoutFn != nil {
		m.logoutFn(ctx, claims)
	}
}

type mockFollowingService struct {
	getFollowingFn func(ctx context.Context, internalID string) *following.Result
}

func (m *mockFollowingService) GetFollowing(ctx context.Context, internalID string) *following.Result {
	if m.getFollowingFn != nil {
		return m.getFollowingFn(ctx, internalID)
	}
	return &following.Result{Profiles: []model.ProfileSummary{}, Source: following.SourceEmpty}
}

type mockBookService struct {
	listFn         func(ctx context.Context, userID string) ([]*model.Book, error)
	addFn          func(ctx context.Context, userID, title, author, status string) (*model.Book, error)
	changeStatusFn func(ctx context.Context, userID, bookID, status string) (*model.Book, error)
	removeFn       func(ctx context.Context, userID, bookID string) error
}

func (m *mockBookService) List(ctx context.Context, userID string) ([]*model.Book, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return []*model.Book{}, nil
}

func (m *mockBookService) Add(ctx context.Context, userID, title, author, status string) (*model.Book, error) {
	if m.addFn != nil {
		return m.addFn(ctx, userID, title, author, status)
	}
	return &model.Book{ID: "b-1", UserID: userID, Title: title, Author: author, Status: model.BookStatusReading}, nil
}

func (m *mockBookService) ChangeStatus(ctx context.Context, userID, bookID, status string) (*model.Book, error) {
	if m.changeStatusFn != nil {
		return m.changeStatusFn(ctx, userID, bookID, status)
	}
	return &model.Book{ID: bookID, UserID: userID, Status: model.BookStatus(status)}, nil
}

func (m *mockBookService) Remove(ctx context.Context, userID, bookID string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, userID, bookID)
	}
	return nil
}

type mockUserService struct {
	withdrawFn func(ctx context.Context, internalID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, internalID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, internalID)
	}
	return nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// compile-time interface check
var (
	_ AuthServiceInterface      = (*mockAuthService)(nil)
	_ AuthServiceInterface      = (*auth.Service)(nil)
	_ FollowingServiceInterface = (*mockFollowingService)(nil)
	_ FollowingServiceInterface = (*following.Service)(nil)
	_ BookServiceInterface      = (*mockBookService)(nil)
	_ BookServiceInterface      = (*book.Service)(nil)
	_ UserServiceInterface      = (*mockUserService)(nil)
	_ UserServiceInterface      = (*user.Service)(nil)
	_ HealthChecker             = (*mockHealthChecker)(nil)
)

// --- ヘルパー ---

// withSession はテスト用にセッション情報をコンテキストに注入する。
func withSession(r *http.Request, internalID, providerID string) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), internalID, providerID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func newTestIssuer() *auth.TokenIssuer {
	return auth.NewTokenIssuer(testSessionSecret, time.Hour)
}

func issueTestToken(t *testing.T, issuer *auth.TokenIssuer, internalID, providerID string) string {
	t.Helper()
	session, err := issuer.Issue(auth.SessionClaims{InternalID: internalID, ProviderID: providerID})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return session.Token
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}
