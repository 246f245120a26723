// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bookshelf/internal/auth"
	"github.com/hitoshi/bookshelf/internal/middleware"
	"github.com/hitoshi/bookshelf/internal/model"
	"golang.org/x/oauth2"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthVerifierCookie = "oauth_verifier"
	oauthCookieMaxAge   = 600 // 10分
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state, verifier string) string
	HandleCallback(ctx context.Context, code, verifier string) (*model.Session, error)
	CurrentUser(ctx context.Context, claims auth.SessionClaims) (*auth.CurrentUser, error)
	Logout(ctx context.Context, claims auth.SessionClaims)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string
	Cookie  middleware.CookieConfig
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	verifier middleware.SessionVerifier
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
// verifierはログアウト時にセッションの持ち主を特定するために使う。
func NewAuthHandler(service AuthServiceInterface, verifier middleware.SessionVerifier, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		verifier: verifier,
		config:   config,
	}
}

// Login はX（Twitter）のOAuth 2.0 PKCEフローを開始する。
// GET /auth/twitter/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	verifier := oauth2.GenerateVerifier()

	// stateとPKCE verifierをCookieに保存（CSRF対策）
	h.setOAuthCookie(w, oauthStateCookie, state, oauthCookieMaxAge)
	h.setOAuthCookie(w, oauthVerifierCookie, verifier, oauthCookieMaxAge)

	http.Redirect(w, r, h.service.GetLoginURL(state, verifier), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/twitter/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. stateの検証（CSRF対策）
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("stateが一致しません"))
		return
	}
	verifierCookie, err := r.Cookie(oauthVerifierCookie)
	if err != nil || verifierCookie.Value == "" {
		slog.Warn("oauth verifier cookie missing")
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("認可リクエストの有効期限が切れています"))
		return
	}

	// 一度きりの値なのでここで削除する
	h.setOAuthCookie(w, oauthStateCookie, "", -1)
	h.setOAuthCookie(w, oauthVerifierCookie, "", -1)

	// 2. 認可コードの取得
	code := query.Get("code")
	if code == "" {
		if reason := query.Get("error"); reason != "" {
			slog.Info("oauth authorization denied", slog.String("reason", reason))
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("認可コードがありません"))
		return
	}

	// 3. ID照合とセッショントークン発行
	session, err := h.service.HandleCallback(r.Context(), code, verifierCookie.Value)
	if err != nil {
		if errors.Is(err, model.ErrIdentityUnresolved) {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewIdentityUnresolvedError())
			return
		}
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// 4. セッションCookieを設定してフロントエンドにリダイレクト
	middleware.SetSessionCookie(w, session, h.config.Cookie)
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションCookieを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" && h.verifier != nil {
		// 期限切れや改ざんされたトークンでもCookieは削除する
		if claims, err := h.verifier.Verify(cookie.Value); err == nil {
			h.service.Logout(r.Context(), *claims)
		}
	}

	middleware.ClearSessionCookie(w, h.config.Cookie)
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me（セッションミドルウェアの内側に配置する）
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w, r)
		return
	}

	user, err := h.service.CurrentUser(r.Context(), claims)
	if err != nil {
		handleServiceError(w, toAPIError(err))
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setOAuthCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.Cookie.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// toAPIError は未認証の内部エラーをユーザー向けのAPIErrorに置き換える。
func toAPIError(err error) error {
	if errors.Is(err, model.ErrUnauthorized) {
		return model.NewUnauthorizedError()
	}
	return err
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
