// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/bookshelf/internal/auth"
	"github.com/hitoshi/bookshelf/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session_token"

type contextKey string

const (
	internalIDContextKey contextKey = "internal_id"
	providerIDContextKey contextKey = "provider_id"
	requestIdentityKey   contextKey = "request_identity"
)

// SessionVerifier はセッショントークンの検証と再発行のインターフェース。
// auth.TokenIssuerが実装する。
type SessionVerifier interface {
	Verify(token string) (*auth.SessionClaims, error)
	Refresh(claims auth.SessionClaims) (*model.Session, error)
}

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge time.Duration
}

// SessionConfig はセッションミドルウェアの設定。
type SessionConfig struct {
	Cookie CookieConfig

	// Unauthorized は有効なセッションがない場合のレスポンスを書き込む。
	// nilの場合はWriteUnauthorizedを使う。
	Unauthorized http.HandlerFunc
}

// WithUnauthorized は未認証時のレスポンスだけを差し替えた設定を返す。
func (c SessionConfig) WithUnauthorized(h http.HandlerFunc) SessionConfig {
	c.Unauthorized = h
	return c
}

// NewSessionMiddleware はセッショントークンを検証し、内部IDとプロバイダーIDを
// コンテキストに注入するミドルウェアを返す。
// 検証に成功したリクエストでは同じクレームでトークンを再発行し、Cookieを更新する。
func NewSessionMiddleware(verifier SessionVerifier, config SessionConfig) func(next http.Handler) http.Handler {
	unauthorized := config.Unauthorized
	if unauthorized == nil {
		unauthorized = WriteUnauthorized
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w, r)
				return
			}

			claims, err := verifier.Verify(cookie.Value)
			if err != nil {
				slog.Debug("セッショントークンの検証に失敗しました",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				ClearSessionCookie(w, config.Cookie)
				unauthorized(w, r)
				return
			}

			// 有効期限をスライドさせる。失敗しても元のトークンで処理を続ける。
			refreshed, err := verifier.Refresh(*claims)
			if err != nil {
				slog.Warn("セッショントークンの再発行に失敗しました",
					slog.String("internal_id", claims.InternalID),
					slog.String("error", err.Error()),
				)
			} else {
				SetSessionCookie(w, refreshed, config.Cookie)
			}

			if holder, ok := r.Context().Value(requestIdentityKey).(*requestIdentity); ok {
				holder.internalID = claims.InternalID
			}

			ctx := ContextWithSession(r.Context(), claims.InternalID, claims.ProviderID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetSessionCookie はセッショントークンをHttpOnly Cookieに設定する。
func SetSessionCookie(w http.ResponseWriter, session *model.Session, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  session.ExpiresAt,
		MaxAge:   int(config.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ContextWithSession は内部IDとプロバイダーIDをコンテキストに設定する。
func ContextWithSession(ctx context.Context, internalID, providerID string) context.Context {
	ctx = context.WithValue(ctx, internalIDContextKey, internalID)
	return context.WithValue(ctx, providerIDContextKey, providerID)
}

// InternalIDFromContext はコンテキストから内部IDを取得する。
func InternalIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(internalIDContextKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("internal id not found in context: %w", model.ErrUnauthorized)
	}
	return id, nil
}

// ProviderIDFromContext はコンテキストからプロバイダーIDを取得する。
func ProviderIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(providerIDContextKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("provider id not found in context: %w", model.ErrUnauthorized)
	}
	return id, nil
}

// ClaimsFromContext はコンテキストからセッションクレームを復元する。
func ClaimsFromContext(ctx context.Context) (auth.SessionClaims, error) {
	internalID, err := InternalIDFromContext(ctx)
	if err != nil {
		return auth.SessionClaims{}, err
	}
	providerID, err := ProviderIDFromContext(ctx)
	if err != nil {
		return auth.SessionClaims{}, err
	}
	return auth.SessionClaims{InternalID: internalID, ProviderID: providerID}, nil
}

// requestIdentity はリクエストログに内部IDを載せるための入れ物。
// ロギングミドルウェアが用意し、セッションミドルウェアが埋める。
type requestIdentity struct {
	internalID string
}

func withRequestIdentity(ctx context.Context) (context.Context, *requestIdentity) {
	holder := &requestIdentity{}
	return context.WithValue(ctx, requestIdentityKey, holder), holder
}
