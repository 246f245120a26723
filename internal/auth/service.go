// Package auth はOAuth認証フロー、ID照合、セッショントークン発行を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/bookshelf/internal/identity"
	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
)

// サインイン結果のメトリクスラベル
const (
	SignInSuccess            = "success"
	SignInIdentityUnresolved = "identity_unresolved"
	SignInExchangeFailed     = "exchange_failed"
	SignInTokenFailed        = "token_failed"
)

const defaultStoreTimeout = 5 * time.Second

// SignInRecorder はサインイン結果を記録するインターフェース。
type SignInRecorder interface {
	RecordSignIn(result string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// StoreTimeout はユーザー記録のUPSERTに許す最大時間。
	StoreTimeout time.Duration
}

// CurrentUser はセッションの現在ユーザーを表す。
// ユーザー記録が見つからない場合はクレームの値だけを持つ。
type CurrentUser struct {
	InternalID     string `json:"internal_id"`
	ProviderUserID string `json:"provider_id"`
	Username       string `json:"username,omitempty"`
	DisplayName    string `json:"display_name,omitempty"`
	AvatarURL      string `json:"avatar_url,omitempty"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth    OAuthProvider
	userRepo repository.UserRepository
	tokens   *TokenIssuer
	recorder SignInRecorder
	config   ServiceConfig
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	tokens *TokenIssuer,
	recorder SignInRecorder,
	config ServiceConfig,
) *Service {
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = defaultStoreTimeout
	}
	return &Service{
		oauth:    oauth,
		userRepo: userRepo,
		tokens:   tokens,
		recorder: recorder,
		config:   config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state, verifier string) string {
	return s.oauth.GetLoginURL(state, verifier)
}

// HandleCallback はOAuthコールバックを処理し、セッショントークンを発行する。
// 内部IDを導出できない場合はユーザー記録を書かずにmodel.ErrIdentityUnresolvedを返す。
// ユーザー記録のUPSERT失敗はログに残すだけでサインインは継続する。
func (s *Service) HandleCallback(ctx context.Context, code, verifier string) (*model.Session, error) {
	// 1. 認可コードをトークンに交換し、サインイン結果を取得
	ev, err := s.oauth.ExchangeCode(ctx, code, verifier)
	if err != nil {
		s.record(SignInExchangeFailed)
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// 2. 内部IDの導出
	if err := ev.Validate(); err != nil {
		s.record(SignInIdentityUnresolved)
		slog.Warn("sign-in aborted: identity unresolved",
			slog.String("provider", s.oauth.Name()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	internalID, err := identity.DeriveInternalID(ev.Provider, ev.ProviderUserID)
	if err != nil {
		s.record(SignInIdentityUnresolved)
		slog.Warn("sign-in aborted: identity unresolved",
			slog.String("provider", ev.Provider),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	// 3. ユーザー記録とトークンのUPSERT
	s.upsertUser(ctx, internalID, ev)

	// 4. セッショントークンを発行
	session, err := s.tokens.Issue(ClaimsFromSignIn(internalID, ev))
	if err != nil {
		s.record(SignInTokenFailed)
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	s.record(SignInSuccess)
	slog.Info("user signed in",
		slog.String("internal_id", internalID),
		slog.String("provider", ev.Provider),
	)
	return session, nil
}

// upsertUser はユーザー記録を冪等に書き込む。失敗はログに残すだけ。
// プロバイダー名とIDは内部IDの導出と同じ正規化をしてから保存する。
func (s *Service) upsertUser(ctx context.Context, internalID string, ev *SignInEvent) {
	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	now := time.Now().UTC()
	user := &model.User{
		ID:             internalID,
		Provider:       strings.ToLower(strings.TrimSpace(ev.Provider)),
		ProviderUserID: strings.TrimSpace(ev.ProviderUserID),
		Username:       ev.Username,
		DisplayName:    ev.DisplayName,
		AvatarURL:      ev.AvatarURL,
		Email:          ev.Email,
		AccessToken:    ev.AccessToken,
		RefreshToken:   ev.RefreshToken,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.userRepo.Upsert(storeCtx, user); err != nil {
		slog.Error("failed to upsert user record",
			slog.String("internal_id", internalID),
			slog.String("operation", "user_upsert"),
			slog.String("error", err.Error()),
		)
	}
}

// CurrentUser はセッションクレームから現在のユーザーを返す。
// ユーザー記録がない場合や取得に失敗した場合はクレームの値だけを返す。
func (s *Service) CurrentUser(ctx context.Context, claims SessionClaims) (*CurrentUser, error) {
	if claims.InternalID == "" {
		return nil, model.ErrUnauthorized
	}

	current := &CurrentUser{
		InternalID:     claims.InternalID,
		ProviderUserID: claims.ProviderID,
	}

	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	user, err := s.userRepo.FindByID(storeCtx, claims.InternalID)
	if err != nil {
		slog.Warn("failed to load user record",
			slog.String("internal_id", claims.InternalID),
			slog.String("error", err.Error()),
		)
		return current, nil
	}
	if user == nil {
		return current, nil
	}

	current.Username = user.Username
	current.DisplayName = user.DisplayName
	current.AvatarURL = user.AvatarURL
	return current, nil
}

// Logout はサインアウトを記録する。Cookieの削除はハンドラーが行う。
func (s *Service) Logout(_ context.Context, claims SessionClaims) {
	slog.Info("user logged out", slog.String("internal_id", claims.InternalID))
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordSignIn(result)
	}
}
