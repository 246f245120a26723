package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/bookshelf/internal/model"
)

// SignInEvent はIdPのコールバックで一度だけデコードされるサインイン結果。
// 以降の処理はこの固定構造だけを参照する。
type SignInEvent struct {
	Provider       string
	ProviderUserID string
	Username       string
	DisplayName    string
	AvatarURL      string
	Email          string
	AccessToken    string
	RefreshToken   string
}

// Validate はアカウントの特定に必要な項目が揃っているかを検証する。
func (e *SignInEvent) Validate() error {
	if e == nil {
		return fmt.Errorf("sign-in event is nil: %w", model.ErrIdentityUnresolved)
	}
	if strings.TrimSpace(e.Provider) == "" {
		return fmt.Errorf("provider is empty: %w", model.ErrIdentityUnresolved)
	}
	if strings.TrimSpace(e.ProviderUserID) == "" {
		return fmt.Errorf("provider user id is empty: %w", model.ErrIdentityUnresolved)
	}
	return nil
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダー名（"twitter" 等）を返す。
	Name() string
	// GetLoginURL はPKCEのチャレンジを含むOAuth認証URLを生成する。
	GetLoginURL(state, verifier string) string
	// ExchangeCode は認可コードをトークンに交換し、サインイン結果を返す。
	ExchangeCode(ctx context.Context, code, verifier string) (*SignInEvent, error)
}
