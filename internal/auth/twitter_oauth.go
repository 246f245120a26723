package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

const (
	providerTwitter = "twitter"

	defaultTwitterAuthURL     = "https://twitter.com/i/oauth2/authorize"
	defaultTwitterTokenURL    = "https://api.twitter.com/2/oauth2/token"
	defaultTwitterUserInfoURL = "https://api.twitter.com/2/users/me"

	// maxUserInfoBodySize はユーザー情報レスポンスの最大サイズ（64KB）。
	maxUserInfoBodySize = 64 << 10
)

// twitterScopes はフォロー一覧の取得とリフレッシュトークンの発行に必要なスコープ。
var twitterScopes = []string{"tweet.read", "users.read", "follows.read", "offline.access"}

// TwitterOAuthConfig はX（旧Twitter） OAuthプロバイダーの設定。
type TwitterOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient はトークン交換とユーザー情報取得に使用する。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client
}

// TwitterOAuthProvider はOAuth 2.0 認可コードフロー + PKCE による認証を提供する。
type TwitterOAuthProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewTwitterOAuthProvider はTwitterOAuthProviderを生成する。
func NewTwitterOAuthProvider(config TwitterOAuthConfig) *TwitterOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultTwitterAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTwitterTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultTwitterUserInfoURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	return &TwitterOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       twitterScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   config.AuthURL,
				TokenURL:  config.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		userInfoURL: config.UserInfoURL,
		httpClient:  config.HTTPClient,
	}
}

// Name はプロバイダー名を返す。
func (p *TwitterOAuthProvider) Name() string {
	return providerTwitter
}

// GetLoginURL はS256チャレンジ付きの認証URLを生成する。
func (p *TwitterOAuthProvider) GetLoginURL(state, verifier string) string {
	return p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// twitterUserResponse は /2/users/me のレスポンス。
type twitterUserResponse struct {
	Data struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
	} `json:"data"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *TwitterOAuthProvider) ExchangeCode(ctx context.Context, code, verifier string) (*SignInEvent, error) {
	// 1. 認可コードをアクセストークンに交換
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.oauth.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	// 2. アクセストークンでユーザー情報を取得
	user, err := p.fetchUser(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return &SignInEvent{
		Provider:       providerTwitter,
		ProviderUserID: user.Data.ID,
		Username:       user.Data.Username,
		DisplayName:    user.Data.Name,
		AvatarURL:      user.Data.ProfileImageURL,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
	}, nil
}

// fetchUser はアクセストークンで認証ユーザーのプロフィールを取得する。
func (p *TwitterOAuthProvider) fetchUser(ctx context.Context, accessToken string) (*twitterUserResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL+"?user.fields=profile_image_url", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user twitterUserResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	return &user, nil
}

// compile-time interface check
var _ OAuthProvider = (*TwitterOAuthProvider)(nil)
