// Package socialgraph は外部ソーシャルグラフAPI（X API v2）のクライアントを提供する。
package socialgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/bookshelf/internal/model"
)

const (
	// DefaultBaseURL はX API v2のベースURL。
	DefaultBaseURL = "https://api.twitter.com/2"
	// MaxPageSize はフォロー一覧APIの1ページあたり最大件数。
	MaxPageSize = 1000
	// maxResponseBodySize はレスポンスボディの最大サイズ（1MB）。
	maxResponseBodySize = 1 << 20
	// maxErrorBodySize はエラー時にログへ残すボディの最大長。
	maxErrorBodySize = 512
	// userFields はフォロー一覧に含めるプロフィール項目。
	userFields = "profile_image_url,description"
)

// User は外部APIが返すユーザープロフィール。
type User struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
	Description     string `json:"description"`
}

// followingResponse は /users/{id}/following のレスポンス。
type followingResponse struct {
	Data []User `json:"data"`
}

// Client はソーシャルグラフAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
}

// NewClient はClientを生成する。baseURLが空の場合はDefaultBaseURLを使用する。
// タイムアウトはhttpClient側で設定すること。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// GetFollowing はユーザーのフォロー一覧の先頭1ページを取得する。
// 非2xxのステータスは*model.ExternalAPIErrorとして返す。
func (c *Client) GetFollowing(ctx context.Context, accessToken, providerUserID string, maxResults int) ([]User, error) {
	if accessToken == "" {
		return nil, model.ErrCredentialMissing
	}
	if providerUserID == "" {
		return nil, fmt.Errorf("provider user id is required")
	}
	if maxResults <= 0 || maxResults > MaxPageSize {
		maxResults = MaxPageSize
	}

	reqURL, err := url.Parse(c.baseURL + "/users/" + url.PathEscape(providerUserID) + "/following")
	if err != nil {
		return nil, fmt.Errorf("failed to build request url: %w", err)
	}
	q := reqURL.Query()
	q.Set("max_results", strconv.Itoa(maxResults))
	q.Set("user.fields", userFields)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Bookshelf/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ソーシャルグラフAPIの呼び出しに失敗しました",
			slog.String("provider_user_id", providerUserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("following request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// エラー本文は先頭maxErrorBodySizeバイトだけログに残す
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		c.logger.Error("ソーシャルグラフAPIがエラーステータスを返しました",
			slog.String("provider_user_id", providerUserID),
			slog.Int("http_status", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return nil, &model.ExternalAPIError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read following response: %w", err)
	}
	if len(body) > maxResponseBodySize {
		return nil, fmt.Errorf("following response exceeds %d bytes", maxResponseBodySize)
	}

	var result followingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("ソーシャルグラフAPIのレスポンスのパースに失敗しました",
			slog.String("provider_user_id", providerUserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to parse following response: %w", err)
	}

	// フォロー0件の場合dataキー自体が省略される
	if result.Data == nil {
		return []User{}, nil
	}
	return result.Data, nil
}
