// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// minSessionSecretLength はHS256の鍵として許容する最小バイト数。
	minSessionSecretLength = 32
	maxFollowingPageSize   = 1000
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// OAuth（X / Twitter）
	TwitterClientID     string `env:"TWITTER_CLIENT_ID,required,notEmpty"`
	TwitterClientSecret string `env:"TWITTER_CLIENT_SECRET,required,notEmpty"`
	TwitterRedirectURL  string `env:"TWITTER_REDIRECT_URL,required,notEmpty"`

	// Session
	SessionSecret string `env:"SESSION_SECRET,required,notEmpty"`
	SessionMaxAge int    `env:"SESSION_MAX_AGE" envDefault:"2592000"` // 秒

	// Social graph
	SocialGraphBaseURL string        `env:"SOCIAL_GRAPH_BASE_URL" envDefault:"https://api.twitter.com/2"`
	FollowingPageSize  int           `env:"FOLLOWING_PAGE_SIZE" envDefault:"100"`
	FetchTimeout       time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`

	// Store
	StoreTimeout         time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	SnapshotWriteTimeout time.Duration `env:"SNAPSHOT_WRITE_TIMEOUT" envDefault:"5s"`

	// Snapshot retention
	SnapshotRetentionDays   int           `env:"SNAPSHOT_RETENTION_DAYS" envDefault:"30"`
	SnapshotCleanupInterval time.Duration `env:"SNAPSHOT_CLEANUP_INTERVAL" envDefault:"24h"`

	// Rate Limit（req/min/user）
	RateLimitGeneral   int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitBookWrite int `env:"RATE_LIMIT_BOOK_WRITE" envDefault:"30"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`

	// Cookie
	CookieSecure bool   // BASE_URLがhttpsの場合にtrue
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`

	// Logging（debug, info, warn, error）
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合や値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	var problems []string
	if err := env.Parse(cfg); err != nil {
		parsed, ok := envProblems(err)
		if !ok {
			return nil, fmt.Errorf("failed to parse environment variables: %w", err)
		}
		problems = parsed
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	problems = append(problems, cfg.validate()...)
	if len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

// envProblems はenv.Parseのエラーを環境変数名つきのメッセージに変換する。
// 変換できないエラーが含まれる場合はfalseを返す。
func envProblems(err error) ([]string, bool) {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return nil, false
	}

	var problems []string
	for _, e := range agg.Errors {
		var (
			parseErr env.ParseError
			unset    env.VarIsNotSetError
			empty    env.EmptyVarError
		)
		switch {
		case errors.As(e, &parseErr):
			problems = append(problems, fmt.Sprintf("%s is invalid: %v", envKeyForField(parseErr.Name), parseErr.Err))
		case errors.As(e, &unset):
			problems = append(problems, fmt.Sprintf("%s is required", unset.Key))
		case errors.As(e, &empty):
			problems = append(problems, fmt.Sprintf("%s must not be empty", empty.Key))
		default:
			return nil, false
		}
	}
	return problems, true
}

// envKeyForField はConfigのフィールド名に対応するenvタグの変数名を返す。
func envKeyForField(name string) string {
	field, ok := reflect.TypeOf(Config{}).FieldByName(name)
	if !ok {
		return name
	}
	key, _, _ := strings.Cut(field.Tag.Get("env"), ",")
	if key == "" {
		return name
	}
	return key
}

// SessionMaxAgeDuration はセッションの有効期間をtime.Durationで返す。
func (c *Config) SessionMaxAgeDuration() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

// validate は値の範囲を検証し、問題ごとに環境変数名を含むメッセージを返す。
func (c *Config) validate() []string {
	var problems []string

	if len(c.SessionSecret) < minSessionSecretLength {
		problems = append(problems, fmt.Sprintf("SESSION_SECRET must be at least %d bytes", minSessionSecretLength))
	}
	if c.SessionMaxAge <= 0 {
		problems = append(problems, "SESSION_MAX_AGE must be positive")
	}
	if c.FollowingPageSize < 1 || c.FollowingPageSize > maxFollowingPageSize {
		problems = append(problems, fmt.Sprintf("FOLLOWING_PAGE_SIZE must be between 1 and %d", maxFollowingPageSize))
	}
	if c.FetchTimeout <= 0 || c.StoreTimeout <= 0 || c.SnapshotWriteTimeout <= 0 {
		problems = append(problems, "FETCH_TIMEOUT, STORE_TIMEOUT and SNAPSHOT_WRITE_TIMEOUT must be positive")
	}
	if c.SnapshotRetentionDays <= 0 || c.SnapshotCleanupInterval <= 0 {
		problems = append(problems, "SNAPSHOT_RETENTION_DAYS and SNAPSHOT_CLEANUP_INTERVAL must be positive")
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitBookWrite <= 0 {
		problems = append(problems, "RATE_LIMIT_GENERAL and RATE_LIMIT_BOOK_WRITE must be positive")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, "BASE_URL must be an absolute URL")
	}
	if u, err := url.Parse(c.SocialGraphBaseURL); err != nil || u.Scheme != "https" || u.Host == "" {
		problems = append(problems, "SOCIAL_GRAPH_BASE_URL must be an https URL")
	}
	return problems
}
