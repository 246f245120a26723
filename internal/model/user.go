// Package model はドメインモデルを定義する。
package model

import "time"

// User は外部IdPアカウントに紐付くユーザー記録を表す。
// IDはProviderとProviderUserIDから決定的に導出される内部ID（例: "twitter_42"）。
type User struct {
	ID             string
	Provider       string
	ProviderUserID string
	Username       string
	DisplayName    string
	AvatarURL      string
	Email          string // 任意
	AccessToken    string
	RefreshToken   string // 任意
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Credential は外部API呼び出しに必要な委任クレデンシャル。
type Credential struct {
	ProviderUserID string
	AccessToken    string
}

// Session は署名済みセッショントークンとそのクレームを表す。
type Session struct {
	Token          string
	InternalID     string
	ProviderUserID string
	IssuedAt       time.Time
	ExpiresAt      time.Time
}
