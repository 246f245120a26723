package model

import "time"

// ProfileSummary はフォロー中アカウントの表示用プロフィール。
type ProfileSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// FollowingSnapshot は最後に成功したフォロー一覧取得結果のキャッシュ。
// 取得成功のたびに丸ごと上書きされ、履歴は保持しない。
type FollowingSnapshot struct {
	UserID    string
	Following []ProfileSummary
	UpdatedAt time.Time
}
