package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizer は外部APIから受け取ったプロフィール文字列からマークアップを除去する。
type ProfileSanitizer interface {
	// SanitizeText はすべてのタグを除去したプレーンテキストを返す。
	// 前後の空白は取り除く。空文字列の入力には空文字列を返す。
	SanitizeText(raw string) string
}

// profileSanitizer はProfileSanitizerの実装。
// bluemondayのポリシーはゴルーチン間で共有できる。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はタグを一切許可しないポリシーでProfileSanitizerを生成する。
func NewProfileSanitizer() ProfileSanitizer {
	return &profileSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeText はタグを除去し、bluemondayがエスケープした文字参照を元に戻す。
// 結果はJSONとして返すためHTMLエスケープは不要。
func (s *profileSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
