// Package identity はIdPが発行するアカウントIDから内部ユーザーIDを導出する。
package identity

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/hitoshi/bookshelf/internal/model"
)

// separator はプロバイダー名とプロバイダーユーザーIDの区切り文字。
// プロバイダー名に含まれない文字を使うことでプロバイダー間の衝突を防ぐ。
const separator = "_"

var providerNamePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// DeriveInternalID はプロバイダー名とプロバイダーユーザーIDから内部IDを導出する。
// 表示名やメールアドレスなど変更されうるプロフィール項目には依存しない。
// 同じ入力に対しては常に同じ値を返す。
func DeriveInternalID(provider, providerUserID string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(provider))
	id := strings.TrimSpace(providerUserID)

	if p == "" {
		return "", fmt.Errorf("%w: empty provider", model.ErrIdentityUnresolved)
	}
	if !providerNamePattern.MatchString(p) {
		return "", fmt.Errorf("%w: invalid provider name %q", model.ErrIdentityUnresolved, provider)
	}
	if id == "" {
		return "", fmt.Errorf("%w: empty provider user id", model.ErrIdentityUnresolved)
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: provider user id contains whitespace", model.ErrIdentityUnresolved)
	}

	return p + separator + id, nil
}
