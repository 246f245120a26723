package auth

import "strings"

// SessionClaims はセッショントークンに載せるアプリケーションクレーム。
type SessionClaims struct {
	InternalID string
	ProviderID string
}

// ClaimsFromSignIn はサインイン結果からセッションクレームを組み立てる。
// サインイン結果からトークンへ値を移すのはこの関数だけ。
func ClaimsFromSignIn(internalID string, ev *SignInEvent) SessionClaims {
	claims := SessionClaims{InternalID: internalID}
	if ev != nil {
		claims.ProviderID = strings.TrimSpace(ev.ProviderUserID)
	}
	return claims
}
