package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/bookshelf/internal/model"
)

const defaultIssuer = "bookshelf"

// sessionJWTClaims はJWTにエンコードされるクレーム。
type sessionJWTClaims struct {
	InternalID string `json:"internal_id"`
	ProviderID string `json:"provider_id"`
	jwt.RegisteredClaims
}

// TokenIssuer はHS256で署名したステートレスなセッショントークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	issuer string
	maxAge time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, maxAge time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: defaultIssuer,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// MaxAge はトークンの有効期間を返す。
func (t *TokenIssuer) MaxAge() time.Duration {
	return t.maxAge
}

// Issue はクレームからセッショントークンを発行する。
func (t *TokenIssuer) Issue(claims SessionClaims) (*model.Session, error) {
	if claims.InternalID == "" {
		return nil, fmt.Errorf("internal id is required")
	}
	if claims.ProviderID == "" {
		return nil, fmt.Errorf("provider id is required")
	}

	now := t.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(t.maxAge)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionJWTClaims{
		InternalID: claims.InternalID,
		ProviderID: claims.ProviderID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.InternalID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &model.Session{
		Token:          signed,
		InternalID:     claims.InternalID,
		ProviderUserID: claims.ProviderID,
		IssuedAt:       now,
		ExpiresAt:      expiresAt,
	}, nil
}

// Verify はトークンの署名と有効期限を検証し、クレームを返す。
// 失敗時のエラーはmodel.ErrUnauthorizedをラップする。
func (t *TokenIssuer) Verify(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("empty session token: %w", model.ErrUnauthorized)
	}

	var parsed sessionJWTClaims
	_, err := jwt.ParseWithClaims(tokenString, &parsed, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("session token expired: %w", model.ErrUnauthorized)
		}
		return nil, fmt.Errorf("invalid session token: %v: %w", err, model.ErrUnauthorized)
	}

	if parsed.InternalID == "" || parsed.InternalID != parsed.Subject {
		return nil, fmt.Errorf("session token subject mismatch: %w", model.ErrUnauthorized)
	}
	if parsed.ProviderID == "" {
		return nil, fmt.Errorf("session token has no provider id: %w", model.ErrUnauthorized)
	}

	return &SessionClaims{
		InternalID: parsed.InternalID,
		ProviderID: parsed.ProviderID,
	}, nil
}

// Refresh は同じクレームのまま有効期限を延長したトークンを再発行する。
func (t *TokenIssuer) Refresh(claims SessionClaims) (*model.Session, error) {
	return t.Issue(claims)
}
