package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, book, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeIdentityUnresolved = "IDENTITY_UNRESOLVED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeBookNotFound       = "BOOK_NOT_FOUND"
	ErrCodeInvalidBook        = "INVALID_BOOK"
	ErrCodeInvalidBookStatus  = "INVALID_BOOK_STATUS"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeCSRFInvalid        = "CSRF_INVALID"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// 内部エラーの分類。ログと分岐判定に使用し、ユーザーには直接返さない。
var (
	// ErrIdentityUnresolved はIdPから有効なユーザーIDが得られなかったことを示す。サインインを中断する。
	ErrIdentityUnresolved = errors.New("identity unresolved")
	// ErrStore は永続化ストアの操作失敗を示す。
	ErrStore = errors.New("store error")
	// ErrCredentialMissing は外部API呼び出しに使えるクレデンシャルがないことを示す。
	ErrCredentialMissing = errors.New("credential missing")
	// ErrExternalAPI は外部ソーシャルグラフAPIの失敗を示す。
	ErrExternalAPI = errors.New("external api error")
	// ErrUnauthorized は有効なセッションがないことを示す。
	ErrUnauthorized = errors.New("unauthorized")
)

// ExternalAPIError は外部APIが非2xxステータスを返したことを表す。
type ExternalAPIError struct {
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("external api returned status %d", e.StatusCode)
}

// Is はerrors.Is(err, ErrExternalAPI)を満たすようにする。
func (e *ExternalAPIError) Is(target error) bool {
	return target == ErrExternalAPI
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewIdentityUnresolvedError はIdPのアカウントIDを特定できなかった場合のエラーを生成する。
func NewIdentityUnresolvedError() *APIError {
	return &APIError{
		Code:     ErrCodeIdentityUnresolved,
		Message:  "ログインしたアカウントを特定できませんでした。",
		Category: "auth",
		Action:   "もう一度ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewBookNotFoundError は本が見つからない場合のエラーを生成する。
func NewBookNotFoundError(bookID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookNotFound,
		Message:  fmt.Sprintf("指定された本が見つかりません: %s", bookID),
		Category: "book",
		Action:   "本IDを確認してください。",
	}
}

// NewInvalidBookError は本の入力値が不正な場合のエラーを生成する。
func NewInvalidBookError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBook,
		Message:  fmt.Sprintf("本の情報が不正です: %s", reason),
		Category: "validation",
		Action:   "タイトルと著者を入力してください。",
	}
}

// NewInvalidBookStatusError は読書状態が不正な場合のエラーを生成する。
func NewInvalidBookStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBookStatus,
		Message:  fmt.Sprintf("無効な読書状態です: %s", status),
		Category: "validation",
		Action:   "読書状態には reading、finished、want-to-read のいずれかを指定してください。",
	}
}

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewCSRFInvalidError はCSRFトークン検証に失敗した場合のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超過した場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエスト数が上限を超えました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにだけ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
