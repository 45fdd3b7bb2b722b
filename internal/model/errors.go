// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// Codeが呼び出し側との契約であり、MessageとActionは表示用の付加情報に過ぎない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidEmailDomain = "INVALID_EMAIL_DOMAIN"
	ErrCodeDeliveryFailed     = "DELIVERY_FAILED"
	ErrCodeTokenNotFound      = "TOKEN_NOT_FOUND"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeTokenAlreadyUsed   = "TOKEN_ALREADY_USED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
)

// NewInvalidEmailDomainError は許可ドメイン外メールアドレスのエラーを生成する。
// ハッシュ化による秘匿方針のため、メッセージには生のメールアドレスを含めない。
func NewInvalidEmailDomainError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmailDomain,
		Message:  "許可されていないメールドメインです。",
		Category: "validation",
		Action:   "大学発行のメールアドレス（id.uff.br / uff.br）を入力してください。",
	}
}

// NewDeliveryFailedError はログインリンクの送信失敗エラーを生成する。
func NewDeliveryFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeDeliveryFailed,
		Message:  "ログインリンクの送信に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewTokenNotFoundError はトークン未検出エラーを生成する。
func NewTokenNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenNotFound,
		Message:  "ログインリンクが見つかりません。",
		Category: "auth",
		Action:   "ログインリンクを再度リクエストしてください。",
	}
}

// NewTokenExpiredError はトークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "ログインリンクの有効期限が切れています。",
		Category: "auth",
		Action:   "ログインリンクを再度リクエストしてください。",
	}
}

// NewTokenAlreadyUsedError はトークン使用済みエラーを生成する。
func NewTokenAlreadyUsedError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenAlreadyUsed,
		Message:  "このログインリンクは既に使用されています。",
		Category: "auth",
		Action:   "ログインリンクを再度リクエストしてください。",
	}
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
