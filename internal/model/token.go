// Package model はドメインモデルを定義する。
package model

import "time"

// TokenPurposeSignin はログイン用マジックリンクトークンの用途。
const TokenPurposeSignin = "signin"

// LoginToken はメールで送付するマジックリンクトークンを表す。
// 平文シークレットは保存せず、ペッパー付きSHA-256ハッシュのみを保持する。
// 消費済み（UsedAtが設定済み）のトークンは永久に無効となり、再利用・延長はできない。
// 行は監査のため物理削除しない。期限切れは読み取り時の論理判定で扱う。
type LoginToken struct {
	ID        string
	UserID    string
	TokenHash string
	Purpose   string
	RequestIP string
	UserAgent string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// IsExpired は指定時刻においてトークンが期限切れかどうかを判定する。
func (t *LoginToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsUsed はトークンが消費済みかどうかを判定する。
func (t *LoginToken) IsUsed() bool {
	return t.UsedAt != nil
}
