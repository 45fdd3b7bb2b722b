// Package model はドメインモデルを定義する。
package model

import "time"

// Session はユーザーのログインセッションを表す。
// クライアントに渡す平文シークレットは保存せず、ハッシュのみを保持する。
// 失効はRevokedAtの設定による論理的なもので、行は監査のため物理削除しない。
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	RequestIP string
	UserAgent string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// IsActive は指定時刻においてセッションが有効かどうかを判定する。
// 失効済みまたは期限切れの場合はfalseを返す。
func (s *Session) IsActive(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
