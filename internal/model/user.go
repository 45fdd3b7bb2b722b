// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// メールアドレスは正規化後にペッパー付きSHA-256でハッシュ化して一意キーとする。
// 初回のログインリクエスト時に遅延作成される。
type User struct {
	ID         string
	EmailHash  string
	Email      string
	VerifiedAt *time.Time
	IsAdmin    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PublicUser は外部に公開できるユーザー情報の射影。
// EmailHashや内部シークレットは含めない。
type PublicUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	IsAdmin  bool   `json:"is_admin"`
}

// Public はUserの公開射影を返す。
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:       u.ID,
		Email:    u.Email,
		Verified: u.VerifiedAt != nil,
		IsAdmin:  u.IsAdmin,
	}
}
