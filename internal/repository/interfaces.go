// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmailHash はメールハッシュでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmailHash(ctx context.Context, emailHash string) (*model.User, error)

	// CreateOrGet はユーザーを作成するか、同一email_hashの既存行を返す。
	// 同時作成の競合はemail_hashのユニーク制約とON CONFLICTで吸収する。
	// 事前SELECT→INSERTの順序によるTOCTOU重複は発生させない。
	// まれな競合タイミングで作成も取得もできなかった場合はnilを返す（呼び出し側でリトライする）。
	CreateOrGet(ctx context.Context, user *model.User) (*model.User, error)

	// MarkVerified はユーザーの初回認証時刻を記録する。
	// 既に設定済みの場合は元の値を維持する（冪等）。
	MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error
}

// LoginTokenRepository はマジックリンクトークンの永続化インターフェース。
type LoginTokenRepository interface {
	// Create はトークンを作成する。ログインリクエストごとに1行発行し、
	// 未使用の既存トークンを再利用することはない。
	Create(ctx context.Context, token *model.LoginToken) error

	// FindByTokenHash はトークンハッシュでトークンを検索する。見つからない場合はnilを返す。
	// 期限切れ・使用済み判定は呼び出し側で行うため、ここでは絞り込まない。
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.LoginToken, error)

	// Consume はトークンを消費済みにする。
	// 「未使用の場合のみ更新」の条件付きUPDATEを1文で発行し、
	// 更新行数で成否を返す。同一トークンへの同時消費は1件だけtrueになる。
	Consume(ctx context.Context, id string, usedAt time.Time) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// CreateReplacing は同一ユーザーの有効セッションをすべて失効させた上で
	// 新しいセッションを作成する。両操作は同一トランザクションで実行する。
	CreateReplacing(ctx context.Context, session *model.Session) error

	// FindActiveByTokenHash はトークンハッシュで有効なセッションを検索する。
	// 失効済み・期限切れ・未存在の場合はnilを返す。
	FindActiveByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)

	// RevokeByTokenHash はトークンハッシュに一致するセッションを失効させる。
	// 該当セッションが存在しない、または既に失効済みでもエラーにしない（冪等）。
	RevokeByTokenHash(ctx context.Context, tokenHash string, revokedAt time.Time) error

	// RevokeAllByUserID は指定ユーザーの有効セッションをすべて失効させる。
	RevokeAllByUserID(ctx context.Context, userID string, revokedAt time.Time) error
}
