// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookie名。
const SessionCookieName = "session_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// currentUserContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var currentUserContextKey = contextKey("current_user")

// SessionValidator はセッショントークンの検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
// 無効なトークンはエラーではなくnilで表現される。
type SessionValidator interface {
	ValidateSession(ctx context.Context, rawSessionToken string) (*model.PublicUser, error)
}

// ExtractSessionToken はリクエストからセッショントークンを取り出す。
// Cookieを優先し、なければAuthorization: Bearerヘッダーを参照する。
// どちらにもなければ空文字列を返す。
func ExtractSessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authz := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authz, "Bearer "); ok && token != "" {
		return token
	}
	return ""
}

// NewSessionMiddleware はセッショントークンを検証するミドルウェアを返す。
// 認証済みユーザーをリクエストコンテキストに注入する。
// トークンがない・無効・期限切れ・失効済みの場合は401 Unauthorizedを返す。
func NewSessionMiddleware(validator SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieまたはヘッダーからトークンを取得
			token := ExtractSessionToken(r)
			if token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			// 2. セッションの有効性を検証
			user, err := validator.ValidateSession(r.Context(), token)
			if err != nil {
				slog.Error("failed to validate session",
					slog.String("error", err.Error()),
				)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if user == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			// 3. 認証済みユーザーをコンテキストに注入
			ctx := context.WithValue(r.Context(), currentUserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.PublicUser, error) {
	user, ok := ctx.Value(currentUserContextKey).(*model.PublicUser)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.PublicUser) context.Context {
	return context.WithValue(ctx, currentUserContextKey, user)
}
