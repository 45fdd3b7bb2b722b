// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/auth"
	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/middleware"
	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	RequestLogin(ctx context.Context, input auth.RequestLoginInput) (*auth.LoginRequestResult, error)
	VerifyToken(ctx context.Context, input auth.VerifyInput) (*auth.VerifiedSession, error)
	Logout(ctx context.Context, rawSessionToken string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// FrontendURL は検証成功後のリダイレクト先。
	FrontendURL   string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はマジックリンク認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はログインリンクリクエストのボディ。
type loginRequest struct {
	Email string `json:"email"`
}

// Login はログインリンクの発行をリクエストする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.RequestLogin(r.Context(), auth.RequestLoginInput{
		Email:     req.Email,
		RequestIP: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	body := map[string]string{
		"message": "Login link sent. Check your inbox.",
	}
	if result.DevToken != "" {
		// 開発モード専用。本番ではDevTokenは常に空。
		body["dev_token"] = result.DevToken
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(body)
}

// VerifyLink はメール内のマジックリンクのクリックを処理する。
// 成功時はセッションCookieを設定してフロントエンドにリダイレクトする。
// 失敗時はエラーコードをクエリに付けてフロントエンドに戻す。
// GET /auth/verify?token=xxx
func (h *AuthHandler) VerifyLink(w http.ResponseWriter, r *http.Request) {
	rawToken := r.URL.Query().Get("token")
	if rawToken == "" {
		h.redirectWithError(w, r, model.ErrCodeTokenNotFound)
		return
	}

	verified, err := h.service.VerifyToken(r.Context(), auth.VerifyInput{
		RawToken:  rawToken,
		RequestIP: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			h.redirectWithError(w, r, apiErr.Code)
			return
		}
		slog.Error("failed to verify login link", slog.String("error", err.Error()))
		h.redirectWithError(w, r, "INTERNAL_ERROR")
		return
	}

	h.setSessionCookie(w, verified.RawSessionToken)
	http.Redirect(w, r, h.config.FrontendURL, http.StatusTemporaryRedirect)
}

// verifyRequest はトークン検証APIのボディ。
type verifyRequest struct {
	Token string `json:"token"`
}

// Verify はトークンをJSON APIとして検証する。SPAからの呼び出し用。
// 成功時はセッションCookieを設定し、セッションの有効期限を返す。
// POST /auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	verified, err := h.service.VerifyToken(r.Context(), auth.VerifyInput{
		RawToken:  req.Token,
		RequestIP: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, verified.RawSessionToken)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"user_id":    verified.UserID,
		"expires_at": verified.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout はセッションを失効させ、Cookieをクリアする。
// セッションがない・既に無効でも成功として扱う。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractSessionToken(r)
	if token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
			// 失効に失敗してもCookieはクリアする
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// セッションミドルウェアの後に配置する。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// setSessionCookie はセッショントークンをHTTP Only Cookieとして設定する。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, rawToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    rawToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectWithError はエラーコードをクエリに付けてフロントエンドにリダイレクトする。
func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	target := h.config.FrontendURL + "/login?error=" + url.QueryEscape(code)
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}
