package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/metrics"
	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/middleware"
)

// Pinger はヘルスチェックでの疎通確認に必要なインターフェース。
// *sql.DBが実装する。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionValidator  middleware.SessionValidator
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 運用系
	DB       Pinger
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → (ルートごとの追加ミドルウェア)
//
// 状態変更を伴う認証ルートはCSRF検証を通す。
// セッション必須ルートはSession → RateLimit(General)の順に通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	csrfMW := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	// --- 運用系ルート（認証・CSRF不要） ---

	r.Get("/health", newHealthHandler(deps.DB))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証ルート ---

	r.Route("/auth", func(r chi.Router) {
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// メール内リンクのクリックはクロスサイトの単純なGETで到達するため、
		// CSRF検証もレート制限の対象外。
		r.Get("/verify", authHandler.VerifyLink)

		// 状態変更の公開ルート: CSRF検証 + IP単位のレート制限
		r.Group(func(r chi.Router) {
			r.Use(csrfMW)
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
			r.Post("/verify", authHandler.Verify)
			// ログアウトは冪等なので認証ミドルウェアを通さない
			r.Post("/logout", authHandler.Logout)
		})

		// セッション必須ルート
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionValidator))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/me", authHandler.Me)
		})
	})

	return r
}

// newHealthHandler はデータベース疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		statusCode := http.StatusOK

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				status = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}
