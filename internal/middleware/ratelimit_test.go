package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/model"
)

// testRateLimiterConfig はテスト用の小さなバースト値を持つ設定を返す。
func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 60.0),
		GeneralBurst:    3,
		LoginRate:       rate.Limit(1.0 / 60.0),
		LoginBurst:      2,
		CleanupInterval: time.Hour,
	}
}

// TestRateLimiter_LoginMiddleware_PerIP はログイン制限がIPごとに独立していることをテストする。
func TestRateLimiter_LoginMiddleware_PerIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.LoginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doReq := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remoteAddr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Result().StatusCode
	}

	// バースト分は通る
	for i := 0; i < 2; i++ {
		if status := doReq("10.0.0.1:1234"); status != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, status, http.StatusOK)
		}
	}

	// バースト超過で429
	if status := doReq("10.0.0.1:1234"); status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", status, http.StatusTooManyRequests)
	}

	// 別IPは影響を受けない
	if status := doReq("10.0.0.2:1234"); status != http.StatusOK {
		t.Errorf("other IP status = %d, want %d", status, http.StatusOK)
	}

	if rl.LoginLimiterCount() != 2 {
		t.Errorf("LoginLimiterCount = %d, want 2", rl.LoginLimiterCount())
	}
}

// TestRateLimiter_LoginMiddleware_RetryAfter は429レスポンスにRetry-Afterが付くことをテストする。
func TestRateLimiter_LoginMiddleware_RetryAfter(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.LoginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.3:1234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if last.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", last.Result().StatusCode, http.StatusTooManyRequests)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

// TestRateLimiter_GeneralMiddleware_PerUser はAPI全般制限がユーザーごとであることをテストする。
func TestRateLimiter_GeneralMiddleware_PerUser(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	doReq := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req = req.WithContext(ContextWithUser(req.Context(), &model.PublicUser{ID: userID}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Result().StatusCode
	}

	for i := 0; i < 3; i++ {
		if status := doReq("user-a"); status != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, status, http.StatusOK)
		}
	}
	if status := doReq("user-a"); status != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", status, http.StatusTooManyRequests)
	}
	if status := doReq("user-b"); status != http.StatusOK {
		t.Errorf("other user status = %d, want %d", status, http.StatusOK)
	}
}

// TestRateLimiter_GeneralMiddleware_RequiresUser は未認証コンテキストで401になることをテストする。
func TestRateLimiter_GeneralMiddleware_RequiresUser(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestRateLimiter_Cleanup は期限切れエントリが削除されることをテストする。
func TestRateLimiter_Cleanup(t *testing.T) {
	config := testRateLimiterConfig()
	config.CleanupInterval = 10 * time.Millisecond
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.LoginMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.9:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if rl.LoginLimiterCount() != 1 {
		t.Fatalf("LoginLimiterCount = %d, want 1", rl.LoginLimiterCount())
	}

	// lastAccessがCleanupIntervalの2倍を超えるまで待つ
	deadline := time.Now().Add(time.Second)
	for rl.LoginLimiterCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if rl.LoginLimiterCount() != 0 {
		t.Errorf("LoginLimiterCount = %d, want 0 after cleanup", rl.LoginLimiterCount())
	}
}

// TestClientIP はRemoteAddrからのIP抽出をテストする。
func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"10.0.0.1:1234", "10.0.0.1"},
		{"[::1]:8080", "::1"},
		{"10.0.0.2", "10.0.0.2"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
