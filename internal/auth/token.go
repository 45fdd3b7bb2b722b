package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
)

const (
	// loginTokenBytes はマジックリンクトークンの乱数バイト長。
	loginTokenBytes = 24
	// sessionTokenBytes はセッショントークンの乱数バイト長。
	sessionTokenBytes = 32
)

// emailPattern は一般的なメールアドレス形式の検証パターン。
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// generateSecret は暗号的に安全なランダムシークレットを生成し、
// base64url文字列として返す。
func generateSecret(numBytes int) (string, error) {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashWithPepper は値にアプリケーション全体のペッパーを連結してSHA-256ハッシュを計算する。
// メールアドレスとトークンの両方で同じ方式を使う。
// ペッパーを変更すると保存済みハッシュが照合不能になる点に注意。
func hashWithPepper(value, pepper string) string {
	sum := sha256.Sum256([]byte(value + pepper))
	return hex.EncodeToString(sum[:])
}

// normalizeEmail はメールアドレスを正規化する（前後空白除去＋小文字化）。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isAllowedEmail はメールアドレスが形式的に正しく、
// かつ許可された大学ドメインに属するかを判定する。
// emailは正規化済みであること。
func isAllowedEmail(email string, allowedDomains []string) bool {
	if !emailPattern.MatchString(email) {
		return false
	}

	at := strings.LastIndex(email, "@")
	domain := email[at+1:]

	for _, d := range allowedDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
