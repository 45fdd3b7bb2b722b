package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/middleware"
	"github.com/CaioHVectorA/professores-da-uff-sub000/internal/model"
)

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		middleware.WriteErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidEmailDomain:
		return http.StatusUnprocessableEntity
	case model.ErrCodeDeliveryFailed:
		return http.StatusBadGateway
	case model.ErrCodeTokenNotFound:
		return http.StatusNotFound
	case model.ErrCodeTokenExpired, model.ErrCodeTokenAlreadyUsed:
		return http.StatusGone
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// clientIP は接続元IPアドレスを返す。RemoteAddrのポート部は除去する。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
