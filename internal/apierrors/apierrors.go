// apierrors стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку сервиса, на выход даёт:
//   - корректный HTTP-статус;
//   - стабильный машиночитаемый code;
//   - короткое безопасное message без утечки деталей.
//
// Причина отказа проверки токена (формат, подпись, срок, отзыв)
// наружу не выдаётся: всё это invalid_token.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/go-session-auth/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrMalformedBody — тело запроса не разобрано (битый JSON, лишние поля).
var ErrMalformedBody = errors.New("malformed request body")

// APIError — единый формат ошибки для клиента.
// Code — короткий стабильный код; Message — текст для баннера формы;
// RequestID — из X-Request-Id, если есть.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и тело ответа.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500/internal,
//     чтобы не послать "200 OK" с телом ошибки;
//   - известные ошибки сервиса маппятся через errors.Is;
//   - всё прочее — 500/internal без деталей.
func ToHTTP(err error) (int, APIError) {
	switch {
	case err == nil:
		return internal()
	case errors.Is(err, service.ErrMissingCredentials):
		return http.StatusUnauthorized, APIError{Code: "missing_credentials", Message: "Authorization header missing"}
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, APIError{Code: "invalid_token", Message: "Invalid or expired token"}
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, APIError{Code: "invalid_credentials", Message: "Invalid email or password"}
	case errors.Is(err, service.ErrDuplicateAccount):
		return http.StatusConflict, APIError{Code: "duplicate_account", Message: "An account with this email already exists"}
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, APIError{Code: "weak_password", Message: "Password does not meet the requirements"}
	case errors.Is(err, service.ErrInvalidEmail):
		return http.StatusBadRequest, APIError{Code: "invalid_email", Message: "Please provide a valid email address"}
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, APIError{Code: "invalid_input", Message: "Name and surname are required"}
	case errors.Is(err, ErrMalformedBody):
		return http.StatusBadRequest, APIError{Code: "invalid_argument", Message: "Malformed request body"}
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, APIError{Code: "canceled", Message: "Request canceled"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, APIError{Code: "deadline_exceeded", Message: "Request timed out"}
	default:
		return internal()
	}
}

func internal() (int, APIError) {
	return http.StatusInternalServerError, APIError{Code: "internal", Message: "internal error"}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет статус и тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
