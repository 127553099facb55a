package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pribylovaa/go-session-auth/internal/apierrors"
	"github.com/pribylovaa/go-session-auth/internal/models"
	logctx "github.com/pribylovaa/go-session-auth/internal/pkg/log"
	"github.com/pribylovaa/go-session-auth/internal/pkg/redact"
	"github.com/pribylovaa/go-session-auth/internal/service"
	"github.com/pribylovaa/go-session-auth/internal/token"
)

const bearerPrefix = "Bearer "

// HeaderState — результат разбора заголовка Authorization.
type HeaderState int

const (
	// HeaderAbsent — заголовка нет.
	HeaderAbsent HeaderState = iota
	// HeaderMalformed — не "Bearer <token>" или токен пустой.
	HeaderMalformed
	// HeaderPresent — токен извлечён.
	HeaderPresent
)

func (s HeaderState) String() string {
	switch s {
	case HeaderAbsent:
		return "absent"
	case HeaderMalformed:
		return "malformed"
	case HeaderPresent:
		return "present"
	default:
		return "unknown"
	}
}

// ParseAuthorization разбирает значение Authorization. Префикс — ровно "Bearer ",
// токеном считается весь остаток строки; пустой или пробельный остаток — HeaderMalformed.
func ParseAuthorization(header string) (string, HeaderState) {
	if header == "" {
		return "", HeaderAbsent
	}

	if !strings.HasPrefix(header, bearerPrefix) {
		return "", HeaderMalformed
	}

	tok := header[len(bearerPrefix):]
	if strings.TrimSpace(tok) == "" {
		return "", HeaderMalformed
	}

	return tok, HeaderPresent
}

// Verifier проверяет bearer-токен. Реализации: service.Service (локально)
// и grpc.VerifierClient (удалённо).
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (token.Claims, error)
}

type claimsKey struct{}

// Authenticate — шлюз защищённых маршрутов. Два состояния запроса:
// без claims (401, обработчик не вызывается) и с claims в контексте.
func Authenticate(v Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lg := logctx.From(r.Context())

			tok, state := ParseAuthorization(r.Header.Get("Authorization"))
			if state != HeaderPresent {
				lg.Debug("auth_rejected", slog.String("header", state.String()))
				apierrors.WriteError(w, r, service.ErrMissingCredentials)
				return
			}

			claims, err := v.VerifyToken(r.Context(), tok)
			if err != nil {
				lg.Debug("auth_rejected",
					slog.String("token", redact.Token(tok)),
					slog.String("err", err.Error()),
				)
				apierrors.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx, _ = logctx.With(ctx, slog.String("user_id", claims.ID.String()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom возвращает claims, проставленные Authenticate.
func ClaimsFrom(ctx context.Context) (token.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(token.Claims)
	return c, ok
}

// IdentityFrom возвращает личность аутентифицированного пользователя.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	c, ok := ClaimsFrom(ctx)
	return c.Identity, ok
}
