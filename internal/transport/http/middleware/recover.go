package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/go-session-auth/internal/apierrors"
	logctx "github.com/pribylovaa/go-session-auth/internal/pkg/log"
)

// Recover превращает panic в 500/internal без деталей для клиента.
// Если ответ уже начат, тело не дописывается, остаётся только запись в логе.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := wrap(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic_recovered",
					slog.String("path", r.URL.Path),
					slog.Any("reason", rec),
					slog.Bool("response_started", sw.wrote()),
				)

				if !sw.wrote() {
					apierrors.WriteError(sw, r, fmt.Errorf("panic: %v", rec))
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
