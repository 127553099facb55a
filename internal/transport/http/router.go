package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pribylovaa/go-session-auth/internal/transport/http/handlers"
	"github.com/pribylovaa/go-session-auth/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger       *slog.Logger
	Timeout      time.Duration
	BasePath     string // например, "/api"; если пустой — роуты регистрируются на корне.
	ClientOrigin string // единственный origin, которому разрешён CORS
	Ready        func() bool
	Metrics      http.Handler // /metrics; nil — не регистрируется
}

// NewRouter собирает http.Handler с chi: публичные auth-маршруты,
// защищённые маршруты за middleware.Authenticate и служебные эндпойнты.
func NewRouter(auth handlers.AuthService, verifier middleware.Verifier, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.ClientOrigin != "" {
		root.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{opts.ClientOrigin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.HeaderRequestID},
			ExposedHeaders:   []string{middleware.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	// Служебные маршруты без авторизации.
	root.Get("/health", handlers.Health)
	root.Get("/livez", handlers.Livez)
	root.Get("/healthz", handlers.Healthz(opts.Ready))
	if opts.Metrics != nil {
		root.Handle("/metrics", opts.Metrics)
	}

	h := handlers.New(auth)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, verifier)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, verifier)
	return root
}

// registerRoutes — единая точка регистрации REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, verifier middleware.Verifier) {
	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(verifier))
		r.Get("/auth/me", h.Me)
		r.Post("/auth/logout", h.Logout)
	})
}
