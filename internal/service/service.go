// service содержит бизнес-логику выпуска и проверки сессий:
// регистрацию и вход пользователей, выпуск токена через token.Codec,
// проверку bearer-токена и необязательный отзыв при logout.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования, если потокобезопасно хранилище.
//   - Проверка токена не ходит в хранилище пользователей: достаточно подписи
//     и срока действия. Единственное исключение — включённый denylist.
//   - Ошибки возвращаются как сентинелы ниже и маппятся транспортом
//     (см. internal/apierrors и internal/transport/grpc).
package service

import (
	"errors"

	"github.com/pribylovaa/go-session-auth/internal/cache"
	"github.com/pribylovaa/go-session-auth/internal/config"
	"github.com/pribylovaa/go-session-auth/internal/metrics"
	"github.com/pribylovaa/go-session-auth/internal/password"
	"github.com/pribylovaa/go-session-auth/internal/storage"
	"github.com/pribylovaa/go-session-auth/internal/token"
)

var (
	// ErrMissingCredentials — в запросе нет bearer-токена или заголовок некорректен.
	// Транспорт: HTTP 401 / codes.Unauthenticated.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidToken — токен не прошёл проверку (формат, подпись, срок, отзыв).
	// Конкретная причина наружу не отдаётся. Транспорт: HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenRevoked — токен отозван через logout. Наружу неотличим от ErrInvalidToken.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrInvalidCredentials — неверный пароль или неизвестный email.
	// Намеренно не различаются. Транспорт: HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDuplicateAccount — email уже зарегистрирован. Транспорт: HTTP 409.
	ErrDuplicateAccount = errors.New("account already exists")

	// ErrWeakPassword — пароль не проходит политику сложности. Транспорт: HTTP 400.
	ErrWeakPassword = password.ErrWeakPassword

	// ErrInvalidEmail — email имеет некорректный формат. Транспорт: HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidInput — пустые имя или фамилия. Транспорт: HTTP 400.
	ErrInvalidInput = errors.New("invalid input")
)

// Service описывает бизнес-логику сессий.
type Service struct {
	storage  storage.UserStorage
	codec    *token.Codec
	cfg      config.AuthConfig
	denylist cache.Denylist   // nil, если отзыв выключен
	metrics  *metrics.Metrics // nil, если метрики не нужны
}

// New создаёт новый экземпляр Service.
func New(storage storage.UserStorage, codec *token.Codec, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		codec:   codec,
		cfg:     cfg,
	}
}

// SetDenylist включает отзыв токенов при logout (опционально).
func (s *Service) SetDenylist(d cache.Denylist) {
	s.denylist = d
}

// SetMetrics подключает счётчики (опционально).
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// RevocationEnabled сообщает, отзываются ли токены при logout.
func (s *Service) RevocationEnabled() bool {
	return s.denylist != nil
}
