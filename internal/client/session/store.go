// Package session — клиентское хранилище текущей сессии.
//
// Store держит токен и публичный профиль пользователя, сохраняет их
// в Storage под ключами "token" и "user" и восстанавливает при старте.
// Восстановленной сессии доверяют без обращения к серверу (TrustLocal):
// первый защищённый запрос с просроченным или отозванным токеном
// получит 401 от шлюза.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pribylovaa/go-session-auth/internal/models"
	"github.com/pribylovaa/go-session-auth/internal/pkg/log"
)

// Trust — откуда взялась текущая сессия.
type Trust int

const (
	// TrustNone — сессии нет.
	TrustNone Trust = iota
	// TrustLocal — прочитана из хранилища, сервером не перепроверялась.
	TrustLocal
	// TrustIssued — только что выдана сервером (signup/login).
	TrustIssued
)

func (t Trust) String() string {
	switch t {
	case TrustLocal:
		return "local"
	case TrustIssued:
		return "issued"
	default:
		return "none"
	}
}

// ErrEmptySession — Login вызван без токена или без пользователя.
var ErrEmptySession = errors.New("session: token and user are required")

// Snapshot — неизменяемый срез состояния Store.
// Пока Loading=true, наличие сессии неизвестно.
type Snapshot struct {
	Token   string
	User    *models.PublicUser
	Loading bool
	Trust   Trust
}

// Authenticated сообщает, есть ли текущий пользователь.
func (s Snapshot) Authenticated() bool {
	return s.User != nil
}

// Store — единственная текущая сессия клиента. Безопасен для конкурентного использования.
type Store struct {
	storage Storage

	mu     sync.RWMutex
	cur    Snapshot
	subs   map[int]func(Snapshot)
	nextID int
}

// NewStore создаёт Store в состоянии Loading до вызова Initialize.
func NewStore(storage Storage) *Store {
	return &Store{
		storage: storage,
		cur:     Snapshot{Loading: true},
		subs:    make(map[int]func(Snapshot)),
	}
}

// Initialize восстанавливает сессию из хранилища. Сессия принимается, только если
// оба ключа на месте и профиль разбирается в PublicUser с непустым id или email;
// иначе сессии нет. Loading сбрасывается при любом исходе, ошибка хранилища
// возвращается вызывающему.
func (s *Store) Initialize(ctx context.Context) error {
	const op = "session.Initialize"

	next, err := s.restore(ctx)
	s.set(next)

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store) restore(ctx context.Context) (Snapshot, error) {
	tok, okTok, err := s.storage.Get(ctx, KeyToken)
	if err != nil {
		return Snapshot{}, err
	}

	raw, okUser, err := s.storage.Get(ctx, KeyUser)
	if err != nil {
		return Snapshot{}, err
	}

	if !okTok || !okUser || strings.TrimSpace(tok) == "" {
		return Snapshot{}, nil
	}

	user, err := parseUser(raw)
	if err != nil {
		log.From(ctx).Debug("session_discarded", slog.String("reason", err.Error()))
		return Snapshot{}, nil
	}

	return Snapshot{Token: tok, User: user, Trust: TrustLocal}, nil
}

func parseUser(raw string) (*models.PublicUser, error) {
	var u models.PublicUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("corrupt user: %w", err)
	}

	if u.ID == "" && u.Email == "" {
		return nil, errors.New("user has neither id nor email")
	}

	return &u, nil
}

// Login делает сессию текущей (TrustIssued) и сохраняет оба ключа.
// Токен пишется первым: при сбое записи профиля Initialize увидит
// неполную пару и не восстановит сессию.
func (s *Store) Login(ctx context.Context, token string, user models.PublicUser) error {
	const op = "session.Login"

	if token == "" || (user.ID == "" && user.Email == "") {
		return fmt.Errorf("%s: %w", op, ErrEmptySession)
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.set(Snapshot{Token: token, User: &user, Trust: TrustIssued})

	if err := s.storage.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.Set(ctx, KeyUser, string(raw)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Logout сбрасывает сессию и удаляет оба ключа. Повторный вызов безвреден.
func (s *Store) Logout(ctx context.Context) error {
	const op = "session.Logout"

	s.set(Snapshot{})

	err := errors.Join(
		s.storage.Delete(ctx, KeyToken),
		s.storage.Delete(ctx, KeyUser),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Snapshot возвращает текущее состояние.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cur.clone()
}

// Subscribe вызывает fn после каждого изменения состояния.
// Возвращённая функция отменяет подписку.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// set меняет состояние и уведомляет подписчиков вне блокировки.
func (s *Store) set(next Snapshot) {
	s.mu.Lock()
	s.cur = next
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next.clone())
	}
}

func (s Snapshot) clone() Snapshot {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}

	return s
}
