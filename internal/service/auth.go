package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-session-auth/internal/models"
	"github.com/pribylovaa/go-session-auth/internal/password"
	"github.com/pribylovaa/go-session-auth/internal/pkg/log"
	"github.com/pribylovaa/go-session-auth/internal/pkg/redact"
	"github.com/pribylovaa/go-session-auth/internal/storage"
)

// SignupInput — данные регистрации. Живут только в пределах вызова.
type SignupInput struct {
	Name     string
	Surname  string
	Email    string
	Password string
}

// Signup регистрирует пользователя и выпускает токен.
// Политика пароля проверяется здесь независимо от клиента.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*models.AuthResult, error) {
	const op = "service.auth.Signup"

	res, err := s.signup(ctx, in)
	s.metrics.Issued("signup", outcome(err))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (s *Service) signup(ctx context.Context, in SignupInput) (*models.AuthResult, error) {
	lg := log.From(ctx)

	name := strings.TrimSpace(in.Name)
	surname := strings.TrimSpace(in.Surname)
	if name == "" || surname == "" {
		return nil, ErrInvalidInput
	}

	normEmail, err := validateEmail(in.Email)
	if err != nil {
		return nil, err
	}

	if err := password.Validate(in.Password); err != nil {
		return nil, err
	}

	_, err = s.storage.UserByEmail(ctx, normEmail)
	if err == nil {
		lg.Info("signup_duplicate_email", slog.String("email", redact.Email(normEmail)))
		return nil, ErrDuplicateAccount
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := s.hashPassword(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Name:         name,
		Surname:      surname,
		Email:        normEmail,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrDuplicateAccount
		}

		return nil, err
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	lg.Info("user_signed_up",
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(normEmail)),
	)

	return res, nil
}

// Login выполняет вход по email и паролю. Неизвестный email, пустой или
// неверный пароль дают одну и ту же ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, pass string) (*models.AuthResult, error) {
	const op = "service.auth.Login"

	res, err := s.login(ctx, email, pass)
	s.metrics.Issued("login", outcome(err))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (s *Service) login(ctx context.Context, email, pass string) (*models.AuthResult, error) {
	lg := log.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil || pass == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.storage.UserByEmail(ctx, normEmail)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		// Время ответа не должно выдавать, существует ли email.
		if err := s.checkPassword(ctx, s.dummyHash(), pass); err != nil && !errors.Is(err, ErrInvalidCredentials) {
			return nil, err
		}

		lg.Info("login_failed", slog.String("email", redact.Email(normEmail)))
		return nil, ErrInvalidCredentials
	}

	if err := s.checkPassword(ctx, user.PasswordHash, pass); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			lg.Info("login_failed", slog.String("email", redact.Email(normEmail)))
		}

		return nil, err
	}

	res, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	lg.Info("user_logged_in", slog.String("user_id", user.ID.String()))

	return res, nil
}

// issue подписывает claim пользователя и собирает ответ.
func (s *Service) issue(user *models.User) (*models.AuthResult, error) {
	tok, exp, err := s.codec.Sign(user.Identity(), s.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	return &models.AuthResult{
		Token:     tok,
		ExpiresAt: exp,
		User:      user.Public(),
	}, nil
}

// hashPassword хэширует пароль с помощью bcrypt.
func (s *Service) hashPassword(ctx context.Context, pass string) (string, error) {
	const op = "service.auth.hashPassword"

	if err := ctx.Err(); err != nil {
		return "", err
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(pass), s.bcryptCost())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// checkPassword сравнивает пароль с хэшем; несовпадение — ErrInvalidCredentials.
func (s *Service) checkPassword(ctx context.Context, hash, pass string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) != nil {
		return ErrInvalidCredentials
	}

	return nil
}

func (s *Service) bcryptCost() int {
	if s.cfg.BcryptCost == 0 {
		return bcrypt.DefaultCost
	}

	return s.cfg.BcryptCost
}

// dummyHashes — по одному фиктивному хэшу на стоимость bcrypt.
var dummyHashes sync.Map

// dummyHash — хэш с той же стоимостью, что и у настоящих паролей.
func (s *Service) dummyHash() string {
	cost := s.bcryptCost()
	if h, ok := dummyHashes.Load(cost); ok {
		return h.(string)
	}

	b, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	h, _ := dummyHashes.LoadOrStore(cost, string(b))

	return h.(string)
}

// validateEmail проверяет базовый формат email, обрезает пробелы и приводит к нижнему регистру.
func validateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(email), nil
}

// outcome превращает ошибку выпуска в label метрики.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrDuplicateAccount):
		return "duplicate_account"
	case errors.Is(err, ErrWeakPassword):
		return "weak_password"
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}
