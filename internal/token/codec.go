// Package token подписывает Identity в компактный bearer-токен (JWT HS256)
// и проверяет его обратно. Это единственная граница доверия сервиса:
// состояние сессии на сервере не хранится, всё нужное восстанавливается из токена.
//
// Ошибки проверки различаются внутри (ErrMalformedToken, ErrSignatureMismatch,
// ErrExpired), но все они удовлетворяют errors.Is(err, ErrInvalid), чтобы
// транспорт мог схлопнуть их в единый ответ "unauthorized".
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-session-auth/internal/models"
)

// DefaultIssuer — значение iss по умолчанию.
const DefaultIssuer = "auth-service"

// ErrMissingSecret — кодек создан без секрета (ошибка конфигурации).
var ErrMissingSecret = errors.New("token: signing secret is empty")

// ErrInvalid — общий признак любой ошибки проверки токена.
var ErrInvalid = errors.New("invalid token")

var (
	// ErrMalformedToken — токен не декодируется или его claims некорректны.
	ErrMalformedToken error = &verifyError{msg: "malformed token"}
	// ErrSignatureMismatch — подпись не сходится (подделка или чужой секрет).
	ErrSignatureMismatch error = &verifyError{msg: "token signature mismatch"}
	// ErrExpired — текущее время позже exp.
	ErrExpired error = &verifyError{msg: "token expired"}
)

type verifyError struct {
	msg string
}

func (e *verifyError) Error() string { return e.msg }

// Is связывает конкретный вид ошибки с общим ErrInvalid.
func (e *verifyError) Is(target error) bool { return target == ErrInvalid }

// Claims — результат успешной проверки.
type Claims struct {
	models.Identity
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type identityClaims struct {
	UserID  string `json:"uid"`
	Name    string `json:"name"`
	Surname string `json:"surname,omitempty"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// Codec выпускает и проверяет токены. После создания неизменяем
// и безопасен для конкурентного использования.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// Option настраивает Codec.
type Option func(*Codec)

// WithIssuer задаёт значение iss, которое пишется при подписи и требуется при проверке.
func WithIssuer(issuer string) Option {
	return func(c *Codec) {
		if issuer != "" {
			c.issuer = issuer
		}
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// New создаёт кодек. Пустой секрет — единственная ошибка.
func New(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		issuer: DefaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)

	return c, nil
}

// Sign подписывает claim со сроком жизни ttl и возвращает токен и момент истечения.
func (c *Codec) Sign(claim models.Identity, ttl time.Duration) (string, time.Time, error) {
	const op = "token.Sign"

	now := c.now().UTC()
	exp := now.Add(ttl)

	cl := identityClaims{
		UserID:  claim.ID.String(),
		Name:    claim.Name,
		Surname: claim.Surname,
		Email:   claim.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   claim.ID.String(),
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, cl.ExpiresAt.Time, nil
}

// Verify проверяет подпись и срок действия и возвращает claims.
func (c *Codec) Verify(tokenStr string) (Claims, error) {
	const op = "token.Verify"

	var cl identityClaims
	tok, err := c.parser.ParseWithClaims(tokenStr, &cl, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%s: %w", op, classify(err))
	}

	if !tok.Valid {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	uid, err := uuid.Parse(cl.UserID)
	if err != nil || cl.Subject != cl.UserID {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	return Claims{
		Identity: models.Identity{
			ID:      uid,
			Name:    cl.Name,
			Surname: cl.Surname,
			Email:   cl.Email,
		},
		TokenID:   cl.ID,
		IssuedAt:  cl.IssuedAt.Time,
		ExpiresAt: cl.ExpiresAt.Time,
	}, nil
}

// classify сводит ошибки jwt к трём видам. Подпись в jwt/v5 проверяется
// раньше claims, поэтому подделанный просроченный токен — это ErrSignatureMismatch.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureMismatch
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformedToken
	}
}
