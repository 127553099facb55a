package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/go-session-auth/internal/metrics"
	"github.com/pribylovaa/go-session-auth/internal/pkg/log"
	"github.com/pribylovaa/go-session-auth/internal/token"
)

// VerifyToken проверяет bearer-токен без обращения к хранилищу пользователей.
// Любая неудача — ErrInvalidToken; конкретный вид (token.ErrExpired и т.п.)
// остаётся в цепочке для логов и тестов.
func (s *Service) VerifyToken(ctx context.Context, tok string) (token.Claims, error) {
	const op = "service.verify.VerifyToken"

	lg := log.From(ctx)

	claims, err := s.codec.Verify(tok)
	if err != nil {
		reason := verifyReason(err)
		s.metrics.Verified(reason)
		lg.Debug("token_verify_failed",
			slog.String("op", op),
			slog.String("reason", reason),
		)
		return token.Claims{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			s.metrics.Verified(metrics.VerifyError)
			lg.Error("denylist_lookup_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return token.Claims{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
		}

		if revoked {
			s.metrics.Verified(metrics.VerifyRevoked)
			lg.Debug("token_verify_failed",
				slog.String("op", op),
				slog.String("reason", metrics.VerifyRevoked),
				slog.String("user_id", claims.ID.String()),
			)
			return token.Claims{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, ErrTokenRevoked)
		}
	}

	s.metrics.Verified(metrics.VerifyOK)

	return claims, nil
}

// Logout отзывает токен до естественного истечения, если включён denylist.
// Без denylist — no-op: клиент просто забывает токен.
func (s *Service) Logout(ctx context.Context, claims token.Claims) error {
	const op = "service.verify.Logout"

	lg := log.From(ctx)

	if s.denylist == nil {
		lg.Debug("logout_without_revocation", slog.String("user_id", claims.ID.String()))
		return nil
	}

	ttl := time.Until(claims.ExpiresAt)
	if err := s.denylist.Revoke(ctx, claims.TokenID, ttl); err != nil {
		lg.Error("token_revoke_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Revoked()
	lg.Info("token_revoked", slog.String("user_id", claims.ID.String()))

	return nil
}

// verifyReason сводит ошибку кодека к label метрики.
func verifyReason(err error) string {
	switch {
	case errors.Is(err, token.ErrExpired):
		return metrics.VerifyExpired
	case errors.Is(err, token.ErrSignatureMismatch):
		return metrics.VerifySignature
	case errors.Is(err, token.ErrMalformedToken):
		return metrics.VerifyMalformed
	default:
		return metrics.VerifyError
	}
}
