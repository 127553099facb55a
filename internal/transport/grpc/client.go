package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/pribylovaa/go-session-auth/internal/interceptors"
	"github.com/pribylovaa/go-session-auth/internal/models"
	"github.com/pribylovaa/go-session-auth/internal/service"
	"github.com/pribylovaa/go-session-auth/internal/token"
	"github.com/pribylovaa/go-session-auth/internal/transport/http/middleware"
)

// VerifierClient — удалённая реализация middleware.Verifier:
// шлюз другого сервиса проверяет токены через authsession.v1.TokenVerifier.
type VerifierClient struct {
	cc grpc.ClientConnInterface
}

var _ middleware.Verifier = (*VerifierClient)(nil)

func NewVerifierClient(cc grpc.ClientConnInterface) *VerifierClient {
	return &VerifierClient{cc: cc}
}

// Dial открывает соединение без TLS (внутренняя сеть) с клиентскими
// интерсепторами: request id из HTTP-контекста -> таймаут -> логирование.
func Dial(addr string, log *slog.Logger, timeout time.Duration, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	const op = "grpc.Dial"

	if addr == "" {
		return nil, fmt.Errorf("%s: empty verifier addr", op)
	}

	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(
			interceptors.ClientWithRequestID(middleware.RequestIDFrom),
			interceptors.ClientWithTimeout(timeout),
			interceptors.ClientUnaryLoggingInterceptor(log),
		),
	}

	cc, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cc, nil
}

// VerifyToken вызывает Verify. codes.Unauthenticated превращается
// в service.ErrInvalidToken, прочие коды возвращаются как есть (обёрнутыми).
func (c *VerifierClient) VerifyToken(ctx context.Context, tok string) (token.Claims, error) {
	const op = "grpc.VerifierClient.VerifyToken"

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, VerifyMethod, wrapperspb.String(tok), out); err != nil {
		if status.Code(err) == codes.Unauthenticated {
			return token.Claims{}, fmt.Errorf("%s: %w", op, service.ErrInvalidToken)
		}

		return token.Claims{}, fmt.Errorf("%s: %w", op, err)
	}

	claims, err := claimsFromStruct(out)
	if err != nil {
		return token.Claims{}, fmt.Errorf("%s: %w: %w", op, service.ErrInvalidToken, err)
	}

	return claims, nil
}

func claimsFromStruct(s *structpb.Struct) (token.Claims, error) {
	f := s.GetFields()

	id, err := uuid.Parse(f[fieldUserID].GetStringValue())
	if err != nil {
		return token.Claims{}, fmt.Errorf("bad %s: %w", fieldUserID, err)
	}

	return token.Claims{
		Identity: models.Identity{
			ID:      id,
			Name:    f[fieldName].GetStringValue(),
			Surname: f[fieldSurname].GetStringValue(),
			Email:   f[fieldEmail].GetStringValue(),
		},
		TokenID:   f[fieldTokenID].GetStringValue(),
		IssuedAt:  time.Unix(int64(f[fieldIssuedAt].GetNumberValue()), 0).UTC(),
		ExpiresAt: time.Unix(int64(f[fieldExpiresAt].GetNumberValue()), 0).UTC(),
	}, nil
}
