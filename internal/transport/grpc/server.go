// Package grpc отдаёт проверку bearer-токенов другим сервисам по gRPC.
//
// Сервис authsession.v1.TokenVerifier описан вручную через grpc.ServiceDesc
// на well-known типах: запрос wrapperspb.StringValue (токен), ответ
// structpb.Struct (claims). Маппинг ошибок сервиса:
//   - пустой токен -> codes.Unauthenticated "missing credentials";
//   - ErrInvalidToken (любой вид, включая отзыв) -> codes.Unauthenticated "invalid token";
//   - отмена / дедлайн -> codes.Canceled / codes.DeadlineExceeded;
//   - прочее -> codes.Internal без деталей.
package grpc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/pribylovaa/go-session-auth/internal/service"
	"github.com/pribylovaa/go-session-auth/internal/transport/http/middleware"
)

const (
	ServiceName  = "authsession.v1.TokenVerifier"
	VerifyMethod = "/" + ServiceName + "/Verify"
)

// Поля ответа Verify.
const (
	fieldUserID    = "user_id"
	fieldName      = "name"
	fieldSurname   = "surname"
	fieldEmail     = "email"
	fieldTokenID   = "jti"
	fieldIssuedAt  = "iat"
	fieldExpiresAt = "exp"
)

// TokenVerifierServer — серверная сторона authsession.v1.TokenVerifier.
type TokenVerifierServer interface {
	Verify(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

// ServiceDesc — описание сервиса для grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TokenVerifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Verify", Handler: verifyHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authsession/v1/verifier.proto",
}

func verifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(TokenVerifierServer).Verify(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: VerifyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenVerifierServer).Verify(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

// Register регистрирует VerifierServer на gRPC-сервере.
func Register(s grpc.ServiceRegistrar, srv TokenVerifierServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// VerifierServer проверяет токены через локальный Verifier (service.Service).
type VerifierServer struct {
	verifier middleware.Verifier
}

func NewVerifierServer(v middleware.Verifier) *VerifierServer {
	return &VerifierServer{verifier: v}
}

// Verify возвращает claims токена или codes.Unauthenticated.
// Токен передаётся как есть, без обрезки пробелов, как и в HTTP-шлюзе.
func (s *VerifierServer) Verify(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	tok := req.GetValue()
	if strings.TrimSpace(tok) == "" {
		return nil, status.Error(codes.Unauthenticated, "missing credentials")
	}

	claims, err := s.verifier.VerifyToken(ctx, tok)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken):
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		case errors.Is(err, context.Canceled):
			return nil, status.Error(codes.Canceled, "canceled")
		case errors.Is(err, context.DeadlineExceeded):
			return nil, status.Error(codes.DeadlineExceeded, "deadline exceeded")
		default:
			return nil, status.Error(codes.Internal, "internal error")
		}
	}

	out, err := structpb.NewStruct(map[string]any{
		fieldUserID:    claims.ID.String(),
		fieldName:      claims.Name,
		fieldSurname:   claims.Surname,
		fieldEmail:     claims.Email,
		fieldTokenID:   claims.TokenID,
		fieldIssuedAt:  float64(claims.IssuedAt.Unix()),
		fieldExpiresAt: float64(claims.ExpiresAt.Unix()),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}

	return out, nil
}
