package interceptors

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/go-session-auth/internal/pkg/log"
)

const verifyMethod = "/authsession.v1.TokenVerifier/Verify"

type record struct {
	msg   string
	level slog.Level
	attrs map[string]any
}

// recorder — slog.Handler, запоминающий все записи вместе с атрибутами логгера.
type recorder struct {
	mu      *sync.Mutex
	base    []slog.Attr
	records *[]record
}

func newRecorder() *recorder {
	return &recorder{mu: &sync.Mutex{}, records: &[]record{}}
}

func (h *recorder) Enabled(context.Context, slog.Level) bool { return true }

func (h *recorder) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.base)+r.NumAttrs())
	for _, a := range h.base {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, record{msg: r.Message, level: r.Level, attrs: attrs})
	return nil
}

func (h *recorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	base := append(append([]slog.Attr{}, h.base...), attrs...)
	return &recorder{mu: h.mu, base: base, records: h.records}
}

func (h *recorder) WithGroup(string) slog.Handler { return h }

func (h *recorder) all() []record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]record(nil), *h.records...)
}

func (h *recorder) last(t *testing.T) record {
	t.Helper()
	rs := h.all()
	require.NotEmpty(t, rs)
	return rs[len(rs)-1]
}

func info() *grpc.UnaryServerInfo {
	return &grpc.UnaryServerInfo{FullMethod: verifyMethod}
}

func TestUnaryLoggingInterceptor_RequestIDFromMetadata(t *testing.T) {
	h := newRecorder()

	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(MetadataRequestID, "rid-123"))
	ctx = peer.NewContext(ctx, &peer.Peer{
		Addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50051},
	})

	resp, err := UnaryLoggingInterceptor(slog.New(h))(ctx, "req", info(),
		func(ctx context.Context, _ any) (any, error) {
			log.From(ctx).Debug("inner")
			time.Sleep(2 * time.Millisecond)
			return "ok", nil
		})
	require.NoError(t, err)
	require.Equal(t, "ok", resp)

	rs := h.all()
	require.Len(t, rs, 2)

	inner := rs[0]
	require.Equal(t, "inner", inner.msg)
	require.Equal(t, "rid-123", inner.attrs["request_id"])

	final := rs[1]
	require.Equal(t, "grpc", final.msg)
	require.Equal(t, slog.LevelInfo, final.level)
	require.Equal(t, "rid-123", final.attrs["request_id"])
	require.Equal(t, verifyMethod, final.attrs["method"])
	require.Equal(t, "127.0.0.1:50051", final.attrs["peer"])
	require.Equal(t, "OK", final.attrs["code"])

	d, ok := final.attrs["dur"].(time.Duration)
	require.True(t, ok, "dur attr: %#v", final.attrs["dur"])
	require.Greater(t, d, time.Duration(0))
}

func TestUnaryLoggingInterceptor_GeneratesRequestID_LogsCode(t *testing.T) {
	h := newRecorder()

	_, err := UnaryLoggingInterceptor(slog.New(h))(context.Background(), "req", info(),
		func(context.Context, any) (any, error) {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		})
	require.Error(t, err)

	rec := h.last(t)
	require.Equal(t, "Unauthenticated", rec.attrs["code"])
	require.Equal(t, "-", rec.attrs["peer"])

	rid, _ := rec.attrs["request_id"].(string)
	_, parseErr := uuid.Parse(rid)
	require.NoError(t, parseErr)
}

func TestUnaryLoggingInterceptor_NilLogger(t *testing.T) {
	resp, err := UnaryLoggingInterceptor(nil)(context.Background(), "req", info(),
		func(context.Context, any) (any, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
}

func TestRecover_PanicToInternal(t *testing.T) {
	h := newRecorder()

	resp, err := Recover(slog.New(h))(context.Background(), "req", info(),
		func(context.Context, any) (any, error) { panic("boom") })

	require.Nil(t, resp)
	require.Equal(t, codes.Internal, status.Code(err))
	require.Equal(t, "internal error", status.Convert(err).Message())

	rec := h.last(t)
	require.Equal(t, slog.LevelError, rec.level)
	require.Equal(t, "panic_recovered", rec.msg)
	require.Equal(t, verifyMethod, rec.attrs["method"])
	require.NotEmpty(t, rec.attrs["panic"])

	stack, ok := rec.attrs["stack"].(string)
	require.True(t, ok)
	require.NotEmpty(t, stack)
}

func TestRecover_UsesContextLogger(t *testing.T) {
	base, scoped := newRecorder(), newRecorder()
	ctx := log.Into(context.Background(), slog.New(scoped))

	_, err := Recover(slog.New(base))(ctx, "req", info(),
		func(context.Context, any) (any, error) { panic("boom") })
	require.Error(t, err)

	require.Empty(t, base.all())
	require.Len(t, scoped.all(), 1)
}

func TestRecover_NoPanic_PassThrough(t *testing.T) {
	h := newRecorder()

	resp, err := Recover(slog.New(h))(context.Background(), "req", info(),
		func(context.Context, any) (any, error) { return "ok", nil })

	require.NoError(t, err)
	require.Equal(t, "ok", resp)
	require.Empty(t, h.all())
}

func TestWithTimeout_SetsDeadline(t *testing.T) {
	const d = 40 * time.Millisecond

	start := time.Now()
	_, err := WithTimeout(d)(context.Background(), "req", info(),
		func(ctx context.Context, _ any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, time.Since(start), d)
}

func TestWithTimeout_KeepsClientDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	want, _ := parent.Deadline()

	var got time.Time
	_, err := WithTimeout(time.Second)(parent, "req", info(),
		func(ctx context.Context, _ any) (any, error) {
			got, _ = ctx.Deadline()
			return "ok", nil
		})

	require.NoError(t, err)
	require.WithinDuration(t, want, got, time.Millisecond)
}

func TestWithTimeout_ZeroDuration_PassThrough(t *testing.T) {
	_, err := WithTimeout(0)(context.Background(), "req", info(),
		func(ctx context.Context, _ any) (any, error) {
			_, has := ctx.Deadline()
			require.False(t, has)
			return "ok", nil
		})
	require.NoError(t, err)
}
