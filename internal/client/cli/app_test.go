package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/pribylovaa/go-session-auth/internal/cache"
	"github.com/pribylovaa/go-session-auth/internal/client/api"
	"github.com/pribylovaa/go-session-auth/internal/client/session"
	"github.com/pribylovaa/go-session-auth/internal/config"
	"github.com/pribylovaa/go-session-auth/internal/password"
	"github.com/pribylovaa/go-session-auth/internal/service"
	"github.com/pribylovaa/go-session-auth/internal/storage/memory"
	"github.com/pribylovaa/go-session-auth/internal/token"
	transport "github.com/pribylovaa/go-session-auth/internal/transport/http"
)

type env struct {
	app   *App
	out   *bytes.Buffer
	store session.Storage
	url   string
}

func newEnv(t *testing.T) *env {
	t.Helper()

	codec, err := token.New([]byte("cli-secret"))
	require.NoError(t, err)

	svc := service.New(memory.New(), codec, config.AuthConfig{TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost})
	svc.SetDenylist(cache.NewMemoryDenylist(nil))

	srv := httptest.NewServer(transport.NewRouter(svc, svc, transport.Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		BasePath: "/api",
	}))
	t.Cleanup(srv.Close)

	st := session.NewMemoryStorage()
	e := &env{out: &bytes.Buffer{}, store: st, url: srv.URL + "/api"}
	e.app = e.newApp(t)
	return e
}

// newApp имитирует новый запуск authctl над тем же хранилищем.
func (e *env) newApp(t *testing.T) *App {
	t.Helper()

	store := session.NewStore(e.store)
	require.NoError(t, store.Initialize(context.Background()))

	app := NewApp(api.New(e.url, nil), store, strings.NewReader(""), e.out)
	app.Password = func() (string, error) { return "Abcdef1!", nil }
	return app
}

func (e *env) run(t *testing.T, args ...string) error {
	t.Helper()
	e.out.Reset()
	return e.app.Run(context.Background(), args)
}

func TestRun_SignupWhoamiMeLogout(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.run(t, "signup", "-name", "Ann", "-surname", "Lee", "-email", "ann@example.com"))
	require.Contains(t, e.out.String(), "logged in as Ann Lee <ann@example.com>")

	e.app = e.newApp(t)
	require.NoError(t, e.run(t, "whoami"))
	require.Contains(t, e.out.String(), "trust local")

	require.NoError(t, e.run(t, "me"))
	require.Contains(t, e.out.String(), "verified by server")

	require.NoError(t, e.run(t, "logout"))
	require.Contains(t, e.out.String(), "logged out")

	require.NoError(t, e.run(t, "whoami"))
	require.Contains(t, e.out.String(), "not logged in")
}

func TestRun_LoginFailureShowsServerMessage(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.run(t, "signup", "-name", "Ann", "-surname", "Lee", "-email", "ann@example.com"))
	require.NoError(t, e.run(t, "logout"))

	e.app.Password = func() (string, error) { return "wrong", nil }
	err := e.run(t, "login", "-email", "ann@example.com")
	require.Error(t, err)
	require.Contains(t, e.out.String(), "Invalid email or password")
	require.False(t, e.app.Store.Snapshot().Authenticated())
}

func TestRun_LoginNetworkFailureShowsFallback(t *testing.T) {
	e := newEnv(t)
	e.app.API = api.New("http://127.0.0.1:1/api", nil)

	err := e.run(t, "login", "-email", "ann@example.com")
	require.Error(t, err)
	require.Contains(t, e.out.String(), api.LoginFallback)
}

func TestRun_MeWithRevokedTokenClearsSession(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.run(t, "signup", "-name", "Ann", "-surname", "Lee", "-email", "ann@example.com"))

	tok := e.app.Store.Snapshot().Token
	require.NoError(t, e.app.API.Logout(context.Background(), tok))

	require.NoError(t, e.run(t, "me"))
	require.Contains(t, e.out.String(), "session expired")
	require.False(t, e.app.Store.Snapshot().Authenticated())
}

func TestRun_Usage(t *testing.T) {
	e := newEnv(t)

	require.ErrorIs(t, e.run(t), ErrUsage)
	require.ErrorIs(t, e.run(t, "bogus"), ErrUsage)
	require.ErrorIs(t, e.run(t, "login"), ErrUsage)
	require.ErrorIs(t, e.run(t, "signup", "-email", "a@b.com"), ErrUsage)
	require.ErrorIs(t, e.run(t, "login", "-nope"), ErrUsage)
	require.NoError(t, e.run(t, "help"))
	require.Contains(t, e.out.String(), "commands:")
}

func TestRun_MeWhenAnonymous(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.run(t, "me"))
	require.Contains(t, e.out.String(), "not logged in")
}

func TestPromptPassword_FromPipe(t *testing.T) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		t.Skip("stdin is a terminal")
	}

	out := &bytes.Buffer{}
	app := NewApp(nil, nil, strings.NewReader("s3cret\nrest\n"), out)

	pw, err := app.Password()
	require.NoError(t, err)
	require.Equal(t, "s3cret", pw)
	require.Equal(t, "Password: ", out.String())
}

func TestRun_SignupWeakPasswordNotSubmitted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	out := &bytes.Buffer{}
	store := session.NewStore(session.NewMemoryStorage())
	require.NoError(t, store.Initialize(context.Background()))

	app := NewApp(api.New(srv.URL+"/api", nil), store, strings.NewReader(""), out)
	app.Password = func() (string, error) { return "alllowercase1", nil }

	err := app.Run(context.Background(), []string{"signup", "-name", "Ann", "-surname", "Lee", "-email", "ann@example.com"})
	require.ErrorIs(t, err, password.ErrWeakPassword)
	require.Zero(t, hits.Load())
	require.False(t, store.Snapshot().Authenticated())

	got := out.String()
	require.Contains(t, got, "[x] "+password.FacetLower.Label())
	require.Contains(t, got, "[x] "+password.FacetDigit.Label())
	require.Contains(t, got, "[ ] "+password.FacetUpper.Label())
	require.Contains(t, got, "[ ] "+password.FacetSpecial.Label())
	require.Contains(t, got, "Password does not meet the requirements")
}
