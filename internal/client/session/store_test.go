package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-session-auth/internal/models"
)

func sampleUser() models.PublicUser {
	return models.PublicUser{ID: "6f1c", Name: "Ann", Surname: "Lee", Email: "ann@example.com"}
}

// failingStorage отвечает ошибкой на любую операцию.
type failingStorage struct{ err error }

func (f failingStorage) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingStorage) Set(context.Context, string, string) error         { return f.err }
func (f failingStorage) Delete(context.Context, string) error              { return f.err }

func TestNewStore_Loading(t *testing.T) {
	s := NewStore(NewMemoryStorage())

	snap := s.Snapshot()
	require.True(t, snap.Loading)
	require.False(t, snap.Authenticated())
}

func TestInitialize_Empty(t *testing.T) {
	s := NewStore(NewMemoryStorage())
	require.NoError(t, s.Initialize(context.Background()))

	snap := s.Snapshot()
	require.False(t, snap.Loading)
	require.False(t, snap.Authenticated())
	require.Equal(t, TrustNone, snap.Trust)
}

func TestInitialize_RestoresStoredSession(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	require.NoError(t, st.Set(ctx, KeyToken, "tok"))
	require.NoError(t, st.Set(ctx, KeyUser, `{"id":"6f1c","name":"Ann","surname":"Lee","email":"ann@example.com"}`))

	s := NewStore(st)
	require.NoError(t, s.Initialize(ctx))

	snap := s.Snapshot()
	require.False(t, snap.Loading)
	require.Equal(t, "tok", snap.Token)
	require.Equal(t, sampleUser(), *snap.User)
	require.Equal(t, TrustLocal, snap.Trust)
}

func TestInitialize_RejectsIncompleteOrCorrupt(t *testing.T) {
	cases := map[string]map[string]string{
		"token only":        {KeyToken: "tok"},
		"user only":         {KeyUser: `{"id":"1"}`},
		"corrupt user json": {KeyToken: "tok", KeyUser: `{"id":`},
		"user not object":   {KeyToken: "tok", KeyUser: `"ann"`},
		"user without id":   {KeyToken: "tok", KeyUser: `{"name":"Ann"}`},
		"blank token":       {KeyToken: "  ", KeyUser: `{"id":"1"}`},
	}

	for name, kv := range cases {
		kv := kv
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := NewMemoryStorage()
			for k, v := range kv {
				require.NoError(t, st.Set(ctx, k, v))
			}

			s := NewStore(st)
			require.NoError(t, s.Initialize(ctx))

			snap := s.Snapshot()
			require.False(t, snap.Loading)
			require.False(t, snap.Authenticated())
			require.Empty(t, snap.Token)
		})
	}
}

func TestInitialize_StorageError_ClearsLoading(t *testing.T) {
	boom := errors.New("disk gone")
	s := NewStore(failingStorage{err: boom})

	err := s.Initialize(context.Background())
	require.ErrorIs(t, err, boom)

	snap := s.Snapshot()
	require.False(t, snap.Loading)
	require.False(t, snap.Authenticated())
}

func TestLogin_PersistsBothKeys(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	s := NewStore(st)

	require.NoError(t, s.Login(ctx, "tok", sampleUser()))

	snap := s.Snapshot()
	require.Equal(t, TrustIssued, snap.Trust)
	require.Equal(t, "tok", snap.Token)

	tok, ok, err := st.Get(ctx, KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok", tok)

	raw, ok, err := st.Get(ctx, KeyUser)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"id":"6f1c","name":"Ann","surname":"Lee","email":"ann@example.com"}`, raw)
}

func TestLogin_RejectsEmpty(t *testing.T) {
	s := NewStore(NewMemoryStorage())

	require.ErrorIs(t, s.Login(context.Background(), "", sampleUser()), ErrEmptySession)
	require.ErrorIs(t, s.Login(context.Background(), "tok", models.PublicUser{Name: "x"}), ErrEmptySession)
	require.True(t, s.Snapshot().Loading)
}

func TestLogout_ClearsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStorage()
	s := NewStore(st)
	require.NoError(t, s.Login(ctx, "tok", sampleUser()))

	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Logout(ctx))

	snap := s.Snapshot()
	require.False(t, snap.Authenticated())
	require.Empty(t, snap.Token)

	for _, k := range []string{KeyToken, KeyUser} {
		_, ok, err := st.Get(ctx, k)
		require.NoError(t, err)
		require.False(t, ok, k)
	}

	fresh := NewStore(st)
	require.NoError(t, fresh.Initialize(ctx))
	require.False(t, fresh.Snapshot().Authenticated())
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := NewStore(NewMemoryStorage())
	require.NoError(t, s.Login(context.Background(), "tok", sampleUser()))

	snap := s.Snapshot()
	snap.User.Name = "Mallory"

	require.Equal(t, "Ann", s.Snapshot().User.Name)
}

func TestSubscribe_NotifiesUntilCanceled(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryStorage())

	var (
		mu   sync.Mutex
		seen []Snapshot
	)
	cancel := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Login(ctx, "tok", sampleUser()))
	cancel()
	cancel()
	require.NoError(t, s.Logout(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	require.False(t, seen[0].Loading)
	require.False(t, seen[0].Authenticated())
	require.Equal(t, TrustIssued, seen[1].Trust)
}

func TestSubscribe_CallbackMayReadStore(t *testing.T) {
	s := NewStore(NewMemoryStorage())

	var got Snapshot
	s.Subscribe(func(Snapshot) { got = s.Snapshot() })

	require.NoError(t, s.Login(context.Background(), "tok", sampleUser()))
	require.Equal(t, "tok", got.Token)
}

func TestSQLiteStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	st, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	s := NewStore(st)
	require.NoError(t, s.Login(ctx, "tok", sampleUser()))
	require.NoError(t, st.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	restored := NewStore(reopened)
	require.NoError(t, restored.Initialize(ctx))

	snap := restored.Snapshot()
	require.Equal(t, "tok", snap.Token)
	require.Equal(t, sampleUser(), *snap.User)
	require.Equal(t, TrustLocal, snap.Trust)

	require.NoError(t, restored.Logout(ctx))
	_, ok, err := reopened.Get(ctx, KeyToken)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteStorage_Upsert(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Set(ctx, "k", "old"))
	require.NoError(t, st.Set(ctx, "k", "new"))

	v, ok, err := st.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new", v)

	require.NoError(t, st.Delete(ctx, "absent"))
}

func TestMemoryStorage_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := NewMemoryStorage()
	_, _, err := st.Get(ctx, KeyToken)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, st.Set(ctx, KeyToken, "x"), context.Canceled)
	require.ErrorIs(t, st.Delete(ctx, KeyToken), context.Canceled)
}
