package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/verdantlabs/chat-admin/internal/config"
	"github.com/verdantlabs/chat-admin/internal/store"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	_, err := VerifyPassword("pw", "not-an-argon-hash")
	require.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	tm, err := NewTokenManager("secret", 15*time.Minute, 24*time.Hour, "chat-admin")
	require.NoError(t, err)

	userID := uuid.New()
	pair, err := tm.Generate(userID, "admin@example.com")
	require.NoError(t, err)

	got, err := tm.ValidateAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, userID, got)

	got, err = tm.ValidateRefresh(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, userID, got)
}

func TestTokenTypeConfusionRejected(t *testing.T) {
	tm, err := NewTokenManager("secret", 15*time.Minute, 24*time.Hour, "chat-admin")
	require.NoError(t, err)

	pair, err := tm.Generate(uuid.New(), "admin@example.com")
	require.NoError(t, err)

	_, err = tm.ValidateAccess(pair.RefreshToken)
	require.Error(t, err)
	_, err = tm.ValidateRefresh(pair.AccessToken)
	require.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	tm, err := NewTokenManager("secret", time.Minute, time.Hour, "chat-admin")
	require.NoError(t, err)
	tm.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	pair, err := tm.Generate(uuid.New(), "admin@example.com")
	require.NoError(t, err)

	_, err = tm.ValidateAccess(pair.AccessToken)
	require.Error(t, err)
}

type fakeUserStore struct {
	byEmail map[string]store.User
	byID    map[uuid.UUID]store.User
	logins  int
	created []store.CreateUserParams
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: make(map[string]store.User),
		byID:    make(map[uuid.UUID]store.User),
	}
}

func (f *fakeUserStore) addUser(email, password, role string) store.User {
	hash, err := HashPassword(password)
	if err != nil {
		panic(err)
	}
	user := store.User{ID: uuid.New(), Email: email, PasswordHash: hash, Role: role}
	f.byEmail[email] = user
	f.byID[user.ID] = user
	return user
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return store.User{}, pgx.ErrNoRows
}

func (f *fakeUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return store.User{}, pgx.ErrNoRows
}

func (f *fakeUserStore) UpdateUserLastLogin(ctx context.Context, id uuid.UUID) error {
	f.logins++
	return nil
}

func (f *fakeUserStore) CreateUser(ctx context.Context, params store.CreateUserParams) (store.User, error) {
	if _, ok := f.byEmail[params.Email]; ok {
		return store.User{}, store.ErrDuplicate
	}
	f.created = append(f.created, params)
	user := store.User{ID: uuid.New(), Email: params.Email, PasswordHash: params.PasswordHash, Role: params.Role}
	f.byEmail[params.Email] = user
	f.byID[user.ID] = user
	return user, nil
}

func sessionConfig() config.SessionConfig {
	return config.SessionConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func TestAuthenticateLocal(t *testing.T) {
	fs := newFakeUserStore()
	user := fs.addUser("admin@example.com", "open sesame", store.RoleAdmin)

	svc, err := NewService(sessionConfig(), fs)
	require.NoError(t, err)

	pair, got, err := svc.AuthenticateLocal(context.Background(), "admin@example.com", "open sesame")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.NotEmpty(t, pair.AccessToken)
	require.Equal(t, 1, fs.logins)

	_, _, err = svc.AuthenticateLocal(context.Background(), "admin@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.AuthenticateLocal(context.Background(), "nobody@example.com", "open sesame")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	fs := newFakeUserStore()
	user := fs.addUser("admin@example.com", "open sesame", store.RoleAdmin)

	svc, err := NewService(sessionConfig(), fs)
	require.NoError(t, err)

	pair, _, err := svc.AuthenticateLocal(context.Background(), "admin@example.com", "open sesame")
	require.NoError(t, err)

	next, got, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.NotEmpty(t, next.AccessToken)

	_, _, err = svc.Refresh(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorizeAccessToken(t *testing.T) {
	fs := newFakeUserStore()
	user := fs.addUser("admin@example.com", "open sesame", store.RoleAdmin)

	svc, err := NewService(sessionConfig(), fs)
	require.NoError(t, err)

	pair, _, err := svc.AuthenticateLocal(context.Background(), "admin@example.com", "open sesame")
	require.NoError(t, err)

	got, err := svc.AuthorizeAccessToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.True(t, got.IsAdmin())

	_, err = svc.AuthorizeAccessToken(context.Background(), "garbage")
	require.Error(t, err)
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	fs := newFakeUserStore()
	svc, err := NewService(sessionConfig(), fs)
	require.NoError(t, err)

	cfg := config.BootstrapConfig{AdminEmail: "root@example.com", AdminPassword: "bootstrap-pw"}
	require.NoError(t, svc.EnsureBootstrapAdmin(context.Background(), cfg))
	require.Len(t, fs.created, 1)
	require.Equal(t, store.RoleAdmin, fs.created[0].Role)

	// Second run is a no-op.
	require.NoError(t, svc.EnsureBootstrapAdmin(context.Background(), cfg))
	require.Len(t, fs.created, 1)

	// Empty email disables bootstrap.
	require.NoError(t, svc.EnsureBootstrapAdmin(context.Background(), config.BootstrapConfig{}))
}
