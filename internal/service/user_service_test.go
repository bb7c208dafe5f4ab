package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prephub/contests/internal/domain"
	"github.com/prephub/contests/internal/infrastructure"
)

func testJWTConfig() *infrastructure.JWTConfig {
	return &infrastructure.JWTConfig{
		SecretKey:          "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: time.Hour,
		Issuer:             "contests-test",
	}
}

func newUserServiceAt(clock domain.Clock) *UserService {
	return NewUserService(memUserRepo{newMemStore()}, testJWTConfig(), clock, testTracer, zap.NewNop())
}

func newUserService() *UserService {
	return newUserServiceAt(domain.SystemClock{})
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	user, tokens, err := svc.Register(ctx, &domain.UserCreateRequest{
		Email:    " Alice@Example.com",
		Username: "alice",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, tokens.AccessToken)

	_, _, err = svc.Register(ctx, &domain.UserCreateRequest{Email: "alice@example.com", Username: "again", Password: "whatever1"})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)

	_, _, err = svc.Login(ctx, "alice@example.com", "wrong password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	loggedIn, _, err := svc.Login(ctx, "ALICE@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
}

func TestTokens(t *testing.T) {
	svc := newUserService()
	ctx := context.Background()

	user, tokens, err := svc.Register(ctx, &domain.UserCreateRequest{Email: "bob@example.com", Username: "bob", Password: "hunter22"})
	require.NoError(t, err)

	id, err := svc.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)

	_, err = svc.ValidateAccessToken(tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "refresh tokens are not access tokens")

	refreshed, err := svc.RefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	_, err = svc.RefreshToken(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = svc.ValidateAccessToken("not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAccessTokenExpires(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	svc := newUserServiceAt(clock)
	ctx := context.Background()

	_, tokens, err := svc.Register(ctx, &domain.UserCreateRequest{Email: "dave@example.com", Username: "dave", Password: "hunter22"})
	require.NoError(t, err)

	clock.Set(clock.Now().Add(14 * time.Minute))
	_, err = svc.ValidateAccessToken(tokens.AccessToken)
	require.NoError(t, err)

	clock.Set(clock.Now().Add(2 * time.Minute))
	_, err = svc.ValidateAccessToken(tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	refreshed, err := svc.RefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(refreshed.AccessToken)
	assert.NoError(t, err)
}

func TestTokenFromOtherIssuerRejected(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Issuer = "someone-else"
	other := NewUserService(memUserRepo{newMemStore()}, cfg, domain.SystemClock{}, testTracer, zap.NewNop())
	_, tokens, err := other.Register(context.Background(), &domain.UserCreateRequest{Email: "eve@example.com", Username: "eve", Password: "hunter22"})
	require.NoError(t, err)

	_, err = newUserService().ValidateAccessToken(tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestLoginRejectsUnusableHash(t *testing.T) {
	store := newMemStore()
	repo := memUserRepo{store}
	require.NoError(t, repo.Create(context.Background(), &domain.User{
		ID:           uuid.New(),
		Email:        "organizer@example.com",
		Username:     "organizer",
		PasswordHash: "!",
	}))
	svc := NewUserService(repo, testJWTConfig(), domain.SystemClock{}, testTracer, zap.NewNop())

	_, _, err := svc.Login(context.Background(), "organizer@example.com", "!")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}
