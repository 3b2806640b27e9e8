package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository/repotest"
)

type recordingRevoker struct {
	revoked map[string]time.Time
}

func (r *recordingRevoker) RevokeToken(_ context.Context, tokenID string, expiresAt time.Time) error {
	r.revoked[tokenID] = expiresAt
	return nil
}

type capturedReset struct {
	tokens []string
}

func (c *capturedReset) SendPasswordReset(_ context.Context, _ *domain.User, token *domain.PasswordResetToken) error {
	c.tokens = append(c.tokens, token.Token)
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *repotest.Store, *recordingRevoker, *capturedReset) {
	t.Helper()
	store := repotest.NewStore()
	revoker := &recordingRevoker{revoked: map[string]time.Time{}}
	resets := &capturedReset{}
	svc := NewAuthService(config.AuthConfig{
		JWTSecret:               "test-secret",
		AccessTokenTTLMinutes:   15,
		PasswordResetTTLMinutes: 30,
		BcryptCost:              bcrypt.MinCost,
	}, AuthDependencies{
		UserRepo:          store.Users(),
		PasswordResetRepo: store.PasswordResets(),
		Revoker:           revoker,
		ResetNotifier:     resets,
	})
	return svc, store, revoker, resets
}

func TestRegisterAndLogin(t *testing.T) {
	svc, store, _, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Name: "Alice", Email: " Alice@Example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, res.User.Role)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.NotEmpty(t, res.Token.Token)

	claims, err := svc.TokenManager().ParseToken(res.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.Subject)

	_, err = svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "correct-horse"})
	assertCode(t, err, "CONFLICT")

	_, err = svc.Register(ctx, RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "short"})
	assertCode(t, err, "VALIDATION_FAILED")

	_, err = svc.Register(ctx, RegisterInput{Name: "", Email: "", Password: "long-enough"})
	assertCode(t, err, "VALIDATION_FAILED")

	login, err := svc.Login(ctx, "ALICE@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "alice@example.com", "wrong-password")
	assertCode(t, err, "UNAUTHORIZED")

	_, err = svc.Login(ctx, "nobody@example.com", "correct-horse")
	assertCode(t, err, "UNAUTHORIZED")

	user, err := store.Users().GetByID(ctx, res.User.ID)
	require.NoError(t, err)
	user.Status = domain.UserStatusSuspended
	require.NoError(t, store.Users().Update(ctx, user))

	_, err = svc.Login(ctx, "alice@example.com", "correct-horse")
	assertCode(t, err, "FORBIDDEN")
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _, revoker, _ := newAuthFixture(t)
	ctx := context.Background()

	expiry := time.Now().Add(10 * time.Minute)
	require.NoError(t, svc.Logout(ctx, &auth.Principal{TokenID: "jti-1", TokenExpiry: expiry}))
	assert.Equal(t, expiry, revoker.revoked["jti-1"])

	require.NoError(t, svc.Logout(ctx, nil))
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _, _, resets := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "old-password"})
	require.NoError(t, err)

	token, err := svc.RequestPasswordReset(ctx, "unknown@example.com")
	require.NoError(t, err)
	assert.Nil(t, token)
	assert.Empty(t, resets.tokens)

	first, err := svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)
	second, err := svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{first.Token, second.Token}, resets.tokens)

	// A newer request invalidates older tokens.
	err = svc.ConfirmPasswordReset(ctx, first.Token, "new-password")
	assertCode(t, err, "VALIDATION_FAILED")

	err = svc.ConfirmPasswordReset(ctx, second.Token, "tiny")
	assertCode(t, err, "VALIDATION_FAILED")

	require.NoError(t, svc.ConfirmPasswordReset(ctx, second.Token, "new-password"))

	err = svc.ConfirmPasswordReset(ctx, second.Token, "another-password")
	assertCode(t, err, "VALIDATION_FAILED")

	_, err = svc.Login(ctx, "alice@example.com", "new-password")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "alice@example.com", "old-password")
	assertCode(t, err, "UNAUTHORIZED")
}

func TestPasswordResetExpires(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "old-password"})
	require.NoError(t, err)
	token, err := svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(time.Hour) }
	err = svc.ConfirmPasswordReset(ctx, token.Token, "new-password")
	assertCode(t, err, "VALIDATION_FAILED")
}

func TestPasswordResetTokenIsConsumedOnce(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "old-password"})
	require.NoError(t, err)
	token, err := svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.ConfirmPasswordReset(ctx, token.Token, "password-"+string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assertCode(t, err, "VALIDATION_FAILED")
	}
	assert.Equal(t, 1, winners)
}

func TestChangePassword(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "old-password"})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, res.User.ID, "not-it", "new-password")
	assertCode(t, err, "UNAUTHORIZED")

	err = svc.ChangePassword(ctx, res.User.ID, "old-password", "short")
	assertCode(t, err, "VALIDATION_FAILED")

	require.NoError(t, svc.ChangePassword(ctx, res.User.ID, "old-password", "new-password"))
	_, err = svc.Login(ctx, "alice@example.com", "new-password")
	require.NoError(t, err)
}

func TestPasswordsLongerThanBcryptAllowsAreRejected(t *testing.T) {
	svc, _, _, resets := newAuthFixture(t)
	ctx := context.Background()
	long := strings.Repeat("p", 80)
	// 36 runes, 72 bytes: the byte limit is what bcrypt enforces.
	wide := strings.Repeat("é", 36)

	_, err := svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: long})
	assertCode(t, err, "VALIDATION_FAILED")
	_, err = svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: wide + "x"})
	assertCode(t, err, "VALIDATION_FAILED")

	res, err := svc.Register(ctx, RegisterInput{Name: "Alice", Email: "alice@example.com", Password: wide})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, res.User.ID, wide, long)
	assertCode(t, err, "VALIDATION_FAILED")

	_, err = svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Len(t, resets.tokens, 1)
	err = svc.ConfirmPasswordReset(ctx, resets.tokens[0], long)
	assertCode(t, err, "VALIDATION_FAILED")
}
