package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository/repotest"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

type revokedSet map[string]bool

func (r revokedSet) IsRevoked(_ context.Context, id string) (bool, error) {
	return r[id], nil
}

func newAuthApp(t *testing.T, store *repotest.Store, revoked revokedSet, handlers ...fiber.Handler) (*fiber.App, *TokenManager) {
	t.Helper()
	tokens := NewTokenManager("secret", 10)
	mw := NewAuthMiddleware(tokens, store.Users(), revoked, nil)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	chain := append([]fiber.Handler{mw.Handle}, handlers...)
	chain = append(chain, func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(principal.User.Email)
	})
	app.Get("/me", chain...)
	return app, tokens
}

func seedUser(t *testing.T, store *repotest.Store, email string, role domain.Role, status domain.UserStatus) *domain.User {
	t.Helper()
	user := &domain.User{Name: email, Email: email, PasswordHash: "x", Role: role, Status: status}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func doGet(t *testing.T, app *fiber.App, token string) int {
	t.Helper()
	req := httptest.NewRequest("GET", "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthMiddleware(t *testing.T) {
	store := repotest.NewStore()
	active := seedUser(t, store, "active@example.com", domain.RoleUser, domain.UserStatusActive)
	suspended := seedUser(t, store, "suspended@example.com", domain.RoleUser, domain.UserStatusSuspended)
	revoked := revokedSet{}

	app, tokens := newAuthApp(t, store, revoked)

	good, err := tokens.GenerateToken(active.ID, active.Role)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, doGet(t, app, good.Token))

	assert.Equal(t, fiber.StatusUnauthorized, doGet(t, app, ""))
	assert.Equal(t, fiber.StatusUnauthorized, doGet(t, app, "garbage"))

	blocked, err := tokens.GenerateToken(suspended.ID, suspended.Role)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, doGet(t, app, blocked.Token))

	ghost, err := tokens.GenerateToken("00000000-0000-0000-0000-000000000000", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, doGet(t, app, ghost.Token))

	revoked[good.ID] = true
	assert.Equal(t, fiber.StatusUnauthorized, doGet(t, app, good.Token))
}

func TestRoleGuardsUseStoredRole(t *testing.T) {
	store := repotest.NewStore()
	user := seedUser(t, store, "user@example.com", domain.RoleUser, domain.UserStatusActive)
	admin := seedUser(t, store, "admin@example.com", domain.RoleAdmin, domain.UserStatusActive)

	app, tokens := newAuthApp(t, store, nil, RequireRole(domain.RoleAdmin), RequirePermission(MustPolicy(), ActionUserManage))

	// A forged role claim does not matter; the account's role does.
	forged, err := tokens.GenerateToken(user.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, doGet(t, app, forged.Token))

	genuine, err := tokens.GenerateToken(admin.ID, admin.Role)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, doGet(t, app, genuine.Token))
}
