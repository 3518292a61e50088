package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/migrations"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupMiddlewareDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, token string) (echo.Context, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})(c)
	return c, err
}

func TestAuthenticate_LinksUser(t *testing.T) {
	t.Parallel()

	db := setupMiddlewareDB(t)
	authService := NewService(db, "test-secret")
	middleware := NewMiddleware(authService)
	ctx := context.Background()

	token, err := authService.GenerateToken(&models.User{
		ID:       "bridge-user-1",
		Username: "librarian@example.org",
		Email:    pointerutil.String("librarian@example.org"),
		Roles:    []string{models.RoleModerator},
	})
	require.NoError(t, err)

	c, err := runMiddleware(t, middleware.Authenticate, token)
	require.NoError(t, err)

	user, ok := UserFromContext(c)
	require.True(t, ok)
	assert.Equal(t, "bridge-user-1", user.ID)
	assert.True(t, user.HasRole(models.RoleModerator))

	stored := &models.User{}
	require.NoError(t, db.NewSelect().Model(stored).Where("u.id = ?", "bridge-user-1").Scan(ctx))
	assert.Equal(t, "librarian@example.org", stored.Username)

	// A second request with a renamed identity updates the same row.
	token, err = authService.GenerateToken(&models.User{ID: "bridge-user-1", Username: "renamed"})
	require.NoError(t, err)
	_, err = runMiddleware(t, middleware.Authenticate, token)
	require.NoError(t, err)

	count, err := db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, db.NewSelect().Model(stored).Where("u.id = ?", "bridge-user-1").Scan(ctx))
	assert.Equal(t, "renamed", stored.Username)
}

func TestAuthenticate_RejectsMissingAndBadTokens(t *testing.T) {
	t.Parallel()

	db := setupMiddlewareDB(t)
	authService := NewService(db, "test-secret")
	middleware := NewMiddleware(authService)

	_, err := runMiddleware(t, middleware.Authenticate, "")
	assert.ErrorIs(t, err, errcodes.Unauthorized("Authentication required"))

	other := NewService(db, "other-secret")
	token, err := other.GenerateToken(&models.User{ID: "u", Username: "u"})
	require.NoError(t, err)
	_, err = runMiddleware(t, middleware.Authenticate, token)
	assert.ErrorIs(t, err, errcodes.Unauthorized("Invalid or expired token"))
}

func TestValidateToken_Expired(t *testing.T) {
	t.Parallel()

	db := setupMiddlewareDB(t)
	authService := NewService(db, "test-secret")

	claims := JWTClaims{
		Username: "u",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = authService.ValidateToken(signed)
	assert.Error(t, err)
}

func TestAuthenticateOptional(t *testing.T) {
	t.Parallel()

	db := setupMiddlewareDB(t)
	middleware := NewMiddleware(NewService(db, "test-secret"))

	c, err := runMiddleware(t, middleware.AuthenticateOptional, "")
	require.NoError(t, err)
	_, ok := UserFromContext(c)
	assert.False(t, ok)

	c, err = runMiddleware(t, middleware.AuthenticateOptional, "garbage")
	require.NoError(t, err)
	_, ok = UserFromContext(c)
	assert.False(t, ok)
}

func TestRequireModerator(t *testing.T) {
	t.Parallel()

	db := setupMiddlewareDB(t)
	authService := NewService(db, "test-secret")
	middleware := NewMiddleware(authService)
	chain := func(next echo.HandlerFunc) echo.HandlerFunc {
		return middleware.Authenticate(middleware.RequireModerator(next))
	}

	uploader, err := authService.GenerateToken(&models.User{ID: "up", Username: "uploader"})
	require.NoError(t, err)
	_, err = runMiddleware(t, chain, uploader)
	assert.ErrorIs(t, err, errcodes.Forbidden("This action"))

	moderator, err := authService.GenerateToken(&models.User{ID: "mod", Username: "mod", Roles: []string{models.RoleModerator}})
	require.NoError(t, err)
	_, err = runMiddleware(t, chain, moderator)
	assert.NoError(t, err)
}
