package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	golibLogger "github.com/robinjoseph08/golib/logger"
)

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{
		authService: authService,
	}
}

// Authenticate requires a valid bearer token, links the user and stores it
// in the context under "user".
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := m.userFromRequest(c)
		if err != nil {
			return err
		}
		if user == nil {
			return errcodes.Unauthorized("Authentication required")
		}

		c.Set("user", user)
		return next(c)
	}
}

// AuthenticateOptional links the user when a valid token is present and
// carries on anonymously otherwise.
func (m *Middleware) AuthenticateOptional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := m.userFromRequest(c)
		if err != nil {
			logger.FromEchoContext(c).Warn("ignoring invalid token", golibLogger.Data{"error": err.Error()})
		}
		if user != nil {
			c.Set("user", user)
		}
		return next(c)
	}
}

// RequireModerator must be used after Authenticate.
func (m *Middleware) RequireModerator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := UserFromContext(c)
		if !ok {
			return errcodes.Unauthorized("Authentication required")
		}
		if !user.HasRole(models.RoleModerator) {
			return errcodes.Forbidden("This action")
		}
		return next(c)
	}
}

// UserFromContext returns the user stored by the middleware.
func UserFromContext(c echo.Context) (*models.User, bool) {
	user, ok := c.Get("user").(*models.User)
	return user, ok && user != nil
}

func (m *Middleware) userFromRequest(c echo.Context) (*models.User, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return nil, nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, errcodes.Unauthorized("Invalid authorization header")
	}

	claims, err := m.authService.ValidateToken(token)
	if err != nil {
		return nil, errcodes.Unauthorized("Invalid or expired token")
	}

	user, err := m.authService.LinkUser(c.Request().Context(), claims)
	if err != nil {
		return nil, err
	}
	return user, nil
}
