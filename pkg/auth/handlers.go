package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/openbookcatalog/catalog/pkg/errcodes"
	"github.com/pkg/errors"
)

type handler struct{}

func (h *handler) me(c echo.Context) error {
	user, ok := UserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}
	return errors.WithStack(c.JSON(http.StatusOK, user))
}
