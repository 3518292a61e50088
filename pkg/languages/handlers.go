package languages

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	languageService *Service
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	language, err := h.languageService.RetrieveLanguage(ctx, RetrieveLanguageOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, language))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListLanguagesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	languages, total, err := h.languageService.ListLanguagesWithTotal(ctx, ListLanguagesOptions{
		Limit:   &params.Limit,
		Offset:  &params.Offset,
		IsoCode: params.IsoCode,
		InUse:   params.InUse,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	response := map[string]any{
		"languages": languages,
		"total":     total,
	}

	return errors.WithStack(c.JSON(http.StatusOK, response))
}
