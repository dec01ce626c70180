package settings

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/basic", h.getForm(FormBasic))
	g.PUT("/basic", h.updateForm(FormBasic))
	g.GET("/show", h.getForm(FormShow))
	g.PUT("/show", h.updateForm(FormShow))
}

// getForm returns the values of one settings form
// GET /api/v1/settings/{basic,show}
func (h *Handlers) getForm(form Form) echo.HandlerFunc {
	return func(c echo.Context) error {
		values, err := h.service.Form(c.Request().Context(), form)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, values)
	}
}

// updateForm saves the submitted values of one settings form
// PUT /api/v1/settings/{basic,show}
func (h *Handlers) updateForm(form Form) echo.HandlerFunc {
	return func(c echo.Context) error {
		var body map[string]any
		if err := c.Bind(&body); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		values := make(map[string]string, len(body))
		for key, v := range body {
			if key == formToken {
				continue
			}
			if !form.Has(key) {
				return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown %s setting %q", form, key))
			}
			values[key] = stringify(v)
		}

		if err := h.service.BatchUpdate(c.Request().Context(), values); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		updated, err := h.service.Form(c.Request().Context(), form)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(t)
	}
}
