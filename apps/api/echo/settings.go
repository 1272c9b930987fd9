package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/admission"
)

type settingsApi struct {
	svc *admission.Service
}

func registerSettingsAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *admission.Service) {
	api := settingsApi{svc: svc}

	sg := g.Group("/settings", jwt)
	sg.GET("/fields", api.fields)
	sg.GET("/sessions", api.sessions)
}

// Handlers

// fields returns the explicitly configured form fields; unlisted fields are visible.
func (api *settingsApi) fields(ctx echo.Context) error {
	fields, err := api.svc.FieldVisibility(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting field visibility")
	}
	if fields == nil {
		fields = map[string]bool{}
	}
	return ctx.JSON(http.StatusOK, fields)
}

func (api *settingsApi) sessions(ctx echo.Context) error {
	sessions, err := api.svc.Sessions(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting sessions")
	}
	return ctx.JSON(http.StatusOK, sessions)
}
