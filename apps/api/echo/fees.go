package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/fee"
)

type feeApi struct {
	svc *fee.Service
}

func registerFeeAPI(g *echo.Group, svc *fee.Service) {
	api := feeApi{svc: svc}

	// un-authed endpoints
	g.GET("/fees/preview", api.preview)
}

// Handlers

// preview quotes ?class=&category= as of ?date= (default today).
// ?legacy=true returns the fixed, date independent price of the category instead.
func (api *feeApi) preview(ctx echo.Context) error {
	class := core.CleanString(ctx.QueryParam("class"))
	category := core.CleanString(ctx.QueryParam("category"), true /* lower */)
	if class == "" {
		return fieldRequired("class")
	}

	asOf := time.Now()
	if d := ctx.QueryParam("date"); d != "" {
		var err error
		if asOf, err = core.ParseDate(d); err != nil {
			return core.NewFieldError("date", "date must be formatted as YYYY-MM-DD")
		}
	}

	resp := FeePreviewResponse{Class: class, Category: category, Date: core.Date(asOf).Format(core.DateLayout)}
	if legacy, _ := strconv.ParseBool(ctx.QueryParam("legacy")); legacy {
		resp.Legacy = true
		resp.Quote = fee.Quote{Amount: fee.LegacyFee(category), Tier: fee.TierNormal}
		return ctx.JSON(http.StatusOK, resp)
	}

	quote, err := api.svc.Quote(ctx.Request().Context(), class, category, asOf)
	if err != nil {
		return errors.Wrap(err, "quoting fee")
	}
	resp.Quote = quote
	return ctx.JSON(http.StatusOK, resp)
}
