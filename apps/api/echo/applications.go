package echoapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
)

const (
	feeSlipField   = "fee_slip"
	maxFeeSlipSize = 5 << 20
)

type applicationApi struct {
	svc      *admission.Service
	fees     *fee.Service
	validate *validator.Validate
}

// registerApplicationAPI registers the applicant's own endpoints. The public slip download
// handler is returned with the api, for the server to mount where needed.
func registerApplicationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *admission.Service,
	fees *fee.Service,
	validate *validator.Validate,
) *applicationApi {
	api := &applicationApi{
		svc:      svc,
		fees:     fees,
		validate: validate,
	}

	mg := g.Group("/me", jwt)
	mg.POST("/application", api.start)
	mg.GET("/application", api.dashboard)
	mg.PUT("/application", api.saveDetails)
	mg.GET("/fee", api.currentFee)
	mg.POST("/challan", api.printChallan)
	mg.POST("/fee-slip", api.uploadFeeSlip)
	mg.GET("/roll-slip", api.rollSlip)

	return api
}

// Handlers

func (api *applicationApi) start(ctx echo.Context) error {
	accountID, err := contextAccountID(ctx)
	if err != nil {
		return err
	}
	var data admission.NewApplication
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	app, err := api.svc.Start(ctx.Request().Context(), accountID, data)
	if err != nil {
		return errors.Wrap(err, "starting application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) dashboard(ctx echo.Context) error {
	accountID, err := contextAccountID(ctx)
	if err != nil {
		return err
	}
	dash, err := api.svc.Dashboard(ctx.Request().Context(), accountID)
	if err != nil {
		return errors.Wrap(err, "getting dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *applicationApi) saveDetails(ctx echo.Context) error {
	accountID, err := contextAccountID(ctx)
	if err != nil {
		return err
	}
	var data admission.Details
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Details")
	}

	app, err := api.svc.SaveDetails(ctx.Request().Context(), accountID, data, api.validate)
	if err != nil {
		return errors.Wrap(err, "saving details")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) currentFee(ctx echo.Context) error {
	accountID, err := contextAccountID(ctx)
	if err != nil {
		return err
	}
	app, err := api.svc.Mine(ctx.Request().Context(), accountID)
	if err != nil {
		return errors.Wrap(err, "getting application")
	}
	quote, err := api.fees.QuoteNow(ctx.Request().Context(), string(app.Class), app.Category)
	if err != nil {
		return errors.Wrap(err, "quoting fee")
	}
	return ctx.JSON(http.StatusOK, quote)
}

func (api *applicationApi) printChallan(ctx echo.Context) error {
	accountID, err := contextAccountID(ctx)
	if err != nil {
		return err
	}
	app, err := api.svc.PrintChallan(ctx.Request().Context(), accountID)
	if err != nil {
		return errors.Wrap(err, "printing challan")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) uploadFeeSlip(ctx echo.Context) error {
	accountID, err := contextAccountID(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile(feeSlipField)
	if err != nil {
		return fieldRequired(feeSlipField)
	}
	if fh.Size > maxFeeSlipSize {
		return core.NewFieldError(feeSlipField, fmt.Sprintf("file is larger than %d MB", maxFeeSlipSize>>20))
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening fee slip")
	}
	defer func() { _ = f.Close() }()
	content, err := io.ReadAll(io.LimitReader(f, maxFeeSlipSize+1))
	if err != nil {
		return errors.Wrap(err, "reading fee slip")
	}
	if len(content) == 0 {
		return core.NewFieldError(feeSlipField, "file is empty")
	}

	app, err := api.svc.UploadFeeSlip(ctx.Request().Context(), accountID, fh.Filename, content)
	if err != nil {
		return errors.Wrap(err, "uploading fee slip")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) rollSlip(ctx echo.Context) error {
	accountID, err := contextAccountID(ctx)
	if err != nil {
		return err
	}
	slip, err := api.svc.SlipForAccount(ctx.Request().Context(), accountID)
	if err != nil {
		return errors.Wrap(err, "getting roll slip")
	}
	return attachment(ctx, slip)
}

// downloadRollSlip is public: the secure token is the credential.
func (api *applicationApi) downloadRollSlip(ctx echo.Context) error {
	slip, err := api.svc.SlipByToken(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return errors.Wrap(err, "getting roll slip by token")
	}
	return attachment(ctx, slip)
}

func attachment(ctx echo.Context, art admission.Artifact) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", art.Filename))
	return ctx.Blob(http.StatusOK, art.ContentType, art.Content)
}
