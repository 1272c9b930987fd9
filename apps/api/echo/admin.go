package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
)

const (
	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 365
)

type adminApi struct {
	svc      *admission.Service
	fees     *fee.Service
	validate *validator.Validate
	baseURL  string
}

func registerAdminAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *admission.Service,
	fees *fee.Service,
	validate *validator.Validate,
	baseURL string,
) {
	api := adminApi{
		svc:      svc,
		fees:     fees,
		validate: validate,
		baseURL:  baseURL,
	}

	ag := g.Group("/admin", jwt, adminMiddleware())

	ag.GET("/applications", api.queryApplications)
	ag.POST("/applications/bulk", api.bulk)
	ag.GET("/applications/:id", api.retrieveApplication)
	ag.POST("/applications/:id/verify", api.verify)
	ag.POST("/applications/:id/reject", api.reject)

	ag.POST("/broadcast", api.broadcast)
	ag.GET("/templates", api.queryTemplates)
	ag.POST("/templates", api.createTemplate)
	ag.GET("/analytics", api.analytics)

	ag.PUT("/sessions/:class", api.setSession)
	ag.PUT("/fields", api.setFields)

	ag.GET("/fees", api.querySchedules)
	ag.PUT("/fees/:class", api.configureFees)
	ag.GET("/fees/:class/categories", api.queryCategoryFees)
	ag.PUT("/fees/:class/categories/:category", api.setCategoryFees)
}

// verifyOptions builds the links mailed to applicants from the configured base URL,
// or from the request when none is set.
func (api *adminApi) verifyOptions(ctx echo.Context) admission.VerifyOptions {
	base := api.baseURL
	if base == "" {
		base = ctx.Scheme() + "://" + ctx.Request().Host
	}
	return admission.VerifyOptions{BaseURL: base}
}

// Handlers

func (api *adminApi) queryApplications(ctx echo.Context) error {
	apps, err := api.svc.Filter(ctx.Request().Context(), bindApplicationFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "filtering applications")
	}
	if apps == nil {
		apps = []admission.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *adminApi) retrieveApplication(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	app, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting application")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *adminApi) verify(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	app, err := api.svc.Verify(ctx.Request().Context(), id, api.verifyOptions(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *adminApi) reject(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	app, err := api.svc.Reject(ctx.Request().Context(), id, api.verifyOptions(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *adminApi) bulk(ctx echo.Context) error {
	var data BulkRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	var results []admission.BulkResult
	if data.Action == "verify" {
		results = api.svc.BulkVerify(ctx.Request().Context(), data.IDs, api.verifyOptions(ctx))
	} else {
		results = api.svc.BulkReject(ctx.Request().Context(), data.IDs, api.verifyOptions(ctx))
	}
	return ctx.JSON(http.StatusOK, BulkResponse{Results: results})
}

func (api *adminApi) broadcast(ctx echo.Context) error {
	var data admission.Broadcast
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Broadcast")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	queued, err := api.svc.Broadcast(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "broadcasting")
	}
	return ctx.JSON(http.StatusOK, BroadcastResponse{Queued: queued})
}

func (api *adminApi) queryTemplates(ctx echo.Context) error {
	tmpls, err := api.svc.Templates(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	if tmpls == nil {
		tmpls = []admission.MessageTemplate{}
	}
	return ctx.JSON(http.StatusOK, tmpls)
}

func (api *adminApi) createTemplate(ctx echo.Context) error {
	accountID, err := contextAccountID(ctx)
	if err != nil {
		return err
	}
	var data admission.NewMessageTemplate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessageTemplate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	tmpl, err := api.svc.CreateTemplate(ctx.Request().Context(), data, accountID)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, tmpl)
}

func (api *adminApi) analytics(ctx echo.Context) error {
	days := defaultAnalyticsDays
	if d := ctx.QueryParam("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 || n > maxAnalyticsDays {
			return core.NewFieldError("days", "days must be between 1 and 365")
		}
		days = n
	}

	stats, err := api.svc.Analytics(ctx.Request().Context(), days)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *adminApi) setSession(ctx echo.Context) error {
	var data SessionRequest
	if err := decodeJSON(ctx, &data); err != nil {
		return err
	}
	class := admission.Class(core.CleanString(ctx.Param("class")))

	session, err := api.svc.SetSession(ctx.Request().Context(), class, data.IsOpen)
	if err != nil {
		return errors.Wrap(err, "setting session")
	}
	return ctx.JSON(http.StatusOK, session)
}

func (api *adminApi) setFields(ctx echo.Context) error {
	var data map[string]bool
	if err := decodeJSON(ctx, &data); err != nil {
		return err
	}

	fields, err := api.svc.SetFieldVisibility(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "setting field visibility")
	}
	return ctx.JSON(http.StatusOK, fields)
}

func (api *adminApi) querySchedules(ctx echo.Context) error {
	scheds, err := api.fees.Schedules(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying fee schedules")
	}
	if scheds == nil {
		scheds = []fee.Schedule{}
	}
	return ctx.JSON(http.StatusOK, scheds)
}

func (api *adminApi) configureFees(ctx echo.Context) error {
	var data fee.ScheduleInput
	if err := decodeJSON(ctx, &data); err != nil {
		return err
	}
	data.Class = ctx.Param("class")
	if !admission.Class(data.Class).Valid() {
		return errHttpNotFound
	}

	sched, err := data.Validate(api.validate)
	if err != nil {
		return err
	}
	sched, err = api.fees.Configure(ctx.Request().Context(), sched)
	if err != nil {
		return errors.Wrap(err, "configuring fee schedule")
	}
	return ctx.JSON(http.StatusOK, sched)
}

func (api *adminApi) queryCategoryFees(ctx echo.Context) error {
	ovrs, err := api.fees.CategoryFees(ctx.Request().Context(), ctx.Param("class"))
	if err != nil {
		return errors.Wrap(err, "querying category fees")
	}
	if ovrs == nil {
		ovrs = []fee.CategoryOverride{}
	}
	return ctx.JSON(http.StatusOK, ovrs)
}

func (api *adminApi) setCategoryFees(ctx echo.Context) error {
	category := core.CleanString(ctx.Param("category"), true /* lower */)
	if !validCategory(category) {
		return errHttpNotFound
	}
	var data fee.Fees
	if err := decodeJSON(ctx, &data); err != nil {
		return err
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	ovr, err := api.fees.SetCategoryFees(ctx.Request().Context(), ctx.Param("class"), category, data)
	if err != nil {
		return errors.Wrap(err, "setting category fees")
	}
	return ctx.JSON(http.StatusOK, ovr)
}
