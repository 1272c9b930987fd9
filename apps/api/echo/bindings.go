package echoapi

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindApplicationFilter reads ?class=&category=&status=&test_center=&ordering=.
func bindApplicationFilter(ctx echo.Context) admission.QueryFilter {
	var ord Ordering
	ord.Bind(ctx)
	return admission.QueryFilter{
		Class:      admission.Class(core.CleanString(ctx.QueryParam("class"))),
		Category:   core.CleanString(ctx.QueryParam("category"), true /* lower */),
		Status:     admission.Status(core.CleanString(ctx.QueryParam("status"), true /* lower */)),
		TestCenter: core.CleanString(ctx.QueryParam("test_center")),
		Orderings:  ord.Orderings,
	}
}

// pathID parses the ":id" param. Non numeric IDs cannot exist.
func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// decodeJSON reads the body into targets the default binder cannot fill, like maps.
func decodeJSON(ctx echo.Context, v interface{}) error {
	if err := json.NewDecoder(ctx.Request().Body).Decode(v); err != nil {
		return errInvalidJSONBody
	}
	return nil
}

func validCategory(value string) bool {
	for _, c := range admission.Categories {
		if c.Value == value {
			return true
		}
	}
	return false
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	FeePreviewResponse struct {
		Class    string `json:"class"`
		Category string `json:"category"`
		Date     string `json:"date"`
		Legacy   bool   `json:"legacy"`
		fee.Quote
	}

	BulkRequest struct {
		Action string `json:"action" validate:"required,oneof=verify reject"`
		IDs    []int  `json:"ids" validate:"required,min=1,max=500"`
	}

	BulkResponse struct {
		Results []admission.BulkResult `json:"results"`
	}

	BroadcastResponse struct {
		Queued int `json:"queued"`
	}

	SessionRequest struct {
		IsOpen bool `json:"is_open"`
	}

	NotificationsResponse struct {
		Unread  int         `json:"unread"`
		Results interface{} `json:"results"`
	}

	MarkAllReadResponse struct {
		Updated int `json:"updated"`
	}
)
