package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core/notification"
)

type notificationApi struct {
	svc *notification.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *notification.Service) {
	api := notificationApi{svc: svc}

	ng := g.Group("/me/notifications", jwt)
	ng.GET("", api.query)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/:id/read", api.markRead)
}

// Handlers

// query lists the account's notifications, newest first; ?unread=true keeps unread ones only.
func (api *notificationApi) query(ctx echo.Context) error {
	accountID, err := contextAccountID(ctx)
	if err != nil {
		return err
	}
	unreadOnly, _ := strconv.ParseBool(ctx.QueryParam("unread"))

	notes, err := api.svc.List(ctx.Request().Context(), accountID, unreadOnly)
	if err != nil {
		return errors.Wrap(err, "listing notifications")
	}
	if notes == nil {
		notes = []notification.Notification{}
	}
	unread, err := api.svc.UnreadCount(ctx.Request().Context(), accountID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, NotificationsResponse{Unread: unread, Results: notes})
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	accountID, err := contextAccountID(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.MarkRead(ctx.Request().Context(), accountID, id); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "notification marked as read"})
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	accountID, err := contextAccountID(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.MarkAllRead(ctx.Request().Context(), accountID)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, MarkAllReadResponse{Updated: n})
}
