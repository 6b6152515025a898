package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relieflaunch/campaignkit/models"
)

// EventFeed lists current disaster events.
type EventFeed interface {
	FetchEvents(ctx context.Context) ([]models.DisasterEvent, error)
}

// EventsHandler exposes the disaster event feed.
type EventsHandler struct {
	Feed EventFeed
}

func (h *EventsHandler) Register(g *echo.Group) {
	g.GET("/events", h.list)
}

func (h *EventsHandler) list(c echo.Context) error {
	events, err := h.Feed.FetchEvents(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
