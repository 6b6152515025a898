package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relieflaunch/campaignkit/pipeline"
)

// CampaignsHandler serves campaign kit generation, buffered or streamed.
type CampaignsHandler struct {
	Pipeline *pipeline.Pipeline
	Logger   *log.Logger
}

func (h *CampaignsHandler) Register(g *echo.Group) {
	g.POST("/campaigns", h.generate)
	g.POST("/campaigns/stream", h.stream)
}

// generate runs the pipeline to completion and returns only the final kit.
func (h *CampaignsHandler) generate(c echo.Context) error {
	var req pipeline.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	kit, err := h.Pipeline.Run(c.Request().Context(), req, pipeline.DiscardSink)
	if err != nil {
		return campaignError(err)
	}
	return c.JSON(http.StatusOK, kit)
}

// stream runs the pipeline with progress delivered as Server-Sent Events.
// Each pipeline event becomes one SSE data frame; the kit rides on the
// terminal done event. A disconnected consumer cancels the request context
// and the pipeline stops between iterations.
func (h *CampaignsHandler) stream(c echo.Context) error {
	var req pipeline.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	sink := pipeline.SinkFunc(func(ctx context.Context, ev pipeline.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if _, err := h.Pipeline.Run(c.Request().Context(), req, sink); err != nil {
		// The terminal error was already delivered on the stream; log and
		// end the response.
		h.Logger.Printf("stream run ended with error: %v", err)
	}
	return nil
}

// campaignError maps pipeline failures onto HTTP statuses for the buffered
// endpoint.
func campaignError(err error) error {
	var ge *pipeline.GroundingError
	switch {
	case errors.Is(err, pipeline.ErrMissingSubject), errors.Is(err, pipeline.ErrInvalidDate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrNoArticles), errors.Is(err, pipeline.ErrNoUsableArticles):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &ge):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
}
