package pipeline

import (
	"context"

	"github.com/relieflaunch/campaignkit/models"
)

// EventType tags entries on the progress stream.
type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventArticle  EventType = "article"
	EventError    EventType = "error"
	EventDone     EventType = "done"
)

// Event is one entry on the unidirectional, ordered progress stream from a
// pipeline run to its caller. Kept articles are emitted immediately, one
// event each; the terminal done event carries the sent/requested summary and
// the generated kit.
type Event struct {
	Type      EventType           `json:"type"`
	Message   string              `json:"message,omitempty"`
	Kind      string              `json:"kind,omitempty"`
	Current   int                 `json:"current,omitempty"`
	Total     int                 `json:"total,omitempty"`
	Article   *models.Article     `json:"article,omitempty"`
	Kit       *models.CampaignKit `json:"kit,omitempty"`
	Sent      int                 `json:"sent,omitempty"`
	Requested int                 `json:"requested,omitempty"`
}

// Sink consumes pipeline events. The pipeline is the sole producer; a Send
// error (disconnected or cancelled consumer) stops the run promptly.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Send(ctx context.Context, ev Event) error { return f(ctx, ev) }

// DiscardSink drops every event; used when the caller only wants the final
// kit.
var DiscardSink = SinkFunc(func(context.Context, Event) error { return nil })
