// Package events carries row-change notifications for the technician
// directory and the ticket store to dashboards and external consumers.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	TableTechnicians = "technicians"
	TableTickets     = "tickets"
)

const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Change announces that a row changed. Consumers refetch; they do not diff.
type Change struct {
	Table string    `json:"table"`
	Op    string    `json:"op"`
	ID    string    `json:"id"`
	At    time.Time `json:"at"`
}

// RoutingKey is "<table>.<op>" in lower case.
func (c Change) RoutingKey() string {
	return strings.ToLower(c.Table + "." + c.Op)
}

type Sink interface {
	Publish(ctx context.Context, c Change) error
}

// Fanout delivers a change to every sink. A failing sink is logged and does
// not stop delivery to the others.
type Fanout struct {
	Sinks  []Sink
	Logger zerolog.Logger
}

func (f Fanout) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	for _, s := range f.Sinks {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, c); err != nil {
			f.Logger.Warn().Err(err).
				Str("table", c.Table).
				Str("op", c.Op).
				Str("id", c.ID).
				Msg("change notification failed")
		}
	}
	return nil
}
