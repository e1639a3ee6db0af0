package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/opshub/backend/internal/events"
)

// ChangeChannel is the NOTIFY channel fed by the schema's row triggers.
const ChangeChannel = "opshub_changes"

// ChangeFeed is implemented by backends that can report row changes made by
// any writer, not only this process.
type ChangeFeed interface {
	Listen(ctx context.Context, logger zerolog.Logger, fn func(events.Change)) error
}

// Listen forwards NOTIFY payloads to fn until ctx is done, reconnecting with
// a capped backoff when the listening connection drops.
func (s *Store) Listen(ctx context.Context, logger zerolog.Logger, fn func(events.Change)) error {
	delay := time.Second
	for {
		err := s.listenOnce(ctx, logger, fn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn().Err(err).Dur("retry_in", delay).Msg("change feed interrupted")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func (s *Store) listenOnce(ctx context.Context, logger zerolog.Logger, fn func(events.Change)) error {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return err
	}
	logger.Info().Str("channel", ChangeChannel).Msg("change feed listening")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		c, err := parseChange(n.Payload)
		if err != nil {
			logger.Warn().Err(err).Str("payload", n.Payload).Msg("bad change payload")
			continue
		}
		fn(c)
	}
}

func parseChange(payload string) (events.Change, error) {
	var c events.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return events.Change{}, err
	}
	if c.Table == "" || c.Op == "" {
		return events.Change{}, errors.New("change payload missing table or op")
	}
	c.At = time.Now().UTC()
	return c, nil
}
