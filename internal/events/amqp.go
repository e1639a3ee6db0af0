package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const maxDialDelay = 60 * time.Second

type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

type Envelope struct {
	Meta Meta   `json:"meta"`
	Data Change `json:"data"`
}

// NewEnvelope wraps a change for the wire. The event type is
// "opshub.<table>.<op>.v1".
func NewEnvelope(c Change, correlationID string) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			Type:          "opshub." + c.RoutingKey() + ".v1",
			OccurredAt:    c.At,
			CorrelationID: correlationID,
		},
		Data: c,
	}
}

type DialOptions struct {
	URL           string
	RetryAttempts int
	Delay         time.Duration
	Logger        zerolog.Logger
}

// DialWithRetry connects with exponential backoff capped at a minute and
// gives up early when ctx is cancelled.
func DialWithRetry(ctx context.Context, opts DialOptions) (*amqp091.Connection, error) {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}

	var lastErr error
	for i := 1; i <= opts.RetryAttempts; i++ {
		conn, err := amqp091.Dial(opts.URL)
		if err == nil {
			if i > 1 {
				opts.Logger.Info().Int("attempt", i).Msg("amqp connected")
			}
			return conn, nil
		}
		lastErr = err
		if i == opts.RetryAttempts {
			break
		}

		sleep := opts.Delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		opts.Logger.Warn().Err(err).Int("attempt", i).Dur("sleep", sleep).Msg("amqp dial failed")

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("failed to connect to amqp after %d attempts: %w", opts.RetryAttempts, lastErr)
}

// AMQPPublisher publishes changes to a durable topic exchange with publisher
// confirms enabled.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
	logger   zerolog.Logger
}

func NewAMQPPublisher(conn *amqp091.Connection, exchange string, logger zerolog.Logger) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, exchange: exchange, logger: logger}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, c Change) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := ch.Confirm(false); err != nil {
		return err
	}

	env := NewEnvelope(c, CorrelationID(ctx))
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(
		ctx, p.exchange, c.RoutingKey(), false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     env.Meta.ID,
			CorrelationId: env.Meta.CorrelationID,
			Type:          env.Meta.Type,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return err
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("broker nacked %s", env.Meta.ID)
	}
	p.logger.Debug().Str("key", c.RoutingKey()).Str("exchange", p.exchange).Msg("published")
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

type correlationKey struct{}

// WithCorrelationID tags ctx so published envelopes can be traced back to
// the HTTP request that caused them.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(correlationKey{}).(string); ok && v != "" {
		return v
	}
	return uuid.NewString()
}
