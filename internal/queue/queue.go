package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/therealutkarshpriyadarshi/substills/internal/config"
	"github.com/therealutkarshpriyadarshi/substills/internal/logging"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

const (
	ExchangeName           = "substills"
	DeadLetterExchangeName = "substills_dlx"
)

// DefaultMaxAge is how old a shortcut press may be when it is consumed
const DefaultMaxAge = 30 * time.Second

// ErrMalformedCommand is returned for deliveries that are not commands
var ErrMalformedCommand = errors.New("malformed command")

// Queue carries keyboard-shortcut commands from the agent to the worker
type Queue struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	queueName string
	maxAge    time.Duration
	logger    *logging.Logger
}

// New creates a new queue client
func New(cfg config.QueueConfig, logger *logging.Logger) (*Queue, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if logger == nil {
		logger = logging.Nop()
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	q := &Queue{
		conn:      conn,
		channel:   channel,
		queueName: cfg.Name,
		maxAge:    maxAge,
		logger:    logger.WithComponent("queue"),
	}

	if err := q.declare(); err != nil {
		q.Close()
		return nil, err
	}
	return q, nil
}

// declare sets up the command exchange and queue plus a dead-letter queue
// for commands that failed.
func (q *Queue) declare() error {
	for _, exchange := range []string{ExchangeName, DeadLetterExchangeName} {
		err := q.channel.ExchangeDeclare(
			exchange,
			"direct",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
		}
	}

	deadLetter := DeadLetterQueueName(q.queueName)
	if _, err := q.channel.QueueDeclare(deadLetter, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}
	if err := q.channel.QueueBind(deadLetter, q.queueName, DeadLetterExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue: %w", err)
	}

	_, err := q.channel.QueueDeclare(
		q.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-dead-letter-exchange": DeadLetterExchangeName},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := q.channel.QueueBind(q.queueName, q.queueName, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	return nil
}

// DeadLetterQueueName returns the queue failed commands end up in
func DeadLetterQueueName(queueName string) string {
	return queueName + ".dead"
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// NewCommand stamps a command for publishing
func NewCommand(name, tabID string) *models.Command {
	return &models.Command{
		ID:       uuid.NewString(),
		Name:     name,
		TabID:    tabID,
		IssuedAt: time.Now().UTC(),
	}
}

// PublishCommand publishes a command for the worker
func (q *Queue) PublishCommand(ctx context.Context, cmd *models.Command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		ExchangeName,
		q.queueName,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    cmd.ID,
			Body:         body,
			Timestamp:    cmd.IssuedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}

	return nil
}

// decodeCommand parses a delivery body
func decodeCommand(body []byte) (*models.Command, error) {
	var cmd models.Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrMalformedCommand)
	}
	return &cmd, nil
}

// stale reports whether cmd was issued more than maxAge before now
func stale(cmd *models.Command, maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 || cmd.IssuedAt.IsZero() {
		return false
	}
	return now.Sub(cmd.IssuedAt) > maxAge
}

// ConsumeCommands starts consuming commands. Commands are handled one at a
// time; failures are dead-lettered rather than retried.
func (q *Queue) ConsumeCommands(ctx context.Context, handler func(context.Context, *models.Command) error) error {
	// Set QoS to limit concurrent processing
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		q.queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				q.handle(ctx, msg, handler)
			}
		}
	}()

	return nil
}

func (q *Queue) handle(ctx context.Context, msg amqp.Delivery, handler func(context.Context, *models.Command) error) {
	cmd, err := decodeCommand(msg.Body)
	if err != nil {
		q.logger.WithError(err).Warn("Dropping malformed command")
		msg.Nack(false, false)
		return
	}

	logger := q.logger.WithField("command_id", cmd.ID).WithTabID(cmd.TabID)
	if stale(cmd, q.maxAge, time.Now()) {
		logger.Warnf("Dropping stale %s command issued at %s", cmd.Name, cmd.IssuedAt.Format(time.RFC3339))
		msg.Ack(false)
		return
	}

	err = handler(ctx, cmd)
	q.logger.LogCommand(cmd.ID, cmd.Name, cmd.TabID, err)
	if err != nil {
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}

// GetQueueDepth returns the number of messages in the queue
func (q *Queue) GetQueueDepth() (int, error) {
	info, err := q.channel.QueueInspect(q.queueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}

// GetDLQDepth returns the number of dead-lettered commands
func (q *Queue) GetDLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(DeadLetterQueueName(q.queueName))
	if err != nil {
		return 0, fmt.Errorf("failed to inspect dead-letter queue: %w", err)
	}

	return info.Messages, nil
}
