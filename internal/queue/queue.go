// Package queue runs pipeline requests consumed from an AMQP queue and
// publishes run progress to a topic exchange.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"recruitflow/internal/errors"
	"recruitflow/internal/pipeline"
	"recruitflow/internal/types"

	"github.com/streadway/amqp"
)

// Channel is the part of *amqp.Channel used by the worker and publisher.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Connection owns a broker connection and its channel.
type Connection struct {
	conn    *amqp.Connection
	Channel *amqp.Channel
}

// Dial connects to the broker and opens a channel.
func Dial(url string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeQueueFailed, "error dialling message broker", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.NewIOError(errors.ErrCodeQueueFailed, "error opening broker channel", err)
	}
	return &Connection{conn: conn, Channel: ch}, nil
}

// Close closes the channel and the connection.
func (c *Connection) Close() error {
	chErr := c.Channel.Close()
	if err := c.conn.Close(); err != nil {
		return err
	}
	return chErr
}

// DocumentRef is one document of a request, either inline or stored in the bucket.
type DocumentRef struct {
	Name  string `json:"name"`
	S3Key string `json:"s3_key,omitempty"`
	Data  []byte `json:"data,omitempty"`
}

// Request asks for one pipeline run.
type Request struct {
	RunID     string               `json:"run_id,omitempty"`
	Job       types.JobRequirement `json:"job"`
	Documents []DocumentRef        `json:"documents"`
}

// DecodeRequest parses a request body.
func DecodeRequest(body []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, errors.NewValidationError(errors.ErrCodeInvalidRequest, "malformed run request", err)
	}
	if len(req.Documents) == 0 {
		return Request{}, errors.NewValidationError(errors.ErrCodeInvalidRequest, "run request has no documents", nil)
	}
	for i, doc := range req.Documents {
		if doc.S3Key == "" && len(doc.Data) == 0 {
			return Request{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("document %d has neither s3_key nor data", i), nil)
		}
	}
	return req, nil
}

// Update is the message published for every run event.
type Update struct {
	pipeline.Event
	Status string `json:"status"`
}

// Run statuses carried by updates.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// RoutingKey returns the routing key of the updates of a run.
func RoutingKey(runID string) string {
	return "run." + runID
}

// Publisher publishes run updates to a topic exchange.
type Publisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
	logger   *errors.Logger
}

// NewPublisher declares the durable topic exchange and returns a publisher for it.
func NewPublisher(ch Channel, exchange string, logger *errors.Logger) (*Publisher, error) {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeQueueFailed, fmt.Sprintf("failed to declare exchange %s", exchange), err)
	}
	return &Publisher{ch: ch, exchange: exchange, logger: logger}, nil
}

// Publish sends one update. The channel is shared, so publishes are serialized.
func (p *Publisher) Publish(update Update) error {
	body, err := json.Marshal(update)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Publish(p.exchange, RoutingKey(update.RunID), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    update.Time,
		Body:         body,
	})
}

// Observe is a pipeline ProgressFunc. Publish failures are logged only.
func (p *Publisher) Observe(event pipeline.Event) {
	status := StatusProcessing
	switch event.Step {
	case pipeline.StepCompleted:
		status = StatusCompleted
	case pipeline.StepFailed:
		status = StatusFailed
	}
	if err := p.Publish(Update{Event: event, Status: status}); err != nil {
		p.logger.Warn("Failed to publish run update", "run_id", event.RunID, "step", string(event.Step), "error", err)
	}
}
