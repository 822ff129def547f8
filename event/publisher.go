package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Routing keys published on the events exchange
const (
	PaperCreated   = "paper.created"
	PaperUpdated   = "paper.updated"
	PaperDeleted   = "paper.deleted"
	PaperSubmitted = "paper.submitted"
)

// Publisher sends domain events. Publishing is best effort: callers log
// failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// PaperEvent is the payload of the paper.created/updated/deleted events.
type PaperEvent struct {
	PaperID     string `json:"paperId"`
	Title       string `json:"title,omitempty"`
	Exam        string `json:"exam,omitempty"`
	Year        int    `json:"year,omitempty"`
	IsPublished bool   `json:"isPublished"`
	Actor       string `json:"actor,omitempty"`
}

// SubmissionEvent is the payload of paper.submitted.
type SubmissionEvent struct {
	PaperID      string  `json:"paperId"`
	Score        int     `json:"score"`
	TotalMarks   int     `json:"totalMarks"`
	Percentage   float64 `json:"percentage"`
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"averageScore"`
}

// AMQPPublisher publishes to a durable topic exchange on RabbitMQ.
type AMQPPublisher struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
}

func NewAMQPPublisher(rabbitURI, exchangeName string) (*AMQPPublisher, error) {
	// Connect to RabbitMQ
	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	// Create a channel
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// Declare the exchange
	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: channel, exchangeName: exchangeName}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	now := time.Now()
	body, err := json.Marshal(Envelope{Type: routingKey, OccurredAt: now, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    now,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Printf("Published event: %s", routingKey)
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// NoopPublisher drops every event. Used when RabbitMQ is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
