package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"reddit_river/internal/domain"
)

// RabbitMQ publishes entry change events to a direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger = logger.With("component", "publisher")
	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// declareTopology declares the durable exchange and the queue consumers of
// entry events read from.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// EntryMessage is the JSON body of an entry change event.
type EntryMessage struct {
	Action    string       `json:"action"` // "create" or "update"
	Source    string       `json:"source"`
	RunID     string       `json:"run_id,omitempty"`
	Entry     EntryPayload `json:"entry"`
	Timestamp time.Time    `json:"timestamp"`
}

type EntryPayload struct {
	ID           int64     `json:"id"`
	ExternalID   string    `json:"external_id,omitempty"`
	Title        string    `json:"title"`
	URL          string    `json:"url"`
	AlternateURL *string   `json:"alternate_url"`
	Score        int       `json:"score"`
	Comments     int       `json:"comments"`
	Author       string    `json:"author"`
	Position     int       `json:"position"`
	Ranked       bool      `json:"ranked"`
	DateOrigin   time.Time `json:"date_origin"`
	DateAdded    time.Time `json:"date_added"`
}

func newEntryMessage(event *domain.EntryEvent, now time.Time) EntryMessage {
	e := event.Entry
	return EntryMessage{
		Action: event.Action,
		Source: event.Source,
		RunID:  event.RunID,
		Entry: EntryPayload{
			ID:           e.ID,
			ExternalID:   e.ExternalID,
			Title:        e.Title,
			URL:          e.URL,
			AlternateURL: e.AlternateURL,
			Score:        e.Score,
			Comments:     e.Comments,
			Author:       e.Author,
			Position:     e.Position,
			Ranked:       e.Ranked(),
			DateOrigin:   e.DateOrigin,
			DateAdded:    e.DateAdded,
		},
		Timestamp: now.UTC(),
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, event *domain.EntryEvent) error {
	msg := newEntryMessage(event, time.Now())

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    msg.Timestamp,
			MessageId:    fmt.Sprintf("%s/%d/%s", event.Source, event.Entry.ID, event.Action),
			AppId:        "reddit_river",
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published entry event",
		"source", event.Source,
		"entry_id", event.Entry.ID,
		"action", event.Action,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
