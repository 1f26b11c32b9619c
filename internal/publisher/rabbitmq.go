package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"video_ingestor/internal/domain"
)

const ActionCreate = "create"

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// RabbitMQ announces newly catalogued videos on a durable direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
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

type VideoMessage struct {
	Action    string       `json:"action"`
	Video     domain.Video `json:"video"`
	Timestamp time.Time    `json:"timestamp"`
}

func newPublishing(video *domain.Video, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(VideoMessage{
		Action:    ActionCreate,
		Video:     *video,
		Timestamp: now.UTC(),
	})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}

	return amqp.Publishing{
		MessageId:    uuid.NewString(),
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         "video." + ActionCreate,
		Body:         body,
		Timestamp:    now,
	}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, video *domain.Video) error {
	msg, err := newPublishing(video, time.Now())
	if err != nil {
		return err
	}

	if err := r.channel.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published video", "video_id", video.VideoID, "message_id", msg.MessageId)
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
