package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTaskProvision MessageType = "task.provision"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// TaskProvisionPayload — payload для сообщения о task, готовой к выполнению.
// Очередь адресуется только идентификатором task; всё остальное worker
// загружает из БД.
type TaskProvisionPayload struct {
	TaskID uuid.UUID `json:"task_id"`
	JobID  uuid.UUID `json:"job_id"`
}

// Publish публикует сообщение в указанный exchange с routing key.
// expiration > 0 задаёт per-message TTL (используется retry-очередью).
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, expiration time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    msg.ID,
		Timestamp:    msg.Timestamp,
		Body:         body,
	}
	if expiration > 0 {
		publishing.Expiration = strconv.FormatInt(expiration.Milliseconds(), 10)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			publishing,
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
			"expiration", expiration,
		)

		return nil
	})
}

// PublishTaskProvision публикует событие о task, готовой к выполнению.
// Потребитель: Worker.
func (p *Publisher) PublishTaskProvision(ctx context.Context, taskID, jobID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskProvision,
		Payload:   TaskProvisionPayload{TaskID: taskID, JobID: jobID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKeyProvision, msg, 0)
}

// PublishTaskRetry кладёт событие в retry-очередь с задержкой delay.
// По истечении TTL сообщение вернётся в рабочую очередь и будет
// доставлено воркеру заново.
func (p *Publisher) PublishTaskRetry(ctx context.Context, taskID, jobID uuid.UUID, delay time.Duration) error {
	if delay <= 0 {
		return p.PublishTaskProvision(ctx, taskID, jobID)
	}

	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskProvision,
		Payload:   TaskProvisionPayload{TaskID: taskID, JobID: jobID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeTasks, RoutingKeyRetry, msg, delay)
}
