package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeTasks Exchange = "armada.tasks"
	ExchangeDLQ   Exchange = "armada.dlq"
)

// Queues — имена очередей.
const (
	// QueueTasksProvision — рабочая очередь: по одному сообщению на task.
	QueueTasksProvision Queue = "tasks.provision"

	// QueueTasksRetry — holding-очередь для отложенной повторной доставки.
	// Сообщения лежат здесь до истечения per-message TTL, после чего
	// dead-letter'ятся обратно в armada.tasks/provision.
	QueueTasksRetry Queue = "tasks.retry"

	// QueueDLQTasks — свалка для сообщений, которые не удалось разобрать.
	QueueDLQTasks Queue = "dlq.tasks"
)

// Routing keys.
const (
	RoutingKeyProvision RoutingKey = "provision"
	RoutingKeyRetry     RoutingKey = "retry"
	RoutingKeyDLQTasks  RoutingKey = "tasks"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeTasks, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Рабочая очередь: некорректные сообщения уходят в DLQ.
	provisionArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTasks),
	}

	// Retry-очередь: у неё нет consumer'а; истёкшие по TTL сообщения
	// возвращаются в рабочую очередь через dead-letter маршрутизацию.
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeTasks),
		"x-dead-letter-routing-key": string(RoutingKeyProvision),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{QueueTasksProvision, provisionArgs},
		{QueueTasksRetry, retryArgs},
		{QueueDLQTasks, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueTasksProvision, RoutingKeyProvision, ExchangeTasks},
		{QueueTasksRetry, RoutingKeyRetry, ExchangeTasks},
		{QueueDLQTasks, RoutingKeyDLQTasks, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Armada RabbitMQ Topology:

    armada.tasks (direct)
    ├── tasks.provision [routing: provision]
    │       Consumer: Worker (prefetch=1, manual ack)
    │       DLQ: dlq.tasks (только unparseable сообщения)
    └── tasks.retry [routing: retry]
            Без consumer'а; per-message TTL → dead-letter
            обратно в armada.tasks/provision

    armada.dlq (direct)
    └── dlq.tasks [routing: tasks]
            Manual processing
  `
}
