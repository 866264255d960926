package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/streadway/amqp"
)

const retryHeader = "x-retry-count"

// AMQPQueue publishes and consumes durable RabbitMQ queues named after topics.
type AMQPQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	mu         sync.Mutex
	declared   map[string]bool
	log        *slog.Logger
	MaxRetries int
}

func DialAMQP(url string, log *slog.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening rabbitmq channel")
	}
	if log == nil {
		log = slog.Default()
	}
	return &AMQPQueue{
		conn:       conn,
		ch:         ch,
		declared:   map[string]bool{},
		log:        log,
		MaxRetries: defaultMaxRetries,
	}, nil
}

// declare must be called with mu held.
func (q *AMQPQueue) declare(topic string) error {
	if q.declared[topic] {
		return nil
	}
	_, err := q.ch.QueueDeclare(
		topic, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrapf(err, "declaring queue %s", topic)
	}
	q.declared[topic] = true
	return nil
}

func (q *AMQPQueue) publish(topic string, body []byte, retry int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.declare(topic); err != nil {
		return err
	}
	return q.ch.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Headers:      amqp.Table{retryHeader: int32(retry)},
		Body:         body,
	})
}

func (q *AMQPQueue) Publish(_ context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding payload")
	}
	return errors.Wrapf(q.publish(topic, body, 0), "publishing to %s", topic)
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Subscribe consumes topic with manual acks. A failed message is republished with an
// incremented retry header until MaxRetries, then dropped.
func (q *AMQPQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	if err := q.declare(topic); err != nil {
		q.mu.Unlock()
		return err
	}
	if err := q.ch.Qos(1, 0, false); err != nil {
		q.mu.Unlock()
		return errors.Wrap(err, "setting qos")
	}
	msgs, err := q.ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	q.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "registering consumer")
	}

	go func() {
		for d := range msgs {
			err := handler(context.Background(), d.Body)
			if err != nil {
				retry := retryCount(d.Headers) + 1
				q.log.Warn("job failed", slog.String("topic", topic), slog.Int("attempt", retry), slog.Any("error", err))
				if retry <= q.MaxRetries {
					if perr := q.publish(topic, d.Body, retry); perr != nil {
						q.log.Error("requeue failed", slog.Any("error", perr))
						_ = d.Nack(false, true)
						continue
					}
				} else {
					q.log.Error("job permanently failed", slog.String("topic", topic), slog.String("message_id", d.MessageId))
				}
			}
			_ = d.Ack(false)
		}
		q.log.Info("consumer stopped", slog.String("topic", topic))
	}()
	return nil
}

func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Close(); err != nil {
		_ = q.conn.Close()
		return errors.Wrap(err, "closing channel")
	}
	return q.conn.Close()
}

var (
	_ Queue = (*InMemoryQueue)(nil)
	_ Queue = (*AMQPQueue)(nil)
)
