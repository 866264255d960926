package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/model"
)

// DeliveryTopic carries model.DeliveryJob messages from the API to the delivery worker.
const DeliveryTopic = "newsletter_deliveries"

const defaultMaxRetries = 3

// Handler processes one message body. A non-nil error triggers a retry.
type Handler func(ctx context.Context, body []byte) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, payload any) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

// InMemoryQueue runs subscribers in goroutines of the publishing process, with retry.
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]Handler
	wg         sync.WaitGroup
	log        *slog.Logger
	MaxRetries int
	Backoff    func(attempt int) time.Duration
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log *slog.Logger) *InMemoryQueue {
	if log == nil {
		log = slog.Default()
	}
	return &InMemoryQueue{
		handlers:   make(map[string][]Handler),
		log:        log,
		MaxRetries: defaultMaxRetries,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*500) * time.Millisecond
		},
	}
}

// job wraps a message body with retry info
type job struct {
	topic      string
	body       []byte
	retryCount int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encoding payload")
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		go func(h Handler) {
			defer q.wg.Done()
			q.processJob(context.WithoutCancel(ctx), h, job{topic: topic, body: body})
		}(handler)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(ctx context.Context, handler Handler, j job) {
	for {
		err := handler(ctx, j.body)
		if err == nil {
			return
		}

		j.retryCount++
		q.log.Warn("job failed",
			slog.String("topic", j.topic),
			slog.Int("attempt", j.retryCount),
			slog.Int("max_retries", q.MaxRetries),
			slog.Any("error", err),
		)
		if j.retryCount > q.MaxRetries {
			q.log.Error("job permanently failed", slog.String("topic", j.topic), slog.String("body", string(j.body)))
			return
		}
		time.Sleep(q.Backoff(j.retryCount))
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

func (q *InMemoryQueue) Close() error {
	q.Wait()
	return nil
}

// StartDeliverySubscriber decodes DeliveryJob messages and hands them to handle. Malformed
// messages are logged and dropped.
func StartDeliverySubscriber(q Queue, handle func(ctx context.Context, job model.DeliveryJob) error, log *slog.Logger) error {
	return q.Subscribe(DeliveryTopic, func(ctx context.Context, body []byte) error {
		var j model.DeliveryJob
		if err := json.Unmarshal(body, &j); err != nil {
			log.Warn("invalid delivery job", slog.String("body", string(body)), slog.Any("error", err))
			return nil
		}
		log.Info("processing delivery", slog.Int("campaign_id", j.CampaignID))
		return handle(ctx, j)
	})
}
