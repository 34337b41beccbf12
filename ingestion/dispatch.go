package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/storage"
)

// Job asks for the next stage of a document to run.
type Job struct {
	DocumentId string `json:"documentId"`
	Force      bool   `json:"force,omitempty"`
}

// JobHandler runs one job and returns the job that continues the document,
// or nil when it has stopped.
type JobHandler func(ctx context.Context, job Job) (*Job, error)

// Dispatcher schedules jobs onto a JobHandler.
type Dispatcher interface {
	// Start registers the handler. It is called once by NewPipeline.
	Start(handler JobHandler) error

	// Dispatch schedules job. It does not wait for the job to run.
	Dispatch(ctx context.Context, job Job) error

	// Close stops accepting jobs and interrupts running ones.
	Close() error
}

// InlineDispatcher runs each dispatched document to a stop in its own
// goroutine of this process.
type InlineDispatcher struct {
	handler JobHandler
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

var _ Dispatcher = (*InlineDispatcher)(nil)

// NewInlineDispatcher creates an InlineDispatcher.
func NewInlineDispatcher(logger *slog.Logger) *InlineDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InlineDispatcher{
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With("component", "dispatcher"),
	}
}

func (d *InlineDispatcher) Start(handler JobHandler) error {
	d.handler = handler
	return nil
}

func (d *InlineDispatcher) Dispatch(_ context.Context, job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrPipelineClosed
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for next := &job; next != nil; {
			var err error
			next, err = d.handler(d.ctx, *next)
			if err != nil {
				d.logger.Error("job failed", "document", job.DocumentId, "err", err)
				return
			}
		}
	}()
	return nil
}

// Wait blocks until every dispatched document has stopped.
func (d *InlineDispatcher) Wait() {
	d.wg.Wait()
}

func (d *InlineDispatcher) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
	return nil
}

// DefaultJobTopic is the topic stage jobs are published on.
const DefaultJobTopic = "kbflow.stage_jobs"

// QueueDispatcher publishes one message per stage step on a watermill
// topic and consumes them, so steps of a document may run in any process
// subscribed to the topic. A message is acknowledged once its step has run.
// A step that fails is nacked for redelivery after a delay, unless the job
// can never succeed: a document that is already being processed, that no
// longer exists, or that fails validation is acknowledged and dropped.
type QueueDispatcher struct {
	publisher       message.Publisher
	subscriber      message.Subscriber
	topic           string
	concurrency     int
	redeliveryDelay time.Duration
	logger          *slog.Logger

	handler JobHandler
	ctx     context.Context
	cancel  context.CancelFunc
	sem     chan struct{}
	wg      sync.WaitGroup
}

var _ Dispatcher = (*QueueDispatcher)(nil)

// QueueOption configures a QueueDispatcher.
type QueueOption func(*QueueDispatcher)

// WithJobTopic sets the topic jobs are published on.
func WithJobTopic(topic string) QueueOption {
	return func(d *QueueDispatcher) {
		if topic != "" {
			d.topic = topic
		}
	}
}

// WithConcurrency sets how many jobs run at once. Default is 4.
func WithConcurrency(n int) QueueOption {
	return func(d *QueueDispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithRedeliveryDelay sets how long a failed job waits before it is nacked
// for redelivery. Default is one second.
func WithRedeliveryDelay(delay time.Duration) QueueOption {
	return func(d *QueueDispatcher) {
		if delay >= 0 {
			d.redeliveryDelay = delay
		}
	}
}

// WithQueueLogger sets a custom logger.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(d *QueueDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewQueueDispatcher creates a QueueDispatcher over a watermill transport.
// The caller owns the transport.
func NewQueueDispatcher(publisher message.Publisher, subscriber message.Subscriber, opts ...QueueOption) (*QueueDispatcher, error) {
	if publisher == nil || subscriber == nil {
		return nil, errors.New("queue dispatcher: publisher and subscriber are required")
	}
	d := &QueueDispatcher{
		publisher:       publisher,
		subscriber:      subscriber,
		topic:           DefaultJobTopic,
		concurrency:     4,
		redeliveryDelay: time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher", "topic", d.topic)
	d.sem = make(chan struct{}, d.concurrency)
	return d, nil
}

func (d *QueueDispatcher) Start(handler JobHandler) error {
	d.handler = handler
	d.ctx, d.cancel = context.WithCancel(context.Background())

	messages, err := d.subscriber.Subscribe(d.ctx, d.topic)
	if err != nil {
		d.cancel()
		return fmt.Errorf("subscribe to %s: %w", d.topic, err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for msg := range messages {
			var job Job
			if err := json.Unmarshal(msg.Payload, &job); err != nil || job.DocumentId == "" {
				d.logger.Warn("dropping malformed job", "uuid", msg.UUID, "err", err)
				msg.Ack()
				continue
			}

			select {
			case d.sem <- struct{}{}:
			case <-d.ctx.Done():
				msg.Nack()
				return
			}
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				defer func() { <-d.sem }()
				d.settle(msg, job, d.run(job))
			}()
		}
	}()
	return nil
}

// run handles job and schedules the step that continues it.
func (d *QueueDispatcher) run(job Job) error {
	next, err := d.handler(d.ctx, job)
	if err != nil {
		return err
	}
	if next != nil {
		if err := d.Dispatch(d.ctx, *next); err != nil {
			return fmt.Errorf("schedule next step: %w", err)
		}
	}
	return nil
}

// settle acknowledges msg unless its job failed in a way a later delivery
// may recover from.
func (d *QueueDispatcher) settle(msg *message.Message, job Job, err error) {
	switch {
	case err == nil:
		msg.Ack()
	case errors.Is(err, ErrDocumentActive):
		d.logger.Debug("skipping duplicate job", "document", job.DocumentId)
		msg.Ack()
	case errors.Is(err, core.ErrValidation), errors.Is(err, storage.ErrNotFound):
		d.logger.Error("dropping job", "document", job.DocumentId, "err", err)
		msg.Ack()
	default:
		d.logger.Warn("job failed, redelivering", "document", job.DocumentId, "delay", d.redeliveryDelay, "err", err)
		select {
		case <-time.After(d.redeliveryDelay):
		case <-d.ctx.Done():
		}
		msg.Nack()
	}
}

func (d *QueueDispatcher) Dispatch(_ context.Context, job Job) error {
	if d.ctx == nil || d.ctx.Err() != nil {
		return ErrPipelineClosed
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("documentId", job.DocumentId)
	if err := d.publisher.Publish(d.topic, msg); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

func (d *QueueDispatcher) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	return nil
}
