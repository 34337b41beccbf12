// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/patrickmn/go-cache"
	"github.com/poiesic/kbflow/core"
)

// DefaultTopic is the topic progress events are published on.
const DefaultTopic = "kbflow.progress"

// ErrNotifierClosed is returned when publishing on a closed notifier.
var ErrNotifierClosed = errors.New("progress notifier is closed")

// Notifier publishes progress events and hands out subscriptions.
type Notifier struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	owned      *gochannel.GoChannel
	topic      string
	retention  time.Duration
	bufferSize int
	logger     *slog.Logger

	mu     sync.Mutex
	last   *cache.Cache
	seq    atomic.Uint64
	closed atomic.Bool
}

// Option configures a Notifier.
type Option func(*Notifier) error

// WithPubSub publishes and subscribes through the given watermill transport
// instead of the default in-process channel. The caller owns its lifecycle.
func WithPubSub(publisher message.Publisher, subscriber message.Subscriber) Option {
	return func(n *Notifier) error {
		if publisher == nil || subscriber == nil {
			return errors.New("progress: publisher and subscriber are required")
		}
		n.publisher = publisher
		n.subscriber = subscriber
		return nil
	}
}

// WithTopic sets the topic events are published on.
func WithTopic(topic string) Option {
	return func(n *Notifier) error {
		if topic == "" {
			return errors.New("progress: topic cannot be empty")
		}
		n.topic = topic
		return nil
	}
}

// WithRetention sets how long the last event of a document stage is
// remembered for the monotonic guard. Default is one hour.
func WithRetention(d time.Duration) Option {
	return func(n *Notifier) error {
		if d <= 0 {
			return errors.New("progress: retention must be positive")
		}
		n.retention = d
		return nil
	}
}

// WithBufferSize sets the channel buffer of each subscription. Default is 256.
func WithBufferSize(size int) Option {
	return func(n *Notifier) error {
		if size < 0 {
			size = 0
		}
		n.bufferSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) error {
		if logger == nil {
			logger = slog.Default()
		}
		n.logger = logger
		return nil
	}
}

// NewNotifier creates a Notifier.
func NewNotifier(opts ...Option) (*Notifier, error) {
	n := &Notifier{
		topic:      DefaultTopic,
		retention:  time.Hour,
		bufferSize: 256,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	n.logger = n.logger.With("component", "progress")

	if n.publisher == nil {
		// Blocking until ack keeps per-subscriber delivery in publish order.
		n.owned = gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            int64(n.bufferSize),
			BlockPublishUntilSubscriberAck: true,
		}, NewWatermillLogger(n.logger))
		n.publisher = n.owned
		n.subscriber = n.owned
	}
	n.last = cache.New(n.retention, n.retention)
	return n, nil
}

// Notify publishes e. Within one document stage, a current count lower than
// one already published is raised to it, and an event that changes nothing
// is coalesced away. Notify is safe for concurrent use.
func (n *Notifier) Notify(e Event) error {
	if n.closed.Load() {
		return ErrNotifierClosed
	}

	n.mu.Lock()
	key := streamKey(e.DocumentId, e.Stage)
	if v, ok := n.last.Get(key); ok {
		prev := v.(Event)
		if e.Progress.Current < prev.Progress.Current {
			e.Progress = NewProgress(prev.Progress.Current, max(e.Progress.Total, prev.Progress.Total))
		}
		e.CountsCreated.Nodes = max(e.CountsCreated.Nodes, prev.CountsCreated.Nodes)
		e.CountsCreated.Edges = max(e.CountsCreated.Edges, prev.CountsCreated.Edges)
		if sameState(e, prev) {
			n.mu.Unlock()
			return nil
		}
	}
	e.Seq = n.seq.Add(1)
	if e.EmittedAt.IsZero() {
		e.EmittedAt = time.Now().UTC()
	}
	n.last.SetDefault(key, e)
	n.mu.Unlock()

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode progress event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("documentId", e.DocumentId)
	msg.Metadata.Set("stage", string(e.Stage))

	if err := n.publisher.Publish(n.topic, msg); err != nil {
		n.logger.Warn("failed to publish progress event", "document", e.DocumentId, "stage", e.Stage, "err", err)
		return fmt.Errorf("publish progress event: %w", err)
	}
	return nil
}

// Last returns the most recent event published for a document stage.
func (n *Notifier) Last(documentID string, stage core.Stage) (Event, bool) {
	v, ok := n.last.Get(streamKey(documentID, stage))
	if !ok {
		return Event{}, false
	}
	return v.(Event), true
}

// Subscribe returns a channel of events published after the call. The
// channel closes when ctx is done or the notifier is closed. Stale and
// duplicate deliveries are dropped. The caller must drain the channel.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan Event, error) {
	if n.closed.Load() {
		return nil, ErrNotifierClosed
	}
	messages, err := n.subscriber.Subscribe(ctx, n.topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to progress: %w", err)
	}

	out := make(chan Event, n.bufferSize)
	go func() {
		defer close(out)
		guard := make(map[string]Event)
		for msg := range messages {
			var e Event
			if err := json.Unmarshal(msg.Payload, &e); err != nil {
				n.logger.Warn("dropping undecodable progress event", "uuid", msg.UUID, "err", err)
				msg.Ack()
				continue
			}
			msg.Ack()

			key := streamKey(e.DocumentId, e.Stage)
			if prev, ok := guard[key]; ok {
				if e.Seq <= prev.Seq || e.Progress.Current < prev.Progress.Current || sameState(e, prev) {
					continue
				}
			}
			guard[key] = e

			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close closes the notifier and, if it owns the transport, the transport too.
// Open subscriptions are closed.
func (n *Notifier) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	if n.owned != nil {
		return n.owned.Close()
	}
	return nil
}
