// Package memory provides an in-process host backend. Messages are still
// serialized with a wire encoding so delivery behaves like a network host.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gezibash/pointcloud-transport/internal/backend"
	"github.com/gezibash/pointcloud-transport/internal/host"
	"github.com/gezibash/pointcloud-transport/internal/host/wire"
	"github.com/gezibash/pointcloud-transport/internal/observability"
	"github.com/gezibash/pointcloud-transport/pkg/transport"
)

const (
	// Name is the registered backend name.
	Name = "memory"

	KeyEncoding = "encoding"
)

func init() {
	host.Register(Name, NewFactory, Defaults)
}

// Defaults returns the default configuration for the memory backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyEncoding: "msgpack",
	}
}

// NewFactory creates a Bus from a configuration map. The context may carry
// instrumentation set with transport.WithInstrumentation.
func NewFactory(ctx context.Context, config map[string]string) (host.Backend, error) {
	s := backend.NewSettings(Name, config)
	name := s.String(KeyEncoding, "msgpack")
	enc, err := wire.ByName(name)
	if err != nil {
		return nil, backend.NewConfigErrorWithValue(Name, KeyEncoding, name, err.Error())
	}
	logger, metrics := transport.InstrumentationFrom(ctx)
	return NewBus(enc, logger, metrics), nil
}

// Bus is an in-process message bus.
type Bus struct {
	enc     wire.Encoder
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	topics map[string]*topicState
	closed bool
}

type topicState struct {
	subs       []*subscription
	publishers int
	next       map[string]int // round-robin cursor per group
}

// NewBus creates an empty bus. logger and metrics may be nil.
func NewBus(enc wire.Encoder, logger *slog.Logger, metrics *observability.Metrics) *Bus {
	if enc == nil {
		enc = wire.Msgpack{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		enc:     enc,
		logger:  logger.With("component", "host", "backend", Name),
		metrics: metrics,
		topics:  make(map[string]*topicState),
	}
}

func (b *Bus) topic(name string) *topicState {
	t, ok := b.topics[name]
	if !ok {
		t = &topicState{next: make(map[string]int)}
		b.topics[name] = t
	}
	return t
}

func (b *Bus) CreateSubscription(topic string, qos transport.QoS, handler func(transport.Message), opts transport.SubscriptionOptions) (transport.Subscription, error) {
	if topic == "" {
		return nil, fmt.Errorf("memory: empty topic")
	}
	if handler == nil {
		return nil, fmt.Errorf("memory: nil handler")
	}

	s := &subscription{
		bus:      b,
		topic:    topic,
		group:    opts.Group,
		reliable: qos.Reliability == transport.Reliable,
		queue:    make(chan []byte, qos.QueueDepth()),
		handler:  handler,
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, host.ErrClosed
	}
	t := b.topic(topic)
	t.subs = append(t.subs, s)
	b.mu.Unlock()

	s.wg.Add(1)
	go s.run()

	b.logger.Debug("subscription created", "topic", topic, "group", opts.Group, "depth", cap(s.queue))
	return s, nil
}

func (b *Bus) CreatePublication(topic string, _ transport.QoS) (transport.Publication, error) {
	if topic == "" {
		return nil, fmt.Errorf("memory: empty topic")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, host.ErrClosed
	}
	b.topic(topic).publishers++
	return &publication{bus: b, topic: topic}, nil
}

// Close releases every subscription. Further calls fail with host.ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var subs []*subscription
	for _, t := range b.topics {
		subs = append(subs, t.subs...)
	}
	b.mu.Unlock()

	for _, s := range subs {
		_ = s.Release()
	}
	return nil
}

// targets picks the receivers for one message: every ungrouped subscriber
// plus one member of each group.
func (b *Bus) targets(topic string) []*subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[topic]
	if !ok {
		return nil
	}

	var out []*subscription
	groups := make(map[string][]*subscription)
	var order []string
	for _, s := range t.subs {
		if s.group == "" {
			out = append(out, s)
			continue
		}
		if _, seen := groups[s.group]; !seen {
			order = append(order, s.group)
		}
		groups[s.group] = append(groups[s.group], s)
	}
	for _, g := range order {
		members := groups[g]
		i := t.next[g] % len(members)
		t.next[g] = i + 1
		out = append(out, members[i])
	}
	return out
}

func (b *Bus) publish(ctx context.Context, topic string, v any) error {
	data, err := b.enc.Encode(v)
	if err != nil {
		return fmt.Errorf("memory: encode: %w", err)
	}
	for _, s := range b.targets(topic) {
		if err := s.enqueue(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) removeSubscription(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[s.topic]
	if !ok {
		return
	}
	for i, other := range t.subs {
		if other == s {
			t.subs = append(t.subs[:i], t.subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) publisherCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[topic]; ok {
		return t.publishers
	}
	return 0
}

func (b *Bus) subscriberCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.topics[topic]; ok {
		return len(t.subs)
	}
	return 0
}

type subscription struct {
	bus      *Bus
	topic    string
	group    string
	reliable bool
	queue    chan []byte
	handler  func(transport.Message)

	done     chan struct{}
	released atomic.Bool
	wg       sync.WaitGroup
}

func (s *subscription) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case data := <-s.queue:
			if s.released.Load() {
				return
			}
			s.handler(wire.NewMessage(s.bus.enc, data))
		}
	}
}

func (s *subscription) enqueue(ctx context.Context, data []byte) error {
	if s.released.Load() {
		return nil
	}
	if !s.reliable {
		select {
		case s.queue <- data:
		default:
			s.bus.metrics.CountError("memory.deliver", "queue_full")
			s.bus.logger.Debug("queue full, dropping message", "topic", s.topic)
		}
		return nil
	}
	select {
	case s.queue <- data:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) PublisherCount() int { return s.bus.publisherCount(s.topic) }

// Release stops delivery without waiting for a running handler, so it is safe
// to call from inside one.
func (s *subscription) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)
	s.bus.removeSubscription(s)
	return nil
}

// Wait blocks until the delivery goroutine has exited.
func (s *subscription) Wait() { s.wg.Wait() }

type publication struct {
	bus      *Bus
	topic    string
	released atomic.Bool
}

func (p *publication) Topic() string { return p.topic }

func (p *publication) SubscriberCount() int { return p.bus.subscriberCount(p.topic) }

func (p *publication) Publish(ctx context.Context, v any) error {
	if p.released.Load() {
		return host.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.bus.publish(ctx, p.topic, v)
}

func (p *publication) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return nil
	}
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	if t, ok := p.bus.topics[p.topic]; ok && t.publishers > 0 {
		t.publishers--
	}
	return nil
}
