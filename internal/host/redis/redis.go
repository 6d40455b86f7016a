// Package redis provides a host backend on Redis pub/sub.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gezibash/pointcloud-transport/internal/backend"
	"github.com/gezibash/pointcloud-transport/internal/host"
	"github.com/gezibash/pointcloud-transport/internal/host/wire"
	"github.com/gezibash/pointcloud-transport/internal/observability"
	"github.com/gezibash/pointcloud-transport/pkg/transport"
)

const (
	// Name is the registered backend name.
	Name = "redis"

	KeyAddr        = "addr"
	KeyPassword    = "password"
	KeyDB          = "db"
	KeyDialTimeout = "dial_timeout"
	KeyKeyPrefix   = "key_prefix"
	KeyEncoding    = "encoding"
)

func init() {
	host.Register(Name, NewFactory, Defaults)
}

// Defaults returns the default configuration for the Redis backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyAddr:        "localhost:6379",
		KeyPassword:    "",
		KeyDB:          "0",
		KeyDialTimeout: "5s",
		KeyKeyPrefix:   "pct:",
		KeyEncoding:    "msgpack",
	}
}

// NewFactory creates a Redis host from a configuration map.
func NewFactory(ctx context.Context, config map[string]string) (host.Backend, error) {
	s := backend.NewSettings(Name, config)

	addr := s.String(KeyAddr, "")
	if addr == "" {
		return nil, backend.NewConfigError(Name, KeyAddr, "cannot be empty")
	}
	db, err := s.Int(KeyDB, 0)
	if err != nil {
		return nil, err
	}
	if db < 0 {
		return nil, backend.NewConfigErrorWithValue(Name, KeyDB, config[KeyDB], "must be non-negative")
	}
	dialTimeout, err := s.Duration(KeyDialTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	encName := s.String(KeyEncoding, "msgpack")
	enc, err := wire.ByName(encName)
	if err != nil {
		return nil, backend.NewConfigErrorWithValue(Name, KeyEncoding, encName, err.Error())
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    s.String(KeyPassword, ""),
		DB:          db,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, backend.NewConfigErrorWithCause(Name, KeyAddr, "failed to connect", err)
	}

	logger, metrics := transport.InstrumentationFrom(ctx)
	logger.InfoContext(ctx, "redis host connected", "addr", addr, "db", db)

	return NewWithClient(client, s.String(KeyKeyPrefix, "pct:"), enc, logger, metrics), nil
}

// Host is a Redis host backend. Topics map to pub/sub channels; publisher
// presence is kept in a set per topic.
type Host struct {
	client  *redis.Client
	prefix  string
	enc     wire.Encoder
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	pubs   map[*publication]struct{}
	closed bool
}

// NewWithClient creates a host around an existing client. Close closes the
// client.
func NewWithClient(client *redis.Client, prefix string, enc wire.Encoder, logger *slog.Logger, metrics *observability.Metrics) *Host {
	if enc == nil {
		enc = wire.Msgpack{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		client:  client,
		prefix:  prefix,
		enc:     enc,
		logger:  logger.With("component", "host", "backend", Name),
		metrics: metrics,
		subs:    make(map[*subscription]struct{}),
		pubs:    make(map[*publication]struct{}),
	}
}

func (h *Host) channel(topic string) string { return h.prefix + topic }

func (h *Host) presenceKey(topic string) string { return h.prefix + "publishers:" + topic }

func (h *Host) CreateSubscription(topic string, qos transport.QoS, handler func(transport.Message), opts transport.SubscriptionOptions) (transport.Subscription, error) {
	if topic == "" {
		return nil, fmt.Errorf("redis: empty topic")
	}
	if handler == nil {
		return nil, fmt.Errorf("redis: nil handler")
	}
	if opts.Group != "" {
		return nil, backend.NewConfigErrorWithValue(Name, "group", opts.Group, "delivery groups are not supported by redis pub/sub")
	}

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, host.ErrClosed
	}

	ctx := context.Background()
	ps := h.client.Subscribe(ctx, h.channel(topic))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", topic, err)
	}

	s := &subscription{host: h, topic: topic, ps: ps, done: make(chan struct{})}
	ch := ps.Channel(redis.WithChannelSize(qos.QueueDepth()))
	go s.run(ch, handler)

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("subscription created", "channel", h.channel(topic))
	return s, nil
}

func (h *Host) CreatePublication(topic string, _ transport.QoS) (transport.Publication, error) {
	if topic == "" {
		return nil, fmt.Errorf("redis: empty topic")
	}

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, host.ErrClosed
	}

	p := &publication{host: h, topic: topic, id: uuid.NewString()}
	if err := h.client.SAdd(context.Background(), h.presenceKey(topic), p.id).Err(); err != nil {
		return nil, fmt.Errorf("redis register publisher: %w", err)
	}

	h.mu.Lock()
	h.pubs[p] = struct{}{}
	h.mu.Unlock()
	return p, nil
}

// Close releases all subscriptions and publications, then closes the client.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := make([]*subscription, 0, len(h.subs))
	for s := range h.subs {
		subs = append(subs, s)
	}
	pubs := make([]*publication, 0, len(h.pubs))
	for p := range h.pubs {
		pubs = append(pubs, p)
	}
	h.mu.Unlock()

	for _, s := range subs {
		_ = s.Release()
	}
	for _, p := range pubs {
		_ = p.Release()
	}
	return h.client.Close()
}

type subscription struct {
	host     *Host
	topic    string
	ps       *redis.PubSub
	done     chan struct{}
	released atomic.Bool
}

func (s *subscription) run(ch <-chan *redis.Message, handler func(transport.Message)) {
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-ch:
			if !ok || s.released.Load() {
				return
			}
			handler(wire.NewMessage(s.host.enc, []byte(msg.Payload)))
		}
	}
}

func (s *subscription) Topic() string { return s.topic }

// PublisherCount returns the size of the topic's presence set.
func (s *subscription) PublisherCount() int {
	n, err := s.host.client.SCard(context.Background(), s.host.presenceKey(s.topic)).Result()
	if err != nil {
		s.host.logger.Debug("publisher count", "topic", s.topic, "error", err)
		return 0
	}
	return int(n)
}

func (s *subscription) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)

	s.host.mu.Lock()
	delete(s.host.subs, s)
	s.host.mu.Unlock()

	if err := s.ps.Close(); err != nil {
		return fmt.Errorf("redis unsubscribe: %w", err)
	}
	return nil
}

type publication struct {
	host     *Host
	topic    string
	id       string
	released atomic.Bool
}

func (p *publication) Topic() string { return p.topic }

// SubscriberCount asks Redis for the channel's subscriber count.
func (p *publication) SubscriberCount() int {
	channel := p.host.channel(p.topic)
	counts, err := p.host.client.PubSubNumSub(context.Background(), channel).Result()
	if err != nil {
		p.host.logger.Debug("subscriber count", "topic", p.topic, "error", err)
		return 0
	}
	return int(counts[channel])
}

func (p *publication) Publish(ctx context.Context, v any) error {
	if p.released.Load() {
		return host.ErrClosed
	}
	data, err := p.host.enc.Encode(v)
	if err != nil {
		return fmt.Errorf("redis: encode: %w", err)
	}
	if err := p.host.client.Publish(ctx, p.host.channel(p.topic), data).Err(); err != nil {
		p.host.metrics.CountError("redis.publish", "command")
		return fmt.Errorf("redis publish %s: %w", p.topic, err)
	}
	return nil
}

func (p *publication) Release() error {
	if !p.released.CompareAndSwap(false, true) {
		return nil
	}
	p.host.mu.Lock()
	delete(p.host.pubs, p)
	p.host.mu.Unlock()

	if err := p.host.client.SRem(context.Background(), p.host.presenceKey(p.topic), p.id).Err(); err != nil {
		return fmt.Errorf("redis unregister publisher: %w", err)
	}
	return nil
}
