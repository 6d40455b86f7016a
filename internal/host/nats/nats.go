// Package nats provides a host backend on core NATS subjects.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/gezibash/pointcloud-transport/internal/backend"
	"github.com/gezibash/pointcloud-transport/internal/host"
	"github.com/gezibash/pointcloud-transport/internal/host/wire"
	"github.com/gezibash/pointcloud-transport/internal/observability"
	"github.com/gezibash/pointcloud-transport/pkg/transport"
)

const (
	// Name is the registered backend name.
	Name = "nats"

	KeyURL            = "url"
	KeyName           = "name"
	KeyConnectTimeout = "connect_timeout"
	KeyEncoding       = "encoding"
	KeyCompress       = "compress"
	KeyPresenceTTL    = "presence_ttl"

	// HeaderEncoding names the payload encoding, with a "+s2" suffix when
	// compressed.
	HeaderEncoding = "Pct-Encoding"
	// HeaderPublisher carries the publishing publication's id.
	HeaderPublisher = "Pct-Publisher"

	compressedSuffix = "+s2"
)

// ErrInvalidTopic is returned for topics that do not map to a NATS subject.
var ErrInvalidTopic = errors.New("invalid topic")

func init() {
	host.Register(Name, NewFactory, Defaults)
}

// Defaults returns the default configuration for the NATS backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyURL:            nats.DefaultURL,
		KeyName:           "pct",
		KeyConnectTimeout: "5s",
		KeyEncoding:       "msgpack",
		KeyCompress:       "false",
		KeyPresenceTTL:    "5s",
	}
}

// Options are the parsed backend settings.
type Options struct {
	URL            string
	Name           string
	ConnectTimeout time.Duration
	Encoder        wire.Encoder
	Compress       bool
	PresenceTTL    time.Duration
}

// ParseOptions reads Options from a configuration map.
func ParseOptions(config map[string]string) (Options, error) {
	s := backend.NewSettings(Name, config)
	opts := Options{
		URL:  s.String(KeyURL, nats.DefaultURL),
		Name: s.String(KeyName, "pct"),
	}

	var err error
	if opts.ConnectTimeout, err = s.Duration(KeyConnectTimeout, 5*time.Second); err != nil {
		return opts, err
	}
	if opts.PresenceTTL, err = s.Duration(KeyPresenceTTL, 5*time.Second); err != nil {
		return opts, err
	}
	if opts.PresenceTTL <= 0 {
		return opts, backend.NewConfigErrorWithValue(Name, KeyPresenceTTL, config[KeyPresenceTTL], "must be positive")
	}
	if opts.Compress, err = s.Bool(KeyCompress, false); err != nil {
		return opts, err
	}

	encName := s.String(KeyEncoding, "msgpack")
	if opts.Encoder, err = wire.ByName(encName); err != nil {
		return opts, backend.NewConfigErrorWithValue(Name, KeyEncoding, encName, err.Error())
	}
	return opts, nil
}

// NewFactory connects to NATS using a configuration map.
func NewFactory(ctx context.Context, config map[string]string) (host.Backend, error) {
	opts, err := ParseOptions(config)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(opts.URL, nats.Name(opts.Name), nats.Timeout(opts.ConnectTimeout))
	if err != nil {
		return nil, backend.NewConfigErrorWithCause(Name, KeyURL, "failed to connect", err)
	}

	logger, metrics := transport.InstrumentationFrom(ctx)
	logger.InfoContext(ctx, "nats host connected", "url", nc.ConnectedUrlRedacted(), "encoding", opts.Encoder.Name(), "compress", opts.Compress)

	h := NewWithConn(nc, opts, logger, metrics)
	h.ownsConn = true
	return h, nil
}

// Host is a NATS host backend.
type Host struct {
	nc       *nats.Conn
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
	ownsConn bool

	mu     sync.Mutex
	local  map[string]int // subscriptions per topic on this connection
	closed bool
}

// NewWithConn wraps an existing connection. The connection is not closed by
// Close.
func NewWithConn(nc *nats.Conn, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Host {
	if opts.Encoder == nil {
		opts.Encoder = wire.Msgpack{}
	}
	if opts.PresenceTTL <= 0 {
		opts.PresenceTTL = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		nc:      nc,
		opts:    opts,
		logger:  logger.With("component", "host", "backend", Name),
		metrics: metrics,
		local:   make(map[string]int),
	}
}

// Subject maps a slash-separated topic to a NATS subject.
func Subject(topic string) (string, error) {
	trimmed := strings.Trim(topic, "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	tokens := strings.Split(trimmed, "/")
	for _, tok := range tokens {
		if tok == "" || strings.ContainsAny(tok, ". *>\t\r\n") {
			return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		}
	}
	return strings.Join(tokens, "."), nil
}

func (h *Host) CreateSubscription(topic string, qos transport.QoS, handler func(transport.Message), opts transport.SubscriptionOptions) (transport.Subscription, error) {
	subject, err := Subject(topic)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("nats: nil handler")
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, host.ErrClosed
	}
	h.mu.Unlock()

	s := &subscription{host: h, topic: topic, presence: newPresence(h.opts.PresenceTTL)}
	cb := func(msg *nats.Msg) {
		if s.released.Load() {
			return
		}
		s.presence.see(msg.Header.Get(HeaderPublisher), time.Now())
		handler(h.decode(msg))
	}

	var ns *nats.Subscription
	if opts.Group != "" {
		ns, err = h.nc.QueueSubscribe(subject, opts.Group, cb)
	} else {
		ns, err = h.nc.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	if qos.Reliability == transport.BestEffort {
		if err := ns.SetPendingLimits(qos.QueueDepth(), -1); err != nil {
			_ = ns.Unsubscribe()
			return nil, fmt.Errorf("nats pending limits: %w", err)
		}
	}
	s.sub = ns

	h.mu.Lock()
	h.local[topic]++
	h.mu.Unlock()

	h.logger.Debug("subscription created", "subject", subject, "group", opts.Group)
	return s, nil
}

// decode turns a NATS message into a transport message. Payloads that
// cannot be unpacked become messages whose Into fails.
func (h *Host) decode(msg *nats.Msg) transport.Message {
	encName := msg.Header.Get(HeaderEncoding)
	base, compressed := strings.CutSuffix(encName, compressedSuffix)

	enc := h.opts.Encoder
	if base != "" {
		var err error
		if enc, err = wire.ByName(base); err != nil {
			h.metrics.CountError("nats.decode", "encoding")
			return wire.ErrMessage(err)
		}
	}

	data := msg.Data
	if compressed {
		var err error
		if data, err = wire.Decompress(data); err != nil {
			h.metrics.CountError("nats.decode", "decompress")
			return wire.ErrMessage(err)
		}
	}
	return wire.NewMessage(enc, data)
}

// encode builds the outgoing NATS message for v.
func (h *Host) encode(subject, publisherID string, v any) (*nats.Msg, error) {
	data, err := h.opts.Encoder.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("nats: encode: %w", err)
	}
	encName := h.opts.Encoder.Name()
	if h.opts.Compress {
		data = wire.Compress(data)
		encName += compressedSuffix
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	msg.Header.Set(HeaderEncoding, encName)
	msg.Header.Set(HeaderPublisher, publisherID)
	return msg, nil
}

func (h *Host) CreatePublication(topic string, _ transport.QoS) (transport.Publication, error) {
	subject, err := Subject(topic)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, host.ErrClosed
	}
	return &publication{host: h, topic: topic, subject: subject, id: uuid.NewString()}, nil
}

// Close drains the connection if the host opened it.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	if !h.ownsConn {
		return nil
	}
	if err := h.nc.Drain(); err != nil {
		h.nc.Close()
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

func (h *Host) localCount(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.local[topic]
}

type subscription struct {
	host     *Host
	topic    string
	sub      *nats.Subscription
	presence *presence
	released atomic.Bool
}

func (s *subscription) Topic() string { return s.topic }

// PublisherCount returns the publishers heard from within the presence
// window. NATS has no publisher registry, so silent publishers are not
// counted.
func (s *subscription) PublisherCount() int {
	return s.presence.count(time.Now())
}

func (s *subscription) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	s.host.mu.Lock()
	if s.host.local[s.topic] > 0 {
		s.host.local[s.topic]--
	}
	s.host.mu.Unlock()

	if err := s.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) && !errors.Is(err, nats.ErrBadSubscription) {
		return fmt.Errorf("nats unsubscribe: %w", err)
	}
	return nil
}

type publication struct {
	host     *Host
	topic    string
	subject  string
	id       string
	released atomic.Bool
}

func (p *publication) Topic() string { return p.topic }

// SubscriberCount counts subscriptions made through this host. NATS does not
// report remote interest.
func (p *publication) SubscriberCount() int { return p.host.localCount(p.topic) }

func (p *publication) Publish(ctx context.Context, v any) error {
	if p.released.Load() {
		return host.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := p.host.encode(p.subject, p.id, v)
	if err != nil {
		return err
	}
	if err := p.host.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", p.subject, err)
	}
	return nil
}

func (p *publication) Release() error {
	p.released.Store(true)
	return nil
}

// presence tracks when each publisher was last heard from.
type presence struct {
	ttl time.Duration

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func newPresence(ttl time.Duration) *presence {
	return &presence{ttl: ttl, lastSeen: make(map[string]time.Time)}
}

func (p *presence) see(id string, now time.Time) {
	if id == "" {
		id = "anonymous"
	}
	p.mu.Lock()
	p.lastSeen[id] = now
	p.mu.Unlock()
}

func (p *presence) count(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for id, seen := range p.lastSeen {
		if now.Sub(seen) > p.ttl {
			delete(p.lastSeen, id)
			continue
		}
		n++
	}
	return n
}
