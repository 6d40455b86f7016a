package transport

import (
	"fmt"
	"sync/atomic"

	"github.com/gezibash/pointcloud-transport/internal/observability"
	"github.com/gezibash/pointcloud-transport/pkg/pointcloud"
)

// Decoder turns one wire message into at most one point cloud. A nil cloud
// with a nil error drops the message without complaint.
type Decoder[M any] interface {
	TransportName() string
	Decode(msg M) (*pointcloud.PointCloud, error)
}

// TopicNamer lets a Decoder or Encoder override the default
// "<base>/<transport>" wire topic.
type TopicNamer interface {
	WireTopic(baseTopic string) string
}

// subscriberHandle binds one wire subscription to one callback.
type subscriberHandle struct {
	sub      Subscription
	cb       Callback
	released atomic.Bool
}

// SimpleSubscriber adapts a Decoder into a SubscriberPlugin. Delivery may
// happen on host goroutines; Subscribe and Shutdown are expected to be
// called from one control goroutine.
type SimpleSubscriber[M any] struct {
	dec  Decoder[M]
	opts adapterOptions

	impl   atomic.Pointer[subscriberHandle]
	closed atomic.Bool
}

// NewSimpleSubscriber returns an inactive subscriber around dec.
func NewSimpleSubscriber[M any](dec Decoder[M], opts ...Option) *SimpleSubscriber[M] {
	return &SimpleSubscriber[M]{
		dec:  dec,
		opts: newAdapterOptions(dec.TransportName(), RoleSubscriber.String(), opts),
	}
}

func (s *SimpleSubscriber[M]) TransportName() string { return s.dec.TransportName() }

// Topic returns the wire topic, or "" when not subscribed.
func (s *SimpleSubscriber[M]) Topic() string {
	if h := s.impl.Load(); h != nil {
		return h.sub.Topic()
	}
	return ""
}

// NumPublishers returns the publishers matched on the wire topic, or 0 when
// not subscribed.
func (s *SimpleSubscriber[M]) NumPublishers() int {
	if h := s.impl.Load(); h != nil {
		return h.sub.PublisherCount()
	}
	return 0
}

// Subscribe creates the wire subscription for baseTopic. An existing
// subscription is released first. Host errors are returned as is.
func (s *SimpleSubscriber[M]) Subscribe(host Host, baseTopic string, cb Callback, qos QoS, opts ...SubscriptionOption) error {
	if s.closed.Load() {
		return ErrShutdown
	}
	if host == nil {
		return fmt.Errorf("%w: nil host", ErrInvalidArgument)
	}
	if cb == nil {
		return fmt.Errorf("%w: nil callback", ErrInvalidArgument)
	}
	if err := qos.Validate(); err != nil {
		return err
	}

	s.release()

	topic := s.wireTopic(baseTopic)
	h := &subscriberHandle{cb: cb}
	sub, err := host.CreateSubscription(topic, qos, func(m Message) { s.deliver(h, m) }, NewSubscriptionOptions(opts...))
	if err != nil {
		return fmt.Errorf("create subscription %q: %w", topic, err)
	}
	h.sub = sub
	s.impl.Store(h)

	if s.closed.Load() {
		s.release()
		return ErrShutdown
	}

	s.opts.logger.Debug("subscribed", "topic", topic, "reliability", qos.Reliability.String(), "depth", qos.QueueDepth())
	return nil
}

// Shutdown releases the wire subscription. The subscriber cannot be used
// again afterwards. Safe to call more than once.
func (s *SimpleSubscriber[M]) Shutdown() {
	s.closed.Store(true)
	s.release()
}

func (s *SimpleSubscriber[M]) release() {
	h := s.impl.Swap(nil)
	if h == nil {
		return
	}
	h.released.Store(true)
	if err := h.sub.Release(); err != nil {
		s.opts.logger.Warn("release subscription", "topic", h.sub.Topic(), "error", err)
	}
}

func (s *SimpleSubscriber[M]) wireTopic(baseTopic string) string {
	if n, ok := any(s.dec).(TopicNamer); ok {
		return n.WireTopic(baseTopic)
	}
	return WireTopic(baseTopic, s.dec.TransportName())
}

// deliver decodes one message for h. Every failure drops the message and
// leaves the subscription running.
func (s *SimpleSubscriber[M]) deliver(h *subscriberHandle, m Message) {
	if h.released.Load() {
		return
	}

	name := s.dec.TransportName()
	defer func() {
		if rec := recover(); rec != nil {
			s.opts.logger.Warn("dropping message: panic in decode", "panic", rec)
			s.opts.metrics.CountMessage(name, observability.OutcomeDropped)
		}
	}()

	var msg M
	if err := m.Into(&msg); err != nil {
		s.opts.logger.Debug("dropping message: unmarshal", "error", err)
		s.opts.metrics.CountMessage(name, observability.OutcomeDropped)
		return
	}

	cloud, err := s.dec.Decode(msg)
	if err != nil {
		s.opts.logger.Debug("dropping message: decode", "error", err)
		s.opts.metrics.CountMessage(name, observability.OutcomeDropped)
		return
	}
	if cloud == nil {
		s.opts.metrics.CountMessage(name, observability.OutcomeDropped)
		return
	}

	h.cb(cloud)
	s.opts.metrics.CountMessage(name, observability.OutcomeDelivered)
}
