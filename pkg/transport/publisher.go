package transport

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gezibash/pointcloud-transport/internal/observability"
	"github.com/gezibash/pointcloud-transport/pkg/pointcloud"
)

// Encoder turns a point cloud into the transport's wire message.
type Encoder[M any] interface {
	TransportName() string
	Encode(cloud *pointcloud.PointCloud) (M, error)
}

// SimplePublisher adapts an Encoder into a PublisherPlugin.
type SimplePublisher[M any] struct {
	enc  Encoder[M]
	opts adapterOptions

	pub    atomic.Pointer[publication]
	closed atomic.Bool
}

// publication boxes the interface so it can sit in an atomic.Pointer.
type publication struct {
	Publication
}

// NewSimplePublisher returns an unadvertised publisher around enc.
func NewSimplePublisher[M any](enc Encoder[M], opts ...Option) *SimplePublisher[M] {
	return &SimplePublisher[M]{
		enc:  enc,
		opts: newAdapterOptions(enc.TransportName(), RolePublisher.String(), opts),
	}
}

func (p *SimplePublisher[M]) TransportName() string { return p.enc.TransportName() }

// Topic returns the wire topic, or "" when not advertised.
func (p *SimplePublisher[M]) Topic() string {
	if pub := p.pub.Load(); pub != nil {
		return pub.Topic()
	}
	return ""
}

// NumSubscribers returns the subscribers matched on the wire topic, or 0
// when not advertised.
func (p *SimplePublisher[M]) NumSubscribers() int {
	if pub := p.pub.Load(); pub != nil {
		return pub.SubscriberCount()
	}
	return 0
}

// Advertise creates the wire publication for baseTopic, replacing any
// previous one.
func (p *SimplePublisher[M]) Advertise(host Host, baseTopic string, qos QoS) error {
	if p.closed.Load() {
		return ErrShutdown
	}
	if host == nil {
		return fmt.Errorf("%w: nil host", ErrInvalidArgument)
	}
	if err := qos.Validate(); err != nil {
		return err
	}

	p.release()

	topic := WireTopic(baseTopic, p.enc.TransportName())
	if n, ok := any(p.enc).(TopicNamer); ok {
		topic = n.WireTopic(baseTopic)
	}
	pub, err := host.CreatePublication(topic, qos)
	if err != nil {
		return fmt.Errorf("create publication %q: %w", topic, err)
	}
	p.pub.Store(&publication{Publication: pub})

	p.opts.logger.Debug("advertised", "topic", topic)
	return nil
}

// Publish encodes cloud and sends it on the advertised topic.
func (p *SimplePublisher[M]) Publish(ctx context.Context, cloud *pointcloud.PointCloud) error {
	if cloud == nil {
		return fmt.Errorf("%w: nil cloud", ErrInvalidArgument)
	}
	pub := p.pub.Load()
	if pub == nil {
		if p.closed.Load() {
			return ErrShutdown
		}
		return ErrNotAdvertised
	}

	name := p.enc.TransportName()
	msg, err := p.enc.Encode(cloud)
	if err != nil {
		p.opts.metrics.CountError("publish", "encode")
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := pub.Publish(ctx, msg); err != nil {
		p.opts.metrics.CountError("publish", "host")
		return fmt.Errorf("publish %q: %w", pub.Topic(), err)
	}
	p.opts.metrics.CountMessage(name, observability.OutcomePublished)
	return nil
}

// Shutdown releases the publication. Safe to call more than once.
func (p *SimplePublisher[M]) Shutdown() {
	p.closed.Store(true)
	p.release()
}

func (p *SimplePublisher[M]) release() {
	pub := p.pub.Swap(nil)
	if pub == nil {
		return
	}
	if err := pub.Release(); err != nil {
		p.opts.logger.Warn("release publication", "topic", pub.Topic(), "error", err)
	}
}
