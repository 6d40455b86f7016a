package transport

import (
	"context"
	"fmt"

	"github.com/gezibash/pointcloud-transport/pkg/pointcloud"
)

// Callback receives decoded point clouds. It may be invoked from a host
// delivery goroutine.
type Callback func(cloud *pointcloud.PointCloud)

// Role distinguishes the two plugin registries.
type Role int

const (
	RolePublisher Role = iota
	RoleSubscriber
)

func (r Role) String() string {
	switch r {
	case RolePublisher:
		return "publisher"
	case RoleSubscriber:
		return "subscriber"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Suffix returns the lookup name suffix for the role.
func (r Role) Suffix() string {
	if r == RoleSubscriber {
		return SubscriberSuffix
	}
	return PublisherSuffix
}

// Plugin is the behaviour shared by publisher and subscriber plugins.
type Plugin interface {
	TransportName() string
	Shutdown()
}

// SubscriberPlugin receives point clouds over one transport.
type SubscriberPlugin interface {
	Plugin
	Subscribe(host Host, baseTopic string, cb Callback, qos QoS, opts ...SubscriptionOption) error
	Topic() string
	NumPublishers() int
}

// PublisherPlugin sends point clouds over one transport.
type PublisherPlugin interface {
	Plugin
	Advertise(host Host, baseTopic string, qos QoS) error
	Publish(ctx context.Context, cloud *pointcloud.PointCloud) error
	Topic() string
	NumSubscribers() int
}

// Reliability is the delivery guarantee requested from a host.
type Reliability int

const (
	// BestEffort lets the host drop messages when a subscriber falls behind.
	BestEffort Reliability = iota
	// Reliable makes the host apply backpressure instead of dropping.
	Reliable
)

func (r Reliability) String() string {
	switch r {
	case BestEffort:
		return "best_effort"
	case Reliable:
		return "reliable"
	default:
		return fmt.Sprintf("reliability(%d)", int(r))
	}
}

// ParseReliability parses "best_effort" or "reliable".
func ParseReliability(s string) (Reliability, error) {
	switch s {
	case "best_effort", "":
		return BestEffort, nil
	case "reliable":
		return Reliable, nil
	default:
		return 0, fmt.Errorf("%w: unknown reliability %q", ErrInvalidQoS, s)
	}
}

// DefaultDepth is the history depth used when QoS.Depth is zero.
const DefaultDepth = 10

// QoS is passed through adapters to the host unchanged.
type QoS struct {
	Reliability Reliability
	// Depth is the per-subscription queue size. Zero means DefaultDepth.
	Depth int
}

// DefaultQoS returns best-effort delivery with the default depth.
func DefaultQoS() QoS {
	return QoS{Reliability: BestEffort, Depth: DefaultDepth}
}

// Validate rejects negative depths and unknown reliability values.
func (q QoS) Validate() error {
	if q.Depth < 0 {
		return fmt.Errorf("%w: depth %d is negative", ErrInvalidQoS, q.Depth)
	}
	if q.Reliability != BestEffort && q.Reliability != Reliable {
		return fmt.Errorf("%w: %s", ErrInvalidQoS, q.Reliability)
	}
	return nil
}

// QueueDepth returns Depth, or DefaultDepth when unset.
func (q QoS) QueueDepth() int {
	if q.Depth == 0 {
		return DefaultDepth
	}
	return q.Depth
}
