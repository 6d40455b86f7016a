package transport

import "context"

// Message is an inbound wire message. Into decodes it into v, which must be
// a pointer to the transport's wire message type.
type Message interface {
	Into(v any) error
}

// Host owns topics and message delivery. Implementations live in
// internal/host.
type Host interface {
	CreateSubscription(topic string, qos QoS, handler func(Message), opts SubscriptionOptions) (Subscription, error)
	CreatePublication(topic string, qos QoS) (Publication, error)
}

// Subscription is a live wire subscription.
type Subscription interface {
	Topic() string
	PublisherCount() int
	// Release stops delivery. A handler call already running may still
	// complete after Release returns.
	Release() error
}

// Publication is a live wire publication.
type Publication interface {
	Topic() string
	SubscriberCount() int
	Publish(ctx context.Context, v any) error
	Release() error
}

// SubscriptionOptions are host-specific subscription settings.
type SubscriptionOptions struct {
	// Group requests load-balanced delivery: each message goes to one
	// member of the group. Empty means fan-out.
	Group string
}

// SubscriptionOption configures SubscriptionOptions.
type SubscriptionOption func(*SubscriptionOptions)

// WithGroup joins the subscription to a delivery group.
func WithGroup(name string) SubscriptionOption {
	return func(o *SubscriptionOptions) {
		o.Group = name
	}
}

// NewSubscriptionOptions applies opts to a zero SubscriptionOptions.
func NewSubscriptionOptions(opts ...SubscriptionOption) SubscriptionOptions {
	var o SubscriptionOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
