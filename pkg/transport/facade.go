package transport

import "context"

// Subscribe resolves the "<transportName>_sub" plugin and subscribes it to
// baseTopic. The returned plugin owns the subscription; call Shutdown to
// release it.
func Subscribe(ctx context.Context, host Host, baseTopic, transportName string, cb Callback, qos QoS, opts ...SubscriptionOption) (SubscriberPlugin, error) {
	sub, err := Subscribers.New(ctx, SubscriberLookupName(transportName), nil)
	if err != nil {
		return nil, err
	}
	if err := sub.Subscribe(host, baseTopic, cb, qos, opts...); err != nil {
		sub.Shutdown()
		return nil, err
	}
	return sub, nil
}

// Advertise resolves the "<transportName>_pub" plugin and advertises it on
// baseTopic.
func Advertise(ctx context.Context, host Host, baseTopic, transportName string, qos QoS) (PublisherPlugin, error) {
	pub, err := Publishers.New(ctx, PublisherLookupName(transportName), nil)
	if err != nil {
		return nil, err
	}
	if err := pub.Advertise(host, baseTopic, qos); err != nil {
		pub.Shutdown()
		return nil, err
	}
	return pub, nil
}
