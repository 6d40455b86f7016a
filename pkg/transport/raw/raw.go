// Package raw provides the uncompressed transport. The wire message is the
// point cloud itself. Importing the package registers raw_pub and raw_sub.
package raw

import (
	"context"
	"fmt"

	"github.com/gezibash/pointcloud-transport/pkg/pointcloud"
	"github.com/gezibash/pointcloud-transport/pkg/transport"
)

// Name is the transport identity.
const Name = "raw"

// Package is the provenance reported for the raw plugins.
const Package = "pointcloud-transport"

func init() {
	transport.RegisterPublisher(transport.PublisherLookupName(Name), transport.Registration[transport.PublisherPlugin]{
		Package:     Package,
		Description: "Publishes point clouds without additional encoding.",
		Factory: func(ctx context.Context, _ map[string]string) (transport.PublisherPlugin, error) {
			return NewPublisher(transport.FromContext(ctx)), nil
		},
	})
	transport.RegisterSubscriber(transport.SubscriberLookupName(Name), transport.Registration[transport.SubscriberPlugin]{
		Package:     Package,
		Description: "Subscribes to point clouds sent without additional encoding.",
		Factory: func(ctx context.Context, _ map[string]string) (transport.SubscriberPlugin, error) {
			return NewSubscriber(transport.FromContext(ctx)), nil
		},
	})
}

// Codec passes clouds through unchanged, rejecting malformed ones.
type Codec struct{}

func (Codec) TransportName() string { return Name }

// Encode validates cloud and returns it as the wire message.
func (Codec) Encode(cloud *pointcloud.PointCloud) (*pointcloud.PointCloud, error) {
	if err := cloud.Validate(); err != nil {
		return nil, err
	}
	return cloud, nil
}

// Decode returns msg if it is well formed.
func (Codec) Decode(msg *pointcloud.PointCloud) (*pointcloud.PointCloud, error) {
	if msg == nil {
		return nil, nil
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("raw: %w", err)
	}
	return msg, nil
}

// NewPublisher returns a raw publisher plugin.
func NewPublisher(opts ...transport.Option) *transport.SimplePublisher[*pointcloud.PointCloud] {
	return transport.NewSimplePublisher[*pointcloud.PointCloud](Codec{}, opts...)
}

// NewSubscriber returns a raw subscriber plugin.
func NewSubscriber(opts ...transport.Option) *transport.SimpleSubscriber[*pointcloud.PointCloud] {
	return transport.NewSimpleSubscriber[*pointcloud.PointCloud](Codec{}, opts...)
}
