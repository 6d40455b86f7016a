package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gezibash/pointcloud-transport/internal/observability"
	"github.com/gezibash/pointcloud-transport/pkg/pointcloud"
)

func TestSimplePublisherAdvertisePublish(t *testing.T) {
	m := observability.NewMetrics()
	host := &fakeHost{}
	p := NewSimplePublisher[string](&stringCodec{name: "str"}, WithMetrics(m))

	if p.Topic() != "" || p.NumSubscribers() != 0 {
		t.Fatal("unadvertised publisher should be inactive")
	}
	if err := p.Publish(context.Background(), &pointcloud.PointCloud{}); !errors.Is(err, ErrNotAdvertised) {
		t.Fatalf("Publish before Advertise = %v", err)
	}

	if err := p.Advertise(host, "/points", DefaultQoS()); err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	if p.Topic() != "/points/str" {
		t.Errorf("Topic = %q", p.Topic())
	}
	if p.NumSubscribers() != 2 {
		t.Errorf("NumSubscribers = %d", p.NumSubscribers())
	}

	cloud := &pointcloud.PointCloud{Header: pointcloud.Header{FrameID: "lidar"}}
	if err := p.Publish(context.Background(), cloud); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	pub := host.pubs[0]
	if len(pub.sent) != 1 || pub.sent[0] != "lidar" {
		t.Errorf("sent = %v", pub.sent)
	}
	if got := testutil.ToFloat64(m.MessagesTotal.WithLabelValues("str", observability.OutcomePublished)); got != 1 {
		t.Errorf("published counter = %v", got)
	}

	p.Shutdown()
	p.Shutdown()
	if !pub.released.Load() {
		t.Error("publication not released")
	}
	if p.Topic() != "" {
		t.Errorf("Topic after Shutdown = %q", p.Topic())
	}
	if err := p.Publish(context.Background(), cloud); !errors.Is(err, ErrShutdown) {
		t.Errorf("Publish after Shutdown = %v", err)
	}
	if err := p.Advertise(host, "/points", DefaultQoS()); !errors.Is(err, ErrShutdown) {
		t.Errorf("Advertise after Shutdown = %v", err)
	}
}

func TestSimplePublisherErrors(t *testing.T) {
	ctx := context.Background()

	p := NewSimplePublisher[string](&stringCodec{name: "str"})
	if err := p.Advertise(nil, "/points", DefaultQoS()); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil host = %v", err)
	}
	if err := p.Advertise(&fakeHost{}, "/points", QoS{Depth: -1}); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos = %v", err)
	}

	hostErr := errors.New("no route")
	if err := p.Advertise(&fakeHost{err: hostErr}, "/points", DefaultQoS()); !errors.Is(err, hostErr) {
		t.Errorf("host error = %v", err)
	}

	host := &fakeHost{}
	if err := p.Advertise(host, "/points", DefaultQoS()); err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(ctx, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil cloud = %v", err)
	}
	if err := p.Publish(ctx, &pointcloud.PointCloud{}); err == nil {
		t.Error("expected encode error")
	}

	sendErr := errors.New("broken pipe")
	host.pubs[0].err = sendErr
	if err := p.Publish(ctx, &pointcloud.PointCloud{Header: pointcloud.Header{FrameID: "x"}}); !errors.Is(err, sendErr) {
		t.Errorf("send error = %v", err)
	}
}

func TestSimplePublisherReadvertiseReplaces(t *testing.T) {
	host := &fakeHost{}
	p := NewSimplePublisher[string](&renamedCodec{stringCodec{name: "str"}})
	if err := p.Advertise(host, "/a", DefaultQoS()); err != nil {
		t.Fatal(err)
	}
	if err := p.Advertise(host, "/b", DefaultQoS()); err != nil {
		t.Fatal(err)
	}
	if !host.pubs[0].released.Load() {
		t.Error("first publication not released")
	}
	if p.Topic() != "custom/b" {
		t.Errorf("Topic = %q", p.Topic())
	}
}
