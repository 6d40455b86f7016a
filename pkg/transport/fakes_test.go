package transport

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gezibash/pointcloud-transport/pkg/pointcloud"
)

// fakeMessage assigns a stored value into the target pointer.
type fakeMessage struct {
	v   any
	err error
}

func (m fakeMessage) Into(v any) error {
	if m.err != nil {
		return m.err
	}
	dst := reflect.ValueOf(v)
	if dst.Kind() != reflect.Pointer {
		return errors.New("into: not a pointer")
	}
	src := reflect.ValueOf(m.v)
	if !src.Type().AssignableTo(dst.Elem().Type()) {
		return fmt.Errorf("into: cannot assign %s to %s", src.Type(), dst.Elem().Type())
	}
	dst.Elem().Set(src)
	return nil
}

type fakeSubscription struct {
	topic      string
	qos        QoS
	opts       SubscriptionOptions
	handler    func(Message)
	publishers int
	released   atomic.Bool
	releaseErr error
}

func (s *fakeSubscription) Topic() string       { return s.topic }
func (s *fakeSubscription) PublisherCount() int { return s.publishers }
func (s *fakeSubscription) Release() error {
	s.released.Store(true)
	return s.releaseErr
}

type fakePublication struct {
	topic       string
	subscribers int
	released    atomic.Bool

	mu   sync.Mutex
	sent []any
	err  error
}

func (p *fakePublication) Topic() string        { return p.topic }
func (p *fakePublication) SubscriberCount() int { return p.subscribers }
func (p *fakePublication) Release() error {
	p.released.Store(true)
	return nil
}

func (p *fakePublication) Publish(_ context.Context, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, v)
	return nil
}

type fakeHost struct {
	mu         sync.Mutex
	subs       []*fakeSubscription
	pubs       []*fakePublication
	err        error
	publishers int
}

func (h *fakeHost) CreateSubscription(topic string, qos QoS, handler func(Message), opts SubscriptionOptions) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	s := &fakeSubscription{topic: topic, qos: qos, opts: opts, handler: handler, publishers: h.publishers}
	h.subs = append(h.subs, s)
	return s, nil
}

func (h *fakeHost) CreatePublication(topic string, qos QoS) (Publication, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	p := &fakePublication{topic: topic, subscribers: 2}
	h.pubs = append(h.pubs, p)
	return p, nil
}

func (h *fakeHost) lastSub() *fakeSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subs[len(h.subs)-1]
}

// stringCodec treats a string as the wire message. "bad" fails to decode,
// "skip" decodes to nothing and "panic" panics.
type stringCodec struct {
	name    string
	decodes atomic.Int32
}

func (c *stringCodec) TransportName() string { return c.name }

func (c *stringCodec) Decode(msg string) (*pointcloud.PointCloud, error) {
	c.decodes.Add(1)
	switch msg {
	case "bad":
		return nil, errors.New("corrupt")
	case "skip":
		return nil, nil
	case "panic":
		panic("decoder exploded")
	}
	return &pointcloud.PointCloud{Header: pointcloud.Header{FrameID: msg}}, nil
}

func (c *stringCodec) Encode(cloud *pointcloud.PointCloud) (string, error) {
	if cloud.Header.FrameID == "" {
		return "", errors.New("empty frame")
	}
	return cloud.Header.FrameID, nil
}

type renamedCodec struct{ stringCodec }

func (c *renamedCodec) WireTopic(baseTopic string) string { return "custom" + baseTopic }
