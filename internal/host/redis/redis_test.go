package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/gezibash/pointcloud-transport/internal/backend"
	"github.com/gezibash/pointcloud-transport/internal/host"
	"github.com/gezibash/pointcloud-transport/pkg/transport"
)

func TestFactoryConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   map[string]string
		field string
	}{
		{"empty addr", map[string]string{KeyAddr: ""}, KeyAddr},
		{"bad db", map[string]string{KeyAddr: "localhost:6379", KeyDB: "one"}, KeyDB},
		{"negative db", map[string]string{KeyAddr: "localhost:6379", KeyDB: "-1"}, KeyDB},
		{"bad timeout", map[string]string{KeyAddr: "localhost:6379", KeyDialTimeout: "soon"}, KeyDialTimeout},
		{"bad encoding", map[string]string{KeyAddr: "localhost:6379", KeyEncoding: "bson"}, KeyEncoding},
		{"unreachable", map[string]string{KeyAddr: "127.0.0.1:1", KeyDialTimeout: "200ms"}, KeyAddr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFactory(context.Background(), tt.cfg)
			var ce *backend.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Backend != Name || ce.Field != tt.field {
				t.Errorf("ConfigError = %+v, want field %q", ce, tt.field)
			}
		})
	}
}

func newOfflineHost(t *testing.T) *Host {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	h := NewWithClient(client, "test:", nil, nil, nil)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestGroupsRejected(t *testing.T) {
	h := newOfflineHost(t)
	_, err := h.CreateSubscription("/scan/raw", transport.DefaultQoS(), func(transport.Message) {}, transport.SubscriptionOptions{Group: "workers"})
	var ce *backend.ConfigError
	if !errors.As(err, &ce) || ce.Field != "group" {
		t.Fatalf("expected group ConfigError, got %v", err)
	}
}

func TestArgumentErrors(t *testing.T) {
	h := newOfflineHost(t)
	if _, err := h.CreateSubscription("", transport.DefaultQoS(), func(transport.Message) {}, transport.SubscriptionOptions{}); err == nil {
		t.Error("expected error for empty topic")
	}
	if _, err := h.CreateSubscription("/t", transport.DefaultQoS(), nil, transport.SubscriptionOptions{}); err == nil {
		t.Error("expected error for nil handler")
	}
	if _, err := h.CreatePublication("", transport.DefaultQoS()); err == nil {
		t.Error("expected error for empty topic")
	}
}

func TestClosedHost(t *testing.T) {
	h := newOfflineHost(t)
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := h.CreatePublication("/t", transport.DefaultQoS()); !errors.Is(err, host.ErrClosed) {
		t.Errorf("CreatePublication after Close = %v", err)
	}
	if _, err := h.CreateSubscription("/t", transport.DefaultQoS(), func(transport.Message) {}, transport.SubscriptionOptions{}); !errors.Is(err, host.ErrClosed) {
		t.Errorf("CreateSubscription after Close = %v", err)
	}
}

func TestKeys(t *testing.T) {
	h := newOfflineHost(t)
	if got := h.channel("/scan/raw"); got != "test:/scan/raw" {
		t.Errorf("channel = %q", got)
	}
	if got := h.presenceKey("/scan/raw"); got != "test:publishers:/scan/raw" {
		t.Errorf("presenceKey = %q", got)
	}
}

func TestRegistered(t *testing.T) {
	if !host.IsRegistered(Name) {
		t.Fatal("redis backend not registered")
	}
	if host.GetDefaults(Name)[KeyKeyPrefix] != "pct:" {
		t.Errorf("defaults = %v", host.GetDefaults(Name))
	}
}
