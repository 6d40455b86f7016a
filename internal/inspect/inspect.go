// Package inspect discovers every declared transport plugin, probes it by
// instantiation and builds the compatibility report shown by `pct list`.
package inspect

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/gezibash/pointcloud-transport/internal/observability"
	"github.com/gezibash/pointcloud-transport/pkg/transport"
)

// Status is the outcome of probing one role of a transport.
type Status int

const (
	StatusNotDeclared Status = iota
	StatusOK
	StatusLibraryLoadFailed
	StatusConstructionFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "INSTANTIATION_OK"
	case StatusLibraryLoadFailed:
		return "INSTANTIATION_FAILED_LIBRARY"
	case StatusConstructionFailed:
		return "INSTANTIATION_FAILED_CONSTRUCTION"
	default:
		return "NOT_DECLARED"
	}
}

// Failed reports whether the role was declared but could not be instantiated.
func (s Status) Failed() bool {
	return s == StatusLibraryLoadFailed || s == StatusConstructionFailed
}

// MarshalText renders the status name in JSON and YAML output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Descriptor is the merged view of one transport identity.
type Descriptor struct {
	Identity              string `json:"identity"`
	Package               string `json:"package"`
	PublisherLookupName   string `json:"publisher_lookup_name,omitempty"`
	PublisherStatus       Status `json:"publisher_status"`
	PublisherDescription  string `json:"publisher_description,omitempty"`
	PublisherError        string `json:"publisher_error,omitempty"`
	SubscriberLookupName  string `json:"subscriber_lookup_name,omitempty"`
	SubscriberStatus      Status `json:"subscriber_status"`
	SubscriberDescription string `json:"subscriber_description,omitempty"`
	SubscriberError       string `json:"subscriber_error,omitempty"`
}

// Problem reports whether either role failed to instantiate.
func (d Descriptor) Problem() bool {
	return d.PublisherStatus.Failed() || d.SubscriberStatus.Failed()
}

// Loader is the read side of a plugin registry.
type Loader interface {
	DeclaredLookupNames() []string
	PackageOf(lookupName string) string
	DescriptionOf(lookupName string) string
	CreateInstance(ctx context.Context, lookupName string) (transport.Plugin, error)
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithLogger sets the logger used for probe diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Inspector) { i.logger = logger }
}

// WithMetrics records probe outcomes in m.
func WithMetrics(m *observability.Metrics) Option {
	return func(i *Inspector) { i.metrics = m }
}

// Inspector probes a publisher loader and a subscriber loader.
type Inspector struct {
	publishers  Loader
	subscribers Loader
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New creates an Inspector. Either loader may be nil, in which case that
// role contributes nothing.
func New(publishers, subscribers Loader, opts ...Option) *Inspector {
	i := &Inspector{publishers: publishers, subscribers: subscribers}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = observability.Component(i.logger, "inspect")
	return i
}

// Run performs the publisher pass then the subscriber pass and returns the
// merged report. Plugin failures are recorded, never returned.
func (i *Inspector) Run(ctx context.Context) *Report {
	op, ctx := observability.StartOperation(ctx, i.metrics, "inspect.run")
	defer op.End(nil)

	table := make(map[string]*Descriptor)
	entry := func(id string) *Descriptor {
		d, ok := table[id]
		if !ok {
			d = &Descriptor{Identity: id}
			table[id] = d
		}
		return d
	}

	if i.publishers != nil {
		for _, name := range i.publishers.DeclaredLookupNames() {
			id := transport.PublisherIdentity(name)
			i.logger.DebugContext(ctx, "publisher declared", "lookup_name", name, "identity", id)

			d := entry(id)
			d.PublisherLookupName = name
			d.Package = i.publishers.PackageOf(name)
			d.PublisherDescription = i.publishers.DescriptionOf(name)
			d.PublisherStatus, d.PublisherError = i.probe(ctx, transport.RolePublisher, i.publishers, name)
		}
	}

	if i.subscribers != nil {
		for _, name := range i.subscribers.DeclaredLookupNames() {
			id := transport.SubscriberIdentity(name)
			i.logger.DebugContext(ctx, "subscriber declared", "lookup_name", name, "identity", id)

			d := entry(id)
			d.SubscriberLookupName = name
			d.Package = i.subscribers.PackageOf(name)
			d.SubscriberDescription = i.subscribers.DescriptionOf(name)
			d.SubscriberStatus, d.SubscriberError = i.probe(ctx, transport.RoleSubscriber, i.subscribers, name)
		}
	}

	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	descriptors := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		descriptors = append(descriptors, *table[id])
	}
	return NewReport(descriptors)
}

// probe instantiates one plugin, classifies the outcome and discards the
// instance.
func (i *Inspector) probe(ctx context.Context, role transport.Role, l Loader, name string) (Status, string) {
	p, err := l.CreateInstance(ctx, name)
	status := classify(err)
	i.metrics.CountProbe(role.String(), status.String())

	if err != nil {
		i.logger.WarnContext(ctx, "plugin probe failed",
			"role", role.String(), "lookup_name", name, "status", status.String(), "error", err)
		return status, err.Error()
	}
	if p != nil {
		p.Shutdown()
	}
	return status, ""
}

// classify maps a CreateInstance error onto a Status. Errors that are not a
// library load failure count as construction failures.
func classify(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, transport.ErrLibraryLoad):
		return StatusLibraryLoadFailed
	default:
		return StatusConstructionFailed
	}
}
