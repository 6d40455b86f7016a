package transport

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/gezibash/pointcloud-transport/internal/backend"
)

// Factory constructs a plugin from a configuration map. Returning an error
// that wraps ErrLibraryLoad reports the implementation as unavailable; any
// other error is a construction failure.
type Factory[P Plugin] func(ctx context.Context, config map[string]string) (P, error)

// DefaultsFunc returns the default configuration for a plugin.
type DefaultsFunc func() map[string]string

// Registration declares a plugin. A nil Factory declares a plugin whose
// implementation is not linked into the binary.
type Registration[P Plugin] struct {
	Package     string
	Description string
	Factory     Factory[P]
	Defaults    DefaultsFunc
}

// Registry maps lookup names to plugin registrations for one role.
type Registry[P Plugin] struct {
	role Role

	mu      sync.RWMutex
	entries map[string]Registration[P]
}

// NewRegistry returns an empty registry for role.
func NewRegistry[P Plugin](role Role) *Registry[P] {
	return &Registry[P]{role: role, entries: make(map[string]Registration[P])}
}

// Role returns the role the registry serves.
func (r *Registry[P]) Role() Role { return r.role }

// Register declares a plugin under lookupName.
// Panics if the name is empty or already registered.
func (r *Registry[P]) Register(lookupName string, reg Registration[P]) {
	if lookupName == "" {
		panic(fmt.Sprintf("%s plugin registered with empty lookup name", r.role))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[lookupName]; exists {
		panic(fmt.Sprintf("%s plugin %q already registered", r.role, lookupName))
	}
	r.entries[lookupName] = reg
}

// Unregister removes lookupName. It reports whether the name was registered.
func (r *Registry[P]) Unregister(lookupName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[lookupName]
	delete(r.entries, lookupName)
	return ok
}

// DeclaredLookupNames returns all registered lookup names in sorted order.
func (r *Registry[P]) DeclaredLookupNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// PackageOf returns the package that provides lookupName.
func (r *Registry[P]) PackageOf(lookupName string) string {
	reg, _ := r.lookup(lookupName)
	return reg.Package
}

// DescriptionOf returns the human-readable description of lookupName.
func (r *Registry[P]) DescriptionOf(lookupName string) string {
	reg, _ := r.lookup(lookupName)
	return reg.Description
}

// IsRegistered reports whether lookupName is declared.
func (r *Registry[P]) IsRegistered(lookupName string) bool {
	_, ok := r.lookup(lookupName)
	return ok
}

// GetDefaults returns the default configuration for lookupName, or nil.
func (r *Registry[P]) GetDefaults(lookupName string) map[string]string {
	reg, ok := r.lookup(lookupName)
	if !ok || reg.Defaults == nil {
		return nil
	}
	return reg.Defaults()
}

func (r *Registry[P]) lookup(lookupName string) (Registration[P], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[lookupName]
	return reg, ok
}

// New instantiates the plugin registered under lookupName. The factory
// receives the registration defaults overlaid with config. Failures are
// returned as *PluginError.
func (r *Registry[P]) New(ctx context.Context, lookupName string, config map[string]string) (P, error) {
	var zero P

	reg, ok := r.lookup(lookupName)
	if !ok {
		return zero, r.pluginError(lookupName, ErrNotDeclared, nil)
	}
	if reg.Factory == nil {
		return zero, r.pluginError(lookupName, ErrLibraryLoad, nil)
	}

	var defaults map[string]string
	if reg.Defaults != nil {
		defaults = reg.Defaults()
	}

	logger, _ := InstrumentationFrom(ctx)
	logger.DebugContext(ctx, "creating transport plugin", "role", r.role.String(), "lookup_name", lookupName)

	p, err := construct(ctx, reg.Factory, backend.MergeConfig(defaults, config))
	switch {
	case errors.Is(err, ErrLibraryLoad):
		return zero, r.pluginError(lookupName, ErrLibraryLoad, err)
	case err != nil:
		return zero, r.pluginError(lookupName, ErrConstruction, err)
	case isNil(p):
		return zero, r.pluginError(lookupName, ErrConstruction, errors.New("factory returned nil plugin"))
	}
	return p, nil
}

// CreateInstance is New with no caller configuration, returning the plugin
// as its role-independent interface.
func (r *Registry[P]) CreateInstance(ctx context.Context, lookupName string) (Plugin, error) {
	p, err := r.New(ctx, lookupName, nil)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Registry[P]) pluginError(lookupName string, kind, cause error) error {
	return &PluginError{Role: r.role, LookupName: lookupName, Kind: kind, Cause: cause}
}

// construct runs the factory, converting a panic into an error.
func construct[P Plugin](ctx context.Context, f Factory[P], config map[string]string) (p P, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("factory panicked: %v", rec)
		}
	}()
	return f(ctx, config)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// Process-wide registries. Transport packages register into these from
// init().
var (
	Publishers  = NewRegistry[PublisherPlugin](RolePublisher)
	Subscribers = NewRegistry[SubscriberPlugin](RoleSubscriber)
)

// RegisterPublisher declares a publisher plugin in Publishers.
func RegisterPublisher(lookupName string, reg Registration[PublisherPlugin]) {
	Publishers.Register(lookupName, reg)
}

// RegisterSubscriber declares a subscriber plugin in Subscribers.
func RegisterSubscriber(lookupName string, reg Registration[SubscriberPlugin]) {
	Subscribers.Register(lookupName, reg)
}
