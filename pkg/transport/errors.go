package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrLibraryLoad means the plugin is declared but its implementation is
	// not built into this binary.
	ErrLibraryLoad = errors.New("plugin library not loaded")
	// ErrConstruction means the plugin implementation exists but refused to
	// construct.
	ErrConstruction = errors.New("plugin construction failed")
	// ErrNotDeclared means no plugin is registered under the lookup name.
	ErrNotDeclared = errors.New("plugin not declared")

	ErrShutdown        = errors.New("transport adapter is shut down")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidQoS      = errors.New("invalid qos")
	ErrNotAdvertised   = errors.New("publisher has not advertised")
)

// PluginError describes a failed plugin instantiation. Kind is one of
// ErrLibraryLoad, ErrConstruction or ErrNotDeclared.
type PluginError struct {
	Role       Role
	LookupName string
	Kind       error
	Cause      error
}

func (e *PluginError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s plugin %q: %v", e.Role, e.LookupName, e.Kind)
	}
	// A cause that already wraps the kind carries its text.
	if errors.Is(e.Cause, e.Kind) {
		return fmt.Sprintf("%s plugin %q: %v", e.Role, e.LookupName, e.Cause)
	}
	return fmt.Sprintf("%s plugin %q: %v: %v", e.Role, e.LookupName, e.Kind, e.Cause)
}

func (e *PluginError) Unwrap() error { return e.Cause }

// Is matches the failure kind, so errors.Is(err, ErrConstruction) works on
// wrapped plugin errors.
func (e *PluginError) Is(target error) bool {
	return target == e.Kind
}
