package backend

import (
	"maps"
	"strconv"
	"strings"
	"time"
)

// Settings is a string configuration map bound to the backend that owns it, so
// parse failures come back as ConfigErrors naming that backend.
type Settings struct {
	Backend string
	Values  map[string]string
}

// NewSettings wraps a config map.
func NewSettings(backend string, values map[string]string) Settings {
	return Settings{Backend: backend, Values: values}
}

func (s Settings) lookup(key string) (string, bool) {
	v, ok := s.Values[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// String returns the value for key, or def when absent or empty.
func (s Settings) String(key, def string) string {
	if v, ok := s.lookup(key); ok {
		return v
	}
	return def
}

// Bool accepts true/false, 1/0 and yes/no (case-insensitive).
func (s Settings) Bool(key string, def bool) (bool, error) {
	v, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, NewConfigErrorWithValue(s.Backend, key, v, "must be a boolean (true/false, 1/0, yes/no)")
}

// Int parses an integer value.
func (s Settings) Int(key string, def int) (int, error) {
	v, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Backend: s.Backend, Field: key, Value: v, Message: "must be an integer", Cause: err}
	}
	return i, nil
}

// Duration accepts Go duration strings ("5s", "1m30s") or plain integer seconds.
func (s Settings) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := s.lookup(key)
	if !ok {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, NewConfigErrorWithValue(s.Backend, key, v, "must be a duration (e.g. '5s', '1m30s') or integer seconds")
}

// MergeConfig returns a new map holding defaults overlaid with overrides.
func MergeConfig(defaults, overrides map[string]string) map[string]string {
	result := make(map[string]string, len(defaults)+len(overrides))
	maps.Copy(result, defaults)
	maps.Copy(result, overrides)
	return result
}
