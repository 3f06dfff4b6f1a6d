// Package preprocess implements the attribute transformation pipeline:
// declarative preprocessing objects resolved against a transform registry,
// applied per record either eagerly (materialised, optionally cached) or
// lazily at access time.
package preprocess

import (
	"fmt"
	"sort"
	"sync"

	"github.com/deepdrugkit/deepdrugkit/pkg/errors"
)

// Record is one raw or transformed data row, keyed by attribute name.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Settings carries per-transform options as loaded from configuration.
// Each transform factory reads the keys it knows and rejects the rest.
type Settings map[string]any

// Transform converts one attribute value into its model-ready form.
type Transform interface {
	// Key is the registry key, "<from>-><to>".
	Key() string
	// Apply transforms a single attribute value.
	Apply(value any) (any, error)
}

// Factory builds a Transform from validated settings.  Factories fail with a
// configuration error when settings carry unknown keys or wrong types.
type Factory func(settings Settings) (Transform, error)

// TransformKey builds the registry key for a dtype pair.
func TransformKey(from, to string) string { return from + "->" + to }

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a transform factory for the (from, to) dtype pair.
// Registering a pair twice is a programming error.
func Register(from, to string, f Factory) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	key := TransformKey(from, to)
	if _, exists := registry[key]; exists {
		return errors.Newf(errors.ErrCodeInvalidConfig, "transform %s already registered", key)
	}
	registry[key] = f
	return nil
}

// MustRegister is Register for package init paths.
func MustRegister(from, to string, f Factory) {
	if err := Register(from, to, f); err != nil {
		panic(err)
	}
}

// Resolve builds the transform for (from, to) with the given settings.
// An unregistered pair is a configuration error.
func Resolve(from, to string, settings Settings) (Transform, error) {
	registryMu.RLock()
	f, ok := registry[TransformKey(from, to)]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeUnregisteredTransform,
			"no transform registered").WithDetail(TransformKey(from, to))
	}
	return f(settings)
}

// RegisteredPairs lists all registered dtype pairs, sorted.
func RegisteredPairs() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Settings accessors.  Numeric values arrive as int, int64, or float64
// depending on the configuration source, so the int/float accessors accept
// all three.

func (s Settings) intValue(key string, def int) (int, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, errors.New(errors.ErrCodeMalformedSettings,
		fmt.Sprintf("setting %q must be an integer, got %T", key, v))
}

func (s Settings) floatValue(key string, def float64) (float64, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	return 0, errors.New(errors.ErrCodeMalformedSettings,
		fmt.Sprintf("setting %q must be a number, got %T", key, v))
}

func (s Settings) stringValue(key string, def string) (string, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
	}
	str, ok := v.(string)
	if !ok {
		return "", errors.New(errors.ErrCodeMalformedSettings,
			fmt.Sprintf("setting %q must be a string, got %T", key, v))
	}
	return str, nil
}

func (s Settings) boolValue(key string, def bool) (bool, error) {
	v, ok := s[key]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.New(errors.ErrCodeMalformedSettings,
			fmt.Sprintf("setting %q must be a boolean, got %T", key, v))
	}
	return b, nil
}

// checkKeys rejects settings keys outside the allowed set.
func (s Settings) checkKeys(transformKey string, allowed ...string) error {
	ok := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		ok[k] = true
	}
	for k := range s {
		if !ok[k] {
			return errors.New(errors.ErrCodeMalformedSettings,
				fmt.Sprintf("unknown setting %q for transform %s", k, transformKey))
		}
	}
	return nil
}
