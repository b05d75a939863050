package compress

import (
	"fmt"
	"strings"
	"sync"
)

// ListSeparator joins codec names in an advertisement.
const ListSeparator = ";"

// Registry maps codec names and wire types to factories. It is populated at
// startup and read concurrently by every connection afterwards.
type Registry struct {
	mu     sync.RWMutex
	order  []Factory
	byType map[Type]Factory
	byName map[string]Type
}

func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[Type]Factory),
		byName: make(map[string]Type),
	}
}

// Default returns a registry holding zstd, s2 and deflate, in that preference order.
func Default() *Registry {
	return DefaultWith(DefaultOptions())
}

func DefaultWith(opts Options) *Registry {
	r := NewRegistry()
	for _, f := range []Factory{ZstdFactory(opts), S2Factory(opts), DeflateFactory(opts)} {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(f Factory) error {
	if f == nil {
		return fmt.Errorf("%w: nil factory", ErrInvalidCodec)
	}
	name := f.Name()
	if name == "" || strings.Contains(name, ListSeparator) || f.Type() == None {
		return fmt.Errorf("%w: name=%q type=%s", ErrInvalidCodec, name, f.Type())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byType[f.Type()]; ok {
		return fmt.Errorf("%w: type=%s", ErrDuplicateCodec, f.Type())
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: name=%q", ErrDuplicateCodec, name)
	}
	r.order = append(r.order, f)
	r.byType[f.Type()] = f
	r.byName[name] = f.Type()
	return nil
}

// Supported returns every registered name in registration order.
func (r *Registry) Supported() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, f := range r.order {
		names = append(names, f.Name())
	}
	return strings.Join(names, ListSeparator)
}

// SupportedFor builds an advertisement from types, keeping their order and skipping unregistered ones.
func (r *Registry) SupportedFor(types []Type) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(types))
	for _, t := range types {
		if f, ok := r.byType[t]; ok {
			names = append(names, f.Name())
		}
	}
	return strings.Join(names, ListSeparator)
}

// Lookup builds a fresh codec instance for t.
func (r *Registry) Lookup(t Type) (Codec, error) {
	r.mu.RLock()
	f, ok := r.byType[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: type=%s", ErrUnknownCodec, t)
	}
	return f.New()
}

func (r *Registry) TypeOf(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// Types resolves configured codec names, failing on the first unknown one.
func (r *Registry) Types(names []string) ([]Type, error) {
	out := make([]Type, 0, len(names))
	for _, name := range names {
		t, ok := r.TypeOf(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("%w: name=%q", ErrUnknownCodec, name)
		}
		out = append(out, t)
	}
	return out, nil
}

// ParseAdvertisedList parses a peer's ';'-joined advertisement into known types.
// Unknown names, empty tokens and repeats are dropped.
func (r *Registry) ParseAdvertisedList(msg string) []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Type
	seen := make(map[Type]struct{})
	for _, token := range strings.Split(msg, ListSeparator) {
		t, ok := r.byName[strings.TrimSpace(token)]
		if !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Negotiate returns the first advertised type that is registered and allowed.
func (r *Registry) Negotiate(advertised, allowed []Type) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range advertised {
		if _, ok := r.byType[t]; !ok {
			continue
		}
		for _, a := range allowed {
			if a == t {
				return t, true
			}
		}
	}
	return None, false
}
