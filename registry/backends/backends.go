// Package backends is the build-time plugin table of registry backends.
//
// Backends register themselves in init():
//
//	backends.MustRegister(backends.Backend{ ... })
//
// A binary enables a backend by importing its package (often as a blank
// import). Options come from configuration files or CLI flags and are passed
// to Open as a flat string map.
package backends

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"xdao.co/didauth/registry"
)

// Options carries backend-specific settings such as "dir" or "database_url".
type Options map[string]string

// Get returns the trimmed value for key.
func (o Options) Get(key string) string {
	return strings.TrimSpace(o[key])
}

// Require returns the value for key or an error naming the backend.
func (o Options) Require(backend, key string) (string, error) {
	v := o.Get(key)
	if v == "" {
		return "", fmt.Errorf("backend %q: missing option %q", backend, key)
	}
	return v, nil
}

// Backend is a build-time plugin that can open a registry.Registry.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// Open constructs the registry. It returns an optional close function.
	Open func(opts Options) (registry.Registry, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("backends: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("backends: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("backends: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("backends: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// Open opens the named backend if it exists and matches usage. The returned
// close function is never nil.
func Open(name string, usage Usage, opts Options) (registry.Registry, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("unknown registry backend %q (available: %s)", name, strings.Join(Names(usage), ", "))
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("registry backend %q not supported in this binary", name)
	}
	reg, closeFn, err := b.Open(opts)
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return reg, closeFn, nil
}
