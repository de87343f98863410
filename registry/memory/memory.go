// Package memory is an in-process Registry backed by two maps.
//
// It is the default backend for single-process deployments and the fake used
// by tests. Contents are lost when the process exits.
package memory

import (
	"context"
	"sync"

	"xdao.co/didauth/registry"
)

type Registry struct {
	mu     sync.RWMutex
	byDID  map[string]registry.User
	byName map[string]string
}

func New() *Registry {
	return &Registry{
		byDID:  map[string]registry.User{},
		byName: map[string]string{},
	}
}

func (r *Registry) Exists(ctx context.Context, nameOrDID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.byName[nameOrDID]; ok {
		return true, nil
	}
	_, ok := r.byDID[nameOrDID]
	return ok, nil
}

func (r *Registry) Insert(ctx context.Context, did, name string) error {
	if err := registry.Validate(did, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byDID[did]; ok {
		return registry.ErrDuplicateDID
	}
	if _, ok := r.byName[name]; ok {
		return registry.ErrDuplicateName
	}
	r.byDID[did] = registry.User{DID: did, Name: name}
	r.byName[name] = did
	return nil
}

func (r *Registry) FindByDID(ctx context.Context, did string) (registry.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return registry.User{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byDID[did]
	return u, ok, nil
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDID)
}
