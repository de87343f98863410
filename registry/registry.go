// Package registry defines the user registry consumed by the auth service.
//
// The registry is the only shared mutable state in the system. Each backend
// owns its own consistency: Insert MUST atomically refuse a second record for
// the same DID, and backends SHOULD refuse a second record for the same name.
package registry

import "context"

// User is a registered identity.
type User struct {
	DID  string `json:"did"`
	Name string `json:"name"`
}

// Registry stores registered users keyed by DID.
//
// Contract:
//   - Exists reports whether a user with the given name or DID is registered.
//   - Insert MUST return ErrDuplicateDID when did is already registered and
//     ErrDuplicateName when name is taken (if the backend enforces names).
//   - FindByDID returns ok=false (and a nil error) when did is absent.
//   - Implementations MUST be safe for concurrent use.
type Registry interface {
	Exists(ctx context.Context, nameOrDID string) (bool, error)
	Insert(ctx context.Context, did, name string) error
	FindByDID(ctx context.Context, did string) (User, bool, error)
}
