// Package localfs is a Registry stored as immutable files in a directory.
//
// Layout under root:
//
//	users/<shard>/<cid(did)>   JSON record {"did","name"}, mode 0444
//	names/<shard>/<cid(name)>  the DID that owns the name, mode 0444
//
// Paths are derived from CIDv1(raw, sha2-256) of the key, so user input never
// becomes a path component. Uniqueness is enforced with O_EXCL file creation:
// Insert claims the name first, then the DID, and releases the name claim if
// the DID is taken.
package localfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"xdao.co/didauth/cidutil"
	"xdao.co/didauth/registry"
)

type Registry struct {
	root string
}

// New constructs a filesystem registry rooted at root. The directory will be created if needed.
func New(root string) (*Registry, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Registry{root: root}, nil
}

func (r *Registry) Exists(ctx context.Context, nameOrDID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for _, dir := range []string{"names", "users"} {
		p, err := r.pathFor(dir, nameOrDID)
		if err != nil {
			return false, err
		}
		_, err = os.Stat(p)
		if err == nil {
			return true, nil
		}
		if !os.IsNotExist(err) {
			return false, err
		}
	}
	return false, nil
}

func (r *Registry) Insert(ctx context.Context, did, name string) error {
	if err := registry.Validate(did, name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	record, err := json.Marshal(registry.User{DID: did, Name: name})
	if err != nil {
		return err
	}

	namePath, err := r.pathFor("names", name)
	if err != nil {
		return err
	}
	userPath, err := r.pathFor("users", did)
	if err != nil {
		return err
	}

	if err := writeExclusive(namePath, []byte(did)); err != nil {
		if os.IsExist(err) {
			return registry.ErrDuplicateName
		}
		return err
	}
	if err := writeExclusive(userPath, record); err != nil {
		_ = os.Remove(namePath)
		if os.IsExist(err) {
			return registry.ErrDuplicateDID
		}
		return err
	}
	return nil
}

func (r *Registry) FindByDID(ctx context.Context, did string) (registry.User, bool, error) {
	if err := ctx.Err(); err != nil {
		return registry.User{}, false, err
	}
	p, err := r.pathFor("users", did)
	if err != nil {
		return registry.User{}, false, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return registry.User{}, false, nil
		}
		return registry.User{}, false, err
	}
	var u registry.User
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		return registry.User{}, false, fmt.Errorf("%w: %s: %v", registry.ErrCorrupt, p, err)
	}
	if u.DID != did || u.Name == "" {
		return registry.User{}, false, fmt.Errorf("%w: %s: record does not match its key", registry.ErrCorrupt, p)
	}
	return u, true, nil
}

func (r *Registry) pathFor(dir, key string) (string, error) {
	rel, err := cidutil.KeyPath(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.root, dir, filepath.FromSlash(rel)), nil
}

func writeExclusive(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
