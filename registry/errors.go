package registry

import "errors"

var (
	ErrDuplicateDID  = errors.New("registry: duplicate did")
	ErrDuplicateName = errors.New("registry: duplicate name")
	ErrNotFound      = errors.New("registry: not found")
	ErrCorrupt       = errors.New("registry: corrupt record")
	ErrInvalidUser   = errors.New("registry: did and name are required")
)

// IsDuplicate reports whether err is a uniqueness violation on either key.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateDID) || errors.Is(err, ErrDuplicateName)
}

// Validate checks the fields every backend requires before Insert.
func Validate(did, name string) error {
	if did == "" || name == "" {
		return ErrInvalidUser
	}
	return nil
}
