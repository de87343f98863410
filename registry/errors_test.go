package registry

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsDuplicate(t *testing.T) {
	for _, err := range []error{
		ErrDuplicateDID,
		ErrDuplicateName,
		fmt.Errorf("pgsql insert: %w", ErrDuplicateName),
	} {
		if !IsDuplicate(err) {
			t.Fatalf("IsDuplicate(%v) = false", err)
		}
	}
	for _, err := range []error{nil, ErrNotFound, ErrInvalidUser, errors.New("registry: duplicate did")} {
		if IsDuplicate(err) {
			t.Fatalf("IsDuplicate(%v) = true", err)
		}
	}
}
