// Package registrytest is the conformance suite every registry backend runs.
package registrytest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"xdao.co/didauth/registry"
)

// NewRegistry constructs a fresh, empty Registry instance for a test.
// The returned Registry MUST be isolated from other tests.
type NewRegistry func(t *testing.T) registry.Registry

// Sample DIDs. The suite only needs distinct strings; backends must not
// interpret DIDs.
const (
	didAlice = "did:key:z6MkpLMhzfdm9z7fe4tasU9DooqdYH52YNtdz3QF1zuYizmz"
	didBob   = "did:key:z6MkhaXgBZDvotDkL5257faiztiGiC2QtKLGpbnnEGta2doK"
	didCarol = "did:key:z6MknGc3ocHs3zdPiJbnaaqDi58NGb4pk1Sp9WxWufuXSdxf"
)

func RunRegistryConformance(t *testing.T, newRegistry NewRegistry) {
	t.Helper()
	ctx := context.Background()

	t.Run("InsertFind", func(t *testing.T) {
		reg := newRegistry(t)
		if err := reg.Insert(ctx, didAlice, "alice"); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		u, ok, err := reg.FindByDID(ctx, didAlice)
		if err != nil {
			t.Fatalf("FindByDID failed: %v", err)
		}
		if !ok {
			t.Fatalf("FindByDID: user not found")
		}
		if u.DID != didAlice || u.Name != "alice" {
			t.Fatalf("FindByDID: got %+v", u)
		}
	})

	t.Run("FindMissing", func(t *testing.T) {
		reg := newRegistry(t)
		u, ok, err := reg.FindByDID(ctx, didBob)
		if err != nil {
			t.Fatalf("FindByDID failed: %v", err)
		}
		if ok {
			t.Fatalf("FindByDID returned %+v for missing DID", u)
		}
	})

	t.Run("ExistsByNameAndDID", func(t *testing.T) {
		reg := newRegistry(t)
		for _, key := range []string{"alice", didAlice} {
			ok, err := reg.Exists(ctx, key)
			if err != nil {
				t.Fatalf("Exists(%q) failed: %v", key, err)
			}
			if ok {
				t.Fatalf("Exists(%q) true on empty registry", key)
			}
		}
		if err := reg.Insert(ctx, didAlice, "alice"); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		for _, key := range []string{"alice", didAlice} {
			ok, err := reg.Exists(ctx, key)
			if err != nil {
				t.Fatalf("Exists(%q) failed: %v", key, err)
			}
			if !ok {
				t.Fatalf("Exists(%q) false after Insert", key)
			}
		}
		ok, err := reg.Exists(ctx, "bob")
		if err != nil || ok {
			t.Fatalf("Exists(bob) = %v, %v", ok, err)
		}
	})

	t.Run("DuplicateDID", func(t *testing.T) {
		reg := newRegistry(t)
		if err := reg.Insert(ctx, didAlice, "alice"); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		err := reg.Insert(ctx, didAlice, "alice2")
		if !errors.Is(err, registry.ErrDuplicateDID) {
			t.Fatalf("second Insert: got err=%v want ErrDuplicateDID", err)
		}
		u, _, err := reg.FindByDID(ctx, didAlice)
		if err != nil || u.Name != "alice" {
			t.Fatalf("original record changed: %+v err=%v", u, err)
		}
		ok, err := reg.Exists(ctx, "alice2")
		if err != nil || ok {
			t.Fatalf("rejected insert left name behind: ok=%v err=%v", ok, err)
		}
	})

	t.Run("DuplicateName", func(t *testing.T) {
		reg := newRegistry(t)
		if err := reg.Insert(ctx, didAlice, "alice"); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		err := reg.Insert(ctx, didBob, "alice")
		if !errors.Is(err, registry.ErrDuplicateName) {
			t.Fatalf("second Insert: got err=%v want ErrDuplicateName", err)
		}
		_, ok, err := reg.FindByDID(ctx, didBob)
		if err != nil || ok {
			t.Fatalf("rejected insert left DID behind: ok=%v err=%v", ok, err)
		}
	})

	t.Run("RejectEmpty", func(t *testing.T) {
		reg := newRegistry(t)
		if err := reg.Insert(ctx, "", "alice"); err == nil {
			t.Fatalf("Insert with empty DID should fail")
		}
		if err := reg.Insert(ctx, didAlice, ""); err == nil {
			t.Fatalf("Insert with empty name should fail")
		}
	})

	t.Run("ConcurrentInsertSameDID", func(t *testing.T) {
		reg := newRegistry(t)
		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = reg.Insert(ctx, didCarol, fmt.Sprintf("carol-%d", i))
			}(i)
		}
		wg.Wait()

		var ok int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, registry.ErrDuplicateDID):
			default:
				t.Fatalf("unexpected Insert error: %v", err)
			}
		}
		if ok != 1 {
			t.Fatalf("expected exactly one successful Insert, got %d", ok)
		}
	})
}
