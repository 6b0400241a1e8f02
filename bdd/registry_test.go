package bdd_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/bdd"
)

func TestRegistry_Vars(t *testing.T) {
	t.Run("Interleaved", func(t *testing.T) {
		var grown int
		r := bdd.NewRegistry(func(n int) error { grown = n; return nil })
		x, y := bdd.NewKey("x", zen.Uint8), bdd.NewKey("y", zen.Uint8)
		z := bdd.NewKey("z", zen.Bool)
		for _, k := range []bdd.Key{x, y} {
			if err := r.Declare(k, 3); err != nil {
				t.Fatal(err)
			}
		}
		if err := r.Declare(z, 1); err != nil {
			t.Fatal(err)
		} else if err := r.Unify(x, y); err != nil {
			t.Fatal(err)
		}

		if vars, err := r.Vars(y); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff([]int{1, 3, 5}, vars); diff != "" {
			t.Fatal(diff)
		}
		if vars, err := r.Vars(x); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff([]int{0, 2, 4}, vars); diff != "" {
			t.Fatal(diff)
		}
		if vars, err := r.Vars(z); err != nil {
			t.Fatal(err)
		} else if diff := cmp.Diff([]int{6}, vars); diff != "" {
			t.Fatal(diff)
		}

		if r.Len() != 7 {
			t.Fatalf("unexpected len: %d", r.Len())
		} else if grown != 7 {
			t.Fatalf("unexpected grow: %d", grown)
		}
	})

	t.Run("ErrGrow", func(t *testing.T) {
		errFull := errors.New("full")
		r := bdd.NewRegistry(func(n int) error {
			if n > 8 {
				return errFull
			}
			return nil
		})
		x, y := bdd.NewKey("x", zen.Uint8), bdd.NewKey("y", zen.Uint8)
		_ = r.Declare(x, 8)
		_ = r.Declare(y, 8)
		if _, err := r.Vars(x); err != nil {
			t.Fatal(err)
		}
		if _, err := r.Vars(y); !errors.Is(err, errFull) {
			t.Fatalf("unexpected error: %v", err)
		} else if r.Len() != 8 {
			t.Fatalf("unexpected len: %d", r.Len())
		}
	})

	t.Run("ErrAllocated", func(t *testing.T) {
		r := bdd.NewRegistry(nil)
		x, y := bdd.NewKey("x", zen.Uint8), bdd.NewKey("y", zen.Uint8)
		_ = r.Declare(x, 8)
		_ = r.Declare(y, 8)
		if _, err := r.Vars(x); err != nil {
			t.Fatal(err)
		}
		if err := r.Unify(x, y); !errors.Is(err, bdd.ErrAllocated) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("WidthMismatch", func(t *testing.T) {
		r := bdd.NewRegistry(nil)
		x, y := bdd.NewKey("x", zen.Uint8), bdd.NewKey("y", zen.Uint16)
		_ = r.Declare(x, 8)
		_ = r.Declare(y, 16)
		if err := r.Unify(x, y); !errors.Is(err, zen.ErrType) {
			t.Fatalf("unexpected error: %v", err)
		} else if err := r.Declare(x, 9); !errors.Is(err, zen.ErrType) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestKey_String(t *testing.T) {
	if s := bdd.NewKey("state", zen.OptionOf(zen.Uint8)).String(); s != "state:"+zen.OptionOf(zen.Uint8).String() {
		t.Fatalf("unexpected key: %s", s)
	}
}
