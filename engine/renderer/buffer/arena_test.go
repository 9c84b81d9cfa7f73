package buffer

import (
	"errors"
	"testing"
)

func TestArenaInsertGet(t *testing.T) {
	a := NewArena[string]()
	h := a.Insert("cells", Descriptor{Label: "cells", Size: 64, Usage: UsageStorage})

	v, desc, err := a.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "cells" || desc.Size != 64 {
		t.Fatalf("Get = %q, %+v", v, desc)
	}
	if a.Len() != 1 {
		t.Fatalf("Len = %d, want 1", a.Len())
	}
}

func TestArenaStaleHandleAfterReuse(t *testing.T) {
	a := NewArena[int]()
	first := a.Insert(1, Descriptor{})
	if _, err := a.Remove(first); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	second := a.Insert(2, Descriptor{})
	if second.Index() != first.Index() {
		t.Fatalf("slot not recycled: %s vs %s", first, second)
	}
	if second.Generation() == first.Generation() {
		t.Fatalf("generation not bumped on reuse")
	}

	if _, _, err := a.Get(first); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("Get(stale) err = %v, want ErrStaleHandle", err)
	}
	if _, err := a.Remove(first); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("Remove(stale) err = %v, want ErrStaleHandle", err)
	}
	if v, _, err := a.Get(second); err != nil || v != 2 {
		t.Fatalf("Get(second) = %d, %v", v, err)
	}
}

func TestArenaInvalidHandles(t *testing.T) {
	a := NewArena[int]()
	if _, _, err := a.Get(Handle{}); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("zero handle err = %v", err)
	}
	if _, _, err := a.Get(Handle{index: 7, generation: 1}); !errors.Is(err, ErrInvalidHandle) {
		t.Fatalf("out of range err = %v", err)
	}
}

func TestArenaDrain(t *testing.T) {
	a := NewArena[int]()
	h1 := a.Insert(1, Descriptor{})
	h2 := a.Insert(2, Descriptor{})
	if _, err := a.Remove(h1); err != nil {
		t.Fatal(err)
	}

	drained := a.Drain()
	if len(drained) != 1 || drained[0] != 2 {
		t.Fatalf("Drain = %v, want [2]", drained)
	}
	if a.Len() != 0 {
		t.Fatalf("Len after drain = %d", a.Len())
	}
	if _, _, err := a.Get(h2); !errors.Is(err, ErrStaleHandle) {
		t.Fatalf("drained handle err = %v", err)
	}
}

func TestUsageHas(t *testing.T) {
	u := UsageStorage | UsageCopyDst
	if !u.Has(UsageStorage) || !u.Has(UsageStorage|UsageCopyDst) {
		t.Fatal("expected storage|copydst")
	}
	if u.Has(UsageCopySrc) {
		t.Fatal("unexpected copysrc")
	}
}
