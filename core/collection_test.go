package core

import (
	"errors"
	"testing"
)

func entryWithX(t *testing.T, x float64, optFns ...func(o *EntryOptions)) *ConfigEntry {
	t.Helper()
	e, err := NewEntry(map[string]any{"x": x, "b_field": 0.9586}, optFns...)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	return e
}

func TestCollection_AppendAssignsStableNames(t *testing.T) {
	c := NewCollection("x scan")

	for i := 0; i < 3; i++ {
		name, err := c.Append(entryWithX(t, float64(i)))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if want := c.Name(i); name != want {
			t.Fatalf("append %d returned %q, want %q", i, name, want)
		}
	}

	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if c.Name(0) != "run0" || c.Name(2) != "run2" {
		t.Fatalf("unit naming drifted: %q %q", c.Name(0), c.Name(2))
	}
	if c.Info() != "x scan" {
		t.Fatalf("info lost: %q", c.Info())
	}
}

func TestCollection_AppendCopiesEntries(t *testing.T) {
	c := NewCollection("")
	e := entryWithX(t, 1)

	if _, err := c.Append(e); err != nil {
		t.Fatalf("append: %v", err)
	}

	stored, ok := c.Entry(0)
	if !ok {
		t.Fatalf("entry 0 missing")
	}
	if stored == e {
		t.Fatalf("collection stored the caller's pointer; copy-on-add expected")
	}
	if stored.Key() != e.Key() {
		t.Fatalf("copy changed the key")
	}
}

func TestCollection_RejectsHeterogeneousEntries(t *testing.T) {
	c := NewCollection("")
	if _, err := c.Append(entryWithX(t, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Different parameter-name set.
	other, _ := NewEntry(map[string]any{"y": 2.0})
	if _, err := c.Append(other); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for name mismatch, got %v", err)
	}

	// Different phase.
	phased := entryWithX(t, 2, func(o *EntryOptions) { o.Phase = "phase2" })
	if _, err := c.Append(phased); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for phase mismatch, got %v", err)
	}

	if c.Len() != 1 {
		t.Fatalf("failed appends must not grow the collection: len=%d", c.Len())
	}
}

func TestCollection_VaryingAxes(t *testing.T) {
	c := NewCollection("")
	for _, x := range []float64{3, 1, 2, 1} {
		if _, err := c.Append(entryWithX(t, x)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	axes := c.VaryingAxes()
	if len(axes) != 1 {
		t.Fatalf("axes = %v, want only x", axes)
	}

	xs, ok := axes["x"]
	if !ok || len(xs) != 3 {
		t.Fatalf("x axis = %v, want 3 unique values", xs)
	}
	for i, want := range []float64{1, 2, 3} {
		if xs[i].Num() != want {
			t.Fatalf("axis not sorted unique: %v", xs)
		}
	}

	// b_field never varies, so it is not an axis.
	if _, ok := axes["b_field"]; ok {
		t.Fatalf("constant parameter reported as axis")
	}
}

func TestCollection_AxesRecomputedAfterAppend(t *testing.T) {
	c := NewCollection("")
	if _, err := c.Append(entryWithX(t, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}

	if axes := c.VaryingAxes(); len(axes) != 0 {
		t.Fatalf("single entry has no varying axes: %v", axes)
	}

	if _, err := c.Append(entryWithX(t, 2)); err != nil {
		t.Fatalf("append: %v", err)
	}

	if axes := c.VaryingAxes(); len(axes["x"]) != 2 {
		t.Fatalf("axes stale after append: %v", axes)
	}
}

func TestCollection_AutoSeedsAreNotAxes(t *testing.T) {
	opt := func(o *EntryOptions) {
		o.SeedFields = []string{"seed"}
		o.SeedSource = counterSeeds(10)
	}

	c := NewCollection("")
	for _, x := range []float64{1, 1} {
		e, err := NewEntry(map[string]any{"x": x}, opt)
		if err != nil {
			t.Fatalf("entry: %v", err)
		}
		if _, err := c.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if axes := c.VaryingAxes(); len(axes) != 0 {
		t.Fatalf("auto seeds must not appear as axes: %v", axes)
	}
}

func TestCollection_EmptyBehavior(t *testing.T) {
	c := NewCollection("empty")
	if c.Len() != 0 {
		t.Fatalf("new collection not empty")
	}
	if axes := c.VaryingAxes(); len(axes) != 0 {
		t.Fatalf("empty collection has axes: %v", axes)
	}
	if c.Phase() != "" {
		t.Fatalf("empty collection has phase %q", c.Phase())
	}
	if _, ok := c.Entry(0); ok {
		t.Fatalf("entry 0 should not exist")
	}
}
