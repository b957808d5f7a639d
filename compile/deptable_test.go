package compile

import "testing"

func TestDepTableGetDefaultsToNone(t *testing.T) {
	d := NewDepTable(4)
	if d.Get(2, 1) != DepNone {
		t.Errorf("fresh table entry = %v, want DepNone", d.Get(2, 1))
	}
	if d.Get(1, 2) != DepNone {
		t.Error("upper-triangle Get should return DepNone, not panic or read garbage")
	}
	if d.Get(3, 3) != DepNone {
		t.Error("diagonal Get should return DepNone")
	}
}

func TestDepTableSetAndGet(t *testing.T) {
	d := NewDepTable(4)
	d.Set(2, 0, DepExecution)
	d.Set(3, 2, DepOrdering)

	if got := d.Get(2, 0); got != DepExecution {
		t.Errorf("Get(2,0) = %v, want DepExecution", got)
	}
	if got := d.Get(3, 2); got != DepOrdering {
		t.Errorf("Get(3,2) = %v, want DepOrdering", got)
	}
	if got := d.Get(3, 0); got != DepNone {
		t.Errorf("Get(3,0) = %v, want DepNone (never set)", got)
	}
}

func TestDepTableSetPanicsOnNonLowerTriangle(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Set(0,2,...) should panic: row must be > col")
		}
	}()
	d := NewDepTable(4)
	d.Set(0, 2, DepExecution)
}

func TestDepTableDependencies(t *testing.T) {
	d := NewDepTable(5)
	d.Set(4, 0, DepExecution)
	d.Set(4, 2, DepOrdering)

	got := d.Dependencies(4)
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("Dependencies(4) = %v, want [0 2]", got)
	}
	if len(d.Dependencies(0)) != 0 {
		t.Error("Dependencies(0) should be empty: nothing is before pass 0")
	}
}

func TestDepTableRemapDropsMissingAndReindexes(t *testing.T) {
	d := NewDepTable(4)
	d.Set(2, 0, DepExecution) // pass 2 depends on pass 0
	d.Set(3, 2, DepOrdering)  // pass 3 depends on pass 2
	d.Set(3, 1, DepExecution) // pass 3 depends on pass 1 (pass 1 will be dropped)

	// Pass 1 is dropped; 0->0, 2->1, 3->2.
	newIndex := map[int]int{0: 0, 2: 1, 3: 2}
	out := d.Remap(newIndex, 3)

	if got := out.Get(1, 0); got != DepExecution {
		t.Errorf("remapped (new pass 1 depends on new pass 0) = %v, want DepExecution", got)
	}
	if got := out.Get(2, 1); got != DepOrdering {
		t.Errorf("remapped (new pass 2 depends on new pass 1) = %v, want DepOrdering", got)
	}
	// The edge referencing dropped pass 1 must vanish entirely, not
	// dangle or panic.
	for i := 0; i < 3; i++ {
		for j := 0; j < i; j++ {
			if i == 2 && j == 1 {
				continue // the one edge we expect
			}
			if i == 1 && j == 0 {
				continue // the other edge we expect
			}
			if got := out.Get(i, j); got != DepNone {
				t.Errorf("unexpected edge Get(%d,%d) = %v", i, j, got)
			}
		}
	}
}
