package host

import "testing"

func TestHandleGenerations(t *testing.T) {
	doc := NewMemDocument()
	h := doc.CreateObject("cube", KindMesh)
	if !h.Valid() {
		t.Fatal("fresh handle must be valid")
	}

	doc.InvalidateHandles()
	if h.Valid() {
		t.Error("handle must go stale after invalidation")
	}

	var fresh Handle
	doc.Objects(func(o Handle) bool {
		fresh = o
		return false
	})
	if fresh == nil || !fresh.Valid() {
		t.Fatal("rescanned handle must be valid")
	}
	if !fresh.Same(h) {
		t.Error("stale and fresh handles still point at the same object")
	}
}

func TestRemoveUndoDestroy(t *testing.T) {
	doc := NewMemDocument()
	h := doc.CreateObject("cube", KindMesh)

	count := func() int {
		n := 0
		doc.Objects(func(Handle) bool { n++; return true })
		return n
	}

	doc.Remove(h)
	if count() != 0 {
		t.Error("removed objects are not visible")
	}

	doc.Undo()
	if count() != 1 {
		t.Error("undo restores the object")
	}

	doc.Objects(func(o Handle) bool {
		doc.Destroy(o)
		return false
	})
	if count() != 0 {
		t.Error("destroyed objects are gone")
	}
	doc.Undo()
	if count() != 0 {
		t.Error("destruction is not undoable")
	}
}

func TestDuplicateCopiesState(t *testing.T) {
	doc := NewMemDocument()
	h := doc.CreateObject("cube", KindMesh)
	h.EnsureField("mass", 2.0)
	h.SetMeta("flavor", "original")

	dup := doc.Duplicate(h)
	if dup.Name() == h.Name() {
		t.Error("duplicate must get a distinct name")
	}
	if v, _ := dup.Fetch("mass"); v != 2.0 {
		t.Errorf("duplicate field = %v, want 2.0", v)
	}
	if v, _ := dup.Meta("flavor"); v != "original" {
		t.Errorf("duplicate meta = %v, want original", v)
	}

	// Copies are independent afterwards
	if err := dup.Store("mass", 5.0); err != nil {
		t.Fatal(err)
	}
	if v, _ := h.Fetch("mass"); v != 2.0 {
		t.Error("editing the duplicate must not touch the source")
	}
}

func TestBoneRemovalShiftsIndices(t *testing.T) {
	doc := NewMemDocument()
	arm := doc.CreateArmature("rig", "hip", "spine", "head")

	spine, ok := doc.BoneHandle(arm, 1)
	if !ok {
		t.Fatal("no bone at index 1")
	}
	if spine.Name() != "spine" {
		t.Fatalf("bone 1 = %v, want spine", spine.Name())
	}

	doc.RemoveBone(arm, 0)

	arm = func() Handle {
		var h Handle
		doc.Objects(func(o Handle) bool { h = o; return false })
		return h
	}()
	moved, ok := doc.BoneHandle(arm, 0)
	if !ok {
		t.Fatal("no bone at index 0 after removal")
	}
	if moved.Name() != "spine" {
		t.Errorf("bone 0 = %v, want spine after the shift", moved.Name())
	}
}

func TestStoreRequiresField(t *testing.T) {
	doc := NewMemDocument()
	h := doc.CreateObject("cube", KindMesh)

	if err := h.Store("never", 1); err == nil {
		t.Error("storing to an unknown field must fail")
	}
	h.EnsureField("known", 1)
	if err := h.Store("known", 2); err != nil {
		t.Errorf("store failed: %v", err)
	}
}

func TestEditModeExitInvalidates(t *testing.T) {
	doc := NewMemDocument()
	h := doc.CreateObject("cube", KindMesh)

	doc.SetMode(EditMode)
	if !h.Valid() {
		t.Error("entering edit mode keeps handles")
	}
	doc.SetMode(ObjectMode)
	if h.Valid() {
		t.Error("leaving edit mode rebuilds data and stales handles")
	}
}

func TestEventOrdering(t *testing.T) {
	doc := NewMemDocument()

	var log []string
	doc.Subscribe(Events{
		ObjectCreated:   func(Handle) { log = append(log, "created") },
		ObjectRemoved:   func(Handle) { log = append(log, "removed") },
		FieldEdited:     func(_ Handle, f string) { log = append(log, "edit:"+f) },
		ModeChanged:     func(_, _ Mode) { log = append(log, "mode") },
		ObjectDestroyed: func(Handle) { log = append(log, "destroyed") },
	})

	h := doc.CreateObject("cube", KindMesh)
	h.EnsureField("x", 1)
	h.Store("x", 2)
	doc.SetMode(EditMode)
	doc.Remove(currentOf(doc, "cube"))

	want := []string{"created", "edit:x", "mode", "removed"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

func currentOf(doc *MemDocument, name string) Handle {
	var result Handle
	doc.Objects(func(h Handle) bool {
		if h.Name() == name {
			result = h
			return false
		}
		return true
	})
	return result
}
