package host

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/rigbridge/rigbridge/modules/types"
)

// MemDocument is the in-memory reference host used by tests and the CLI. It
// deliberately mimics the awkward parts of a real host: handles carry a
// generation number and every undo or edit-mode exit bumps it, invalidating
// all outstanding handles at once.
type MemDocument struct {
	objects []*memObject
	linked  []*memObject
	gen     uint64
	mode    Mode
	frame   int

	subscribers []Events
	undoStack   []*memObject

	// instrumentation for tests
	scans   int
	fetches int
}

type memObject struct {
	doc       *MemDocument
	name      string
	kind      Kind
	meta      map[string]string
	fields    map[string]any
	animated  map[string]bool
	matrix    types.Matrix4
	bones     []*memBone
	removed   bool
	destroyed bool
	linked    bool
}

type memBone struct {
	owner  *memObject
	name   string
	meta   map[string]string
	matrix types.Matrix4
	gone   bool
}

func NewMemDocument() *MemDocument {
	return &MemDocument{
		mode: ObjectMode,
	}
}

// memHandle implements Handle. It is a value type: the host gives out a new
// one on every lookup, as real hosts do.
type memHandle struct {
	doc  *MemDocument
	obj  *memObject
	bone *memBone
	gen  uint64
}

func (d *MemDocument) handleOf(o *memObject) memHandle {
	return memHandle{doc: d, obj: o, gen: d.gen}
}

func (d *MemDocument) boneHandleOf(o *memObject, b *memBone) memHandle {
	return memHandle{doc: d, obj: o, bone: b, gen: d.gen}
}

func (h memHandle) Name() string {
	if h.bone != nil {
		return h.bone.name
	}
	return h.obj.name
}

func (h memHandle) Kind() Kind {
	if h.bone != nil {
		return KindBone
	}
	return h.obj.kind
}

func (h memHandle) Valid() bool {
	if h.obj == nil || h.gen != h.doc.gen {
		return false
	}
	if h.obj.removed || h.obj.destroyed {
		return false
	}
	if h.bone != nil && h.bone.gone {
		return false
	}
	return true
}

func (h memHandle) Same(other Handle) bool {
	o, ok := other.(memHandle)
	if !ok {
		return false
	}
	return h.obj == o.obj && h.bone == o.bone
}

func (h memHandle) Owner() Handle {
	if h.bone == nil {
		return nil
	}
	return h.doc.handleOf(h.obj)
}

func (h memHandle) Index() int {
	if h.bone == nil {
		return -1
	}
	for i, b := range h.obj.bones {
		if b == h.bone {
			return i
		}
	}
	return -1
}

func (h memHandle) Meta(name string) (string, bool) {
	if h.bone != nil {
		v, ok := h.bone.meta[name]
		return v, ok
	}
	v, ok := h.obj.meta[name]
	return v, ok
}

func (h memHandle) SetMeta(name, value string) {
	if h.bone != nil {
		h.bone.meta[name] = value
		return
	}
	h.obj.meta[name] = value
}

func (h memHandle) Fetch(field string) (any, bool) {
	if !h.Valid() {
		return nil, false
	}
	h.doc.fetches++
	v, ok := h.obj.fields[field]
	return v, ok
}

func (h memHandle) Store(field string, value any) error {
	if !h.Valid() {
		return errors.Errorf("%s is not a valid handle", h.Name())
	}
	if _, ok := h.obj.fields[field]; !ok {
		return errors.Errorf("%s.%s does not exist", h.Name(), field)
	}
	h.obj.fields[field] = value
	h.doc.emit(func(e Events) {
		if e.FieldEdited != nil {
			e.FieldEdited(h, field)
		}
	})
	return nil
}

func (h memHandle) EnsureField(field string, def any) {
	if _, ok := h.obj.fields[field]; !ok {
		h.obj.fields[field] = def
	}
}

func (h memHandle) Fields() []string {
	result := make([]string, 0, len(h.obj.fields))
	for name := range h.obj.fields {
		result = append(result, name)
	}
	slices.Sort(result)
	return result
}

func (h memHandle) Animated(field string) bool {
	return h.obj.animated[field]
}

func (h memHandle) SetAnimated(field string, on bool) {
	h.obj.animated[field] = on
}

func (h memHandle) Matrix() types.Matrix4 {
	if h.bone != nil {
		return h.bone.matrix
	}
	return h.obj.matrix
}

func (h memHandle) SetMatrix(m types.Matrix4) {
	if h.bone != nil {
		h.bone.matrix = m
		return
	}
	h.obj.matrix = m
}

func (d *MemDocument) Objects(yield func(Handle) bool) {
	d.scans++
	for _, o := range d.objects {
		if o.removed || o.destroyed {
			continue
		}
		if !yield(d.handleOf(o)) {
			return
		}
	}
}

func (d *MemDocument) LinkedObjects(yield func(Handle) bool) {
	for _, o := range d.linked {
		if o.removed || o.destroyed {
			continue
		}
		if !yield(d.handleOf(o)) {
			return
		}
	}
}

func (d *MemDocument) HasLinks() bool {
	return len(d.linked) > 0
}

func (d *MemDocument) Bones(armature Handle, yield func(Handle) bool) {
	h, ok := armature.(memHandle)
	if !ok || h.obj.kind != KindArmature {
		return
	}
	for _, b := range h.obj.bones {
		if b.gone {
			continue
		}
		if !yield(d.boneHandleOf(h.obj, b)) {
			return
		}
	}
}

func (d *MemDocument) Mode() Mode {
	return d.mode
}

func (d *MemDocument) Frame() int {
	return d.frame
}

func (d *MemDocument) Subscribe(e Events) {
	d.subscribers = append(d.subscribers, e)
}

func (d *MemDocument) emit(f func(Events)) {
	for _, e := range d.subscribers {
		f(e)
	}
}

// Scans reports how many full-document enumerations have happened.
func (d *MemDocument) Scans() int {
	return d.scans
}

// Fetches reports how many property fetches have happened.
func (d *MemDocument) Fetches() int {
	return d.fetches
}

func newMemObject(d *MemDocument, name string, kind Kind) *memObject {
	return &memObject{
		doc:      d,
		name:     name,
		kind:     kind,
		meta:     make(map[string]string),
		fields:   make(map[string]any),
		animated: make(map[string]bool),
		matrix:   types.IdentityMatrix(),
	}
}

func (d *MemDocument) CreateObject(name string, kind Kind) Handle {
	o := newMemObject(d, name, kind)
	d.objects = append(d.objects, o)
	h := d.handleOf(o)
	d.emit(func(e Events) {
		if e.ObjectCreated != nil {
			e.ObjectCreated(h)
		}
	})
	return h
}

func (d *MemDocument) CreateLinkedObject(name string, kind Kind) Handle {
	o := newMemObject(d, name, kind)
	o.linked = true
	d.linked = append(d.linked, o)
	return d.handleOf(o)
}

func (d *MemDocument) CreateArmature(name string, boneNames ...string) Handle {
	o := newMemObject(d, name, KindArmature)
	for _, bn := range boneNames {
		o.bones = append(o.bones, &memBone{
			owner:  o,
			name:   bn,
			meta:   make(map[string]string),
			matrix: types.IdentityMatrix(),
		})
	}
	d.objects = append(d.objects, o)
	h := d.handleOf(o)
	d.emit(func(e Events) {
		if e.ObjectCreated != nil {
			e.ObjectCreated(h)
		}
	})
	return h
}

func (d *MemDocument) BoneHandle(armature Handle, index int) (Handle, bool) {
	h, ok := armature.(memHandle)
	if !ok || index < 0 || index >= len(h.obj.bones) {
		return nil, false
	}
	return d.boneHandleOf(h.obj, h.obj.bones[index]), true
}

// Duplicate copies an object including its custom metadata, the way a real
// host duplicates persistent custom fields verbatim.
func (d *MemDocument) Duplicate(src Handle) Handle {
	h := src.(memHandle)
	o := newMemObject(d, h.obj.name+".001", h.obj.kind)
	for k, v := range h.obj.meta {
		o.meta[k] = v
	}
	for k, v := range h.obj.fields {
		o.fields[k] = v
	}
	o.matrix = h.obj.matrix
	d.objects = append(d.objects, o)
	nh := d.handleOf(o)
	d.emit(func(e Events) {
		if e.ObjectCreated != nil {
			e.ObjectCreated(nh)
		}
	})
	return nh
}

func (d *MemDocument) Rename(h Handle, name string) {
	mh := h.(memHandle)
	if mh.bone != nil {
		mh.bone.name = name
		return
	}
	mh.obj.name = name
}

// Remove soft-deletes an object. The deletion is undoable.
func (d *MemDocument) Remove(h Handle) {
	mh := h.(memHandle)
	if mh.obj.removed || mh.obj.destroyed {
		return
	}
	mh.obj.removed = true
	d.undoStack = append(d.undoStack, mh.obj)
	d.gen++
	d.emit(func(e Events) {
		if e.ObjectRemoved != nil {
			e.ObjectRemoved(memHandle{doc: d, obj: mh.obj, bone: mh.bone, gen: d.gen})
		}
	})
}

// Undo restores the most recent removal. Like a real host it does not say
// what came back; it only reports that every handle may now be stale.
func (d *MemDocument) Undo() {
	if len(d.undoStack) == 0 {
		return
	}
	o := d.undoStack[len(d.undoStack)-1]
	d.undoStack = d.undoStack[:len(d.undoStack)-1]
	o.removed = false
	d.gen++
	d.emit(func(e Events) {
		if e.HandlesInvalidated != nil {
			e.HandlesInvalidated()
		}
	})
}

// Destroy permanently frees an object. Its metadata remains readable through
// handles already held, but it never reappears in the document.
func (d *MemDocument) Destroy(h Handle) {
	mh := h.(memHandle)
	if mh.obj.destroyed {
		return
	}
	mh.obj.removed = true
	mh.obj.destroyed = true
	d.undoStack = slices.DeleteFunc(d.undoStack, func(o *memObject) bool {
		return o == mh.obj
	})
	d.gen++
	d.emit(func(e Events) {
		if e.ObjectDestroyed != nil {
			e.ObjectDestroyed(memHandle{doc: d, obj: mh.obj, gen: d.gen})
		}
	})
}

// RemoveBone deletes a bone, shifting the indices of every bone after it.
func (d *MemDocument) RemoveBone(armature Handle, index int) {
	h := armature.(memHandle)
	if index < 0 || index >= len(h.obj.bones) {
		return
	}
	b := h.obj.bones[index]
	b.gone = true
	h.obj.bones = slices.Delete(h.obj.bones, index, index+1)
	d.gen++
	d.emit(func(e Events) {
		if e.HandlesInvalidated != nil {
			e.HandlesInvalidated()
		}
	})
}

// InvalidateHandles simulates an arbitrary undo/redo boundary.
func (d *MemDocument) InvalidateHandles() {
	d.gen++
	d.emit(func(e Events) {
		if e.HandlesInvalidated != nil {
			e.HandlesInvalidated()
		}
	})
}

// Select replaces the selection. The order of `handles` is the host-reported
// order, which carries no meaning about the user's click sequence.
func (d *MemDocument) Select(handles ...Handle) {
	d.emit(func(e Events) {
		if e.SelectionChanged != nil {
			e.SelectionChanged(handles)
		}
	})
}

func (d *MemDocument) DeselectAll() {
	d.Select()
}

func (d *MemDocument) SetMode(m Mode) {
	if d.mode == m {
		return
	}
	prev := d.mode
	d.mode = m
	if prev == EditMode {
		// Leaving edit mode rebuilds internal data, stale handles abound
		d.gen++
	}
	d.emit(func(e Events) {
		if e.ModeChanged != nil {
			e.ModeChanged(prev, m)
		}
	})
}

func (d *MemDocument) SetFrame(frame int) {
	d.frame = frame
	d.emit(func(e Events) {
		if e.FrameChanged != nil {
			e.FrameChanged(frame)
		}
	})
}
