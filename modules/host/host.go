// Package host defines the contract this bridge has with the host document
// model, the scene-graph application whose objects we mirror into the engine.
//
// The bridge depends on nothing about the host beyond what is expressed here:
// objects have a stable but invalidatable handle, custom metadata fields can
// be attached to them, and all live objects can be enumerated. An in-memory
// reference implementation lives in memory.go, used by tests and the CLI.
package host

import (
	"github.com/rigbridge/rigbridge/modules/types"
)

type Kind uint8

const (
	KindEmpty Kind = iota
	KindMesh
	KindArmature
	KindBone
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindMesh:
		return "mesh"
	case KindArmature:
		return "armature"
	case KindBone:
		return "bone"
	}
	return "unknown"
}

// Mode is the host interaction mode. Leaving certain modes invalidates
// handles and bone indices wholesale.
type Mode string

const (
	ObjectMode Mode = "OBJECT"
	PoseMode   Mode = "POSE"
	EditMode   Mode = "EDIT_ARMATURE"
)

// Ref is the value of a reference field: another object, optionally a
// specific bone within it. BoneIdx is a fast-path hint that can go stale,
// BoneID is authoritative.
type Ref struct {
	Object  Handle
	BoneID  string
	BoneIdx int
}

// Handle is a reference to an object or bone in the host document.
//
// Handles are NOT stable: undo, redo, mode changes and file reloads may
// invalidate every outstanding handle. Callers must be prepared for Valid()
// to flip to false at any event boundary and re-resolve through the bridge.
type Handle interface {
	Name() string
	Kind() Kind

	// Valid reports whether this handle still references a live object.
	Valid() bool

	// Same reports whether two handles reference the same underlying object,
	// regardless of handle generation.
	Same(Handle) bool

	// Owner returns the owning object for sub-objects (the armature of a
	// bone), nil for top-level objects.
	Owner() Handle

	// Index is the position of a bone within its owner, -1 for objects.
	Index() int

	// Meta is persistent custom metadata attached to the underlying object.
	// It survives handle invalidation and is copied when the host duplicates
	// an object. Metadata of destroyed objects remains readable.
	Meta(name string) (string, bool)
	SetMeta(name, value string)

	// Fetch reads a dynamic property field. Returns false if the field does
	// not exist or the object is gone.
	Fetch(field string) (any, bool)
	Store(field string, value any) error

	// EnsureField registers a dynamic property field with a default value,
	// keeping any existing value.
	EnsureField(field string, def any)
	Fields() []string

	// Animated reports whether the field is driven by an animation channel
	// and therefore changes without edits.
	Animated(field string) bool
	SetAnimated(field string, on bool)

	Matrix() types.Matrix4
	SetMatrix(types.Matrix4)
}

// Events are the host lifecycle callbacks a session subscribes to. All of
// them are delivered synchronously on the main thread.
type Events struct {
	ObjectCreated   func(Handle)
	ObjectRemoved   func(Handle)
	ObjectUnremoved func(Handle)
	ObjectDestroyed func(Handle)

	// HandlesInvalidated fires when an undo/redo boundary is crossed and
	// every outstanding handle may be stale.
	HandlesInvalidated func()

	// FieldEdited fires after a dynamic property field changed value,
	// whether through the bridge or directly in the host UI.
	FieldEdited func(Handle, string)

	SelectionChanged func([]Handle)
	ModeChanged      func(prev, cur Mode)
	FrameChanged     func(int)
}

// Document is the host scene document.
type Document interface {
	// Objects enumerates all live top-level objects in the document.
	Objects(yield func(Handle) bool)

	// LinkedObjects enumerates objects living in linked sub-documents.
	// These do not appear in Objects.
	LinkedObjects(yield func(Handle) bool)

	// HasLinks reports whether any linked sub-documents are present.
	HasLinks() bool

	// Bones enumerates the bones of an armature object.
	Bones(armature Handle, yield func(Handle) bool)

	// BoneHandle is indexed bone access, the fast path. Indices shift when
	// bones are removed or reordered, so callers verify what comes back.
	BoneHandle(armature Handle, index int) (Handle, bool)

	Mode() Mode
	Frame() int

	// Subscribe registers event callbacks. Multiple subscribers are
	// supported; nil callbacks are skipped.
	Subscribe(Events)
}
