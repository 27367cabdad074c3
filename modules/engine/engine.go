// Package engine is the foreign binding to the physics core. The core is an
// opaque component registry addressed by small integer entity handles; all
// solving happens on the other side of this boundary. registry.go carries an
// in-process reference implementation used by tests and the CLI.
package engine

import (
	"github.com/rigbridge/rigbridge/modules/types"
)

// Entity is a handle into the engine's component registry. It has no meaning
// in the host document; the bridge's alias table is the only place the two
// handle spaces meet.
type Entity int32

// Null is the absence of an entity.
const Null Entity = 0

// Component is one named bag of fields attached to an entity. Mutations made
// through the map are visible to the engine immediately.
type Component map[string]any

// Callbacks flow from the engine back into the integration, e.g. when a
// manipulator inside the engine's own viewport edits an attribute.
type Callbacks struct {
	AttributeSet     func(Entity, string, any)
	SelectionChanged func([]Entity)
	ExecuteCommand   func(string)
}

// Binding is the call surface of the physics core.
type Binding interface {
	// Create allocates an entity of the given archetype. Entity handles are
	// never reused within a session.
	Create(archetype, name string) Entity

	Destroy(Entity)
	Valid(Entity) bool
	Archetype(Entity) string
	Name(Entity) string

	// Component returns the named component of an entity, creating it when
	// absent. The returned map is live.
	Component(name string, e Entity) Component

	// HasComponent reports presence without creating.
	HasComponent(name string, e Entity) bool

	// Components lists the component names present on an entity, sorted.
	Components(e Entity) []string

	// PropertyChanged notifies the core that a host-side field affecting
	// this entity changed value.
	PropertyChanged(e Entity, field string)

	// Evaluate steps the solver entity for the current frame.
	Evaluate(e Entity)

	// OutputMatrix returns the simulated world transform of an entity.
	OutputMatrix(e Entity) types.Matrix4

	// Each enumerates all live entities in creation order.
	Each(yield func(Entity) bool)

	SetCallbacks(Callbacks)
}
