package engine

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync"
	"github.com/rigbridge/rigbridge/modules/types"
)

// Registry is the in-process reference implementation of Binding. The real
// core runs worker threads of its own, so this one is thread-safe too, even
// though the bridge only ever talks to it from the main thread.
type Registry struct {
	records *xsync.MapOf[int32, *record]
	next    atomic.Int32

	mu        sync.Mutex
	callbacks Callbacks
	changes   map[changeKey]int
}

type record struct {
	mu         sync.Mutex
	archetype  string
	name       string
	components map[string]Component
	output     types.Matrix4
	velocity   types.Vector3
}

type changeKey struct {
	entity Entity
	field  string
}

func NewRegistry() *Registry {
	r := &Registry{
		records: xsync.NewIntegerMapOf[int32, *record](),
		changes: make(map[changeKey]int),
	}
	return r
}

func (r *Registry) Create(archetype, name string) Entity {
	e := Entity(r.next.Add(1))
	r.records.Store(int32(e), &record{
		archetype:  archetype,
		name:       name,
		components: make(map[string]Component),
		output:     types.IdentityMatrix(),
	})
	return e
}

func (r *Registry) Destroy(e Entity) {
	r.records.Delete(int32(e))
}

func (r *Registry) Valid(e Entity) bool {
	if e == Null {
		return false
	}
	_, ok := r.records.Load(int32(e))
	return ok
}

func (r *Registry) Archetype(e Entity) string {
	rec, ok := r.records.Load(int32(e))
	if !ok {
		return ""
	}
	return rec.archetype
}

func (r *Registry) Name(e Entity) string {
	rec, ok := r.records.Load(int32(e))
	if !ok {
		return ""
	}
	return rec.name
}

func (r *Registry) Component(name string, e Entity) Component {
	rec, ok := r.records.Load(int32(e))
	if !ok {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	c, ok := rec.components[name]
	if !ok {
		c = make(Component)
		rec.components[name] = c
	}
	return c
}

func (r *Registry) HasComponent(name string, e Entity) bool {
	rec, ok := r.records.Load(int32(e))
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	_, ok = rec.components[name]
	return ok
}

func (r *Registry) Components(e Entity) []string {
	rec, ok := r.records.Load(int32(e))
	if !ok {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	names := make([]string, 0, len(rec.components))
	for name := range rec.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) PropertyChanged(e Entity, field string) {
	r.mu.Lock()
	r.changes[changeKey{e, field}]++
	r.mu.Unlock()
}

// PropertyChangedCount reports how many times a change notification arrived
// for (entity, field). Used by tests to verify exactly-once propagation.
func (r *Registry) PropertyChangedCount(e Entity, field string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes[changeKey{e, field}]
}

// Evaluate steps a solver entity. The reference implementation is not a
// physics engine: kinematic members follow their input transform, everything
// else falls along the solver's gravity vector. Enough to see data flowing.
func (r *Registry) Evaluate(solver Entity) {
	rec, ok := r.records.Load(int32(solver))
	if !ok || rec.archetype != "rdSolver" {
		return
	}

	var gravity types.Vector3
	if g, ok := r.Component("SolverComponent", solver)["gravity"].(types.Vector3); ok {
		gravity = g
	}
	substeps := 1
	if s, ok := r.Component("SolverComponent", solver)["substeps"].(int); ok && s > 0 {
		substeps = s
	}
	dt := 1.0 / 24.0 / float64(substeps)

	r.Each(func(member Entity) bool {
		if member == solver {
			return true
		}
		scene := r.Component("SceneComponent", member)
		owner, _ := scene["entity"].(Entity)
		if owner != solver {
			return true
		}

		mrec, ok := r.records.Load(int32(member))
		if !ok {
			return true
		}
		mrec.mu.Lock()
		kin, _ := mrec.components["KinematicComponent"]["value"].(types.Matrix4)
		ui := mrec.components["MarkerUIComponent"]
		inputType, _ := ui["inputType"].(int)
		mrec.mu.Unlock()

		if inputType == 1 { // kinematic, follow the input
			mrec.mu.Lock()
			mrec.output = kin
			mrec.velocity = types.Vector3{}
			mrec.mu.Unlock()
			return true
		}

		for i := 0; i < substeps; i++ {
			mrec.mu.Lock()
			mrec.velocity[0] += gravity[0] * dt
			mrec.velocity[1] += gravity[1] * dt
			mrec.velocity[2] += gravity[2] * dt
			mrec.output = mrec.output.Translated(types.Vector3{
				mrec.velocity[0] * dt,
				mrec.velocity[1] * dt,
				mrec.velocity[2] * dt,
			})
			mrec.mu.Unlock()
		}
		return true
	})
}

func (r *Registry) OutputMatrix(e Entity) types.Matrix4 {
	rec, ok := r.records.Load(int32(e))
	if !ok {
		return types.IdentityMatrix()
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.output
}

// ResetOutput rewinds an entity's simulated transform to a given state, used
// when returning to the start frame.
func (r *Registry) ResetOutput(e Entity, m types.Matrix4) {
	rec, ok := r.records.Load(int32(e))
	if !ok {
		return
	}
	rec.mu.Lock()
	rec.output = m
	rec.velocity = types.Vector3{}
	rec.mu.Unlock()
}

func (r *Registry) Each(yield func(Entity) bool) {
	var ids []int32
	r.records.Range(func(id int32, _ *record) bool {
		ids = append(ids, id)
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if !yield(Entity(id)) {
			return
		}
	}
}

func (r *Registry) SetCallbacks(cb Callbacks) {
	r.mu.Lock()
	r.callbacks = cb
	r.mu.Unlock()
}

// SetAttribute emulates an engine-side edit, e.g. from a manipulator in the
// engine's viewport. It lands in the component and flows back out through
// the AttributeSet callback.
func (r *Registry) SetAttribute(e Entity, component, field string, value any) {
	c := r.Component(component, e)
	if c == nil {
		return
	}
	c[field] = value
	r.mu.Lock()
	cb := r.callbacks.AttributeSet
	r.mu.Unlock()
	if cb != nil {
		cb(e, field, value)
	}
}

// ExecuteCommand emulates the engine's own UI asking the integration to run
// a named command, e.g. a menu item in its viewport.
func (r *Registry) ExecuteCommand(command string) {
	r.mu.Lock()
	cb := r.callbacks.ExecuteCommand
	r.mu.Unlock()
	if cb != nil {
		cb(command)
	}
}

// SelectFromEngine emulates the engine reporting a selection change.
func (r *Registry) SelectFromEngine(entities []Entity) {
	r.mu.Lock()
	cb := r.callbacks.SelectionChanged
	r.mu.Unlock()
	if cb != nil {
		cb(entities)
	}
}
