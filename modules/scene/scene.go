// Package scene is the synchronization protocol between a bridge session and
// the engine: archetype registration, entity construction, property-change
// routing and the per-frame evaluation passes.
package scene

import (
	"github.com/pkg/errors"

	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/schema"
	"github.com/rigbridge/rigbridge/modules/ui"
)

// entityKey is the proxy metadata key holding the bound engine entity.
const entityKey = "entity"

// Archetype is the synchronization contract one entity role implements.
// Implementations register themselves with Register at init time.
type Archetype interface {
	// Type is the archetype name, matching its schema definition.
	Type() string

	// PostConstructor runs exactly once per newly created host object of
	// this archetype. It creates the mirrored engine entity; the scene
	// binds the alias and pushes initial state afterwards.
	PostConstructor(sc *Scene, p *bridge.Proxy) (engine.Entity, error)

	// OnPropertyChanged updates entity relationships the raw write cannot
	// express, e.g. re-deriving a parent link when a reference field moves.
	OnPropertyChanged(sc *Scene, e engine.Entity, field string)

	// EvaluateStartState pushes structural, time-zero fields.
	EvaluateStartState(sc *Scene, e engine.Entity)

	// EvaluateCurrentState pushes per-frame runtime fields.
	EvaluateCurrentState(sc *Scene, e engine.Entity)
}

// MemberEvaluator is implemented by archetypes that own other entities and
// must re-collect their membership when the scene changes shape.
type MemberEvaluator interface {
	EvaluateMembers(sc *Scene, e engine.Entity)
	ClearMembers(sc *Scene, e engine.Entity)
}

var archetypes = make(map[string]Archetype)

// Register adds an archetype to the dispatch table. Called from init
// functions; a duplicate registration is a programming error.
func Register(a Archetype) {
	if _, ok := archetypes[a.Type()]; ok {
		panic("archetype " + a.Type() + " registered twice")
	}
	archetypes[a.Type()] = a
}

// Registered returns the archetype for a type name.
func Registered(typ string) (Archetype, bool) {
	a, ok := archetypes[typ]
	return a, ok
}

// Scene glues one session to one engine binding. All host events relevant
// to synchronization are subscribed here.
type Scene struct {
	Session *bridge.Session
	Engine  engine.Binding

	startFrame int
	started    bool

	// Set while applying an engine-originated edit to the host, so the
	// resulting change notification is not echoed back to the engine.
	applying bool

	engineSelected []func([]*bridge.Proxy)
	engineCommand  []func(string)
}

func New(session *bridge.Session, binding engine.Binding) *Scene {
	sc := &Scene{
		Session:    session,
		Engine:     binding,
		startFrame: 1,
	}

	session.OnCreated(sc.onCreated)
	session.OnRemoved(sc.onRemoved)
	session.OnUnremoved(sc.onUnremoved)
	session.OnDestroyed(sc.onDestroyed)
	session.OnPropertyChanged(sc.onPropertyChanged)
	session.OnFrameChanged(sc.onFrameChanged)

	binding.SetCallbacks(engine.Callbacks{
		AttributeSet:     sc.onEngineAttribute,
		SelectionChanged: sc.onEngineSelection,
		ExecuteCommand:   sc.onEngineCommand,
	})

	return sc
}

// EntityOf returns the engine entity bound to a proxy, Null when the proxy
// has no engine-side mirror.
func (sc *Scene) EntityOf(p *bridge.Proxy) engine.Entity {
	v, ok := p.Data(entityKey)
	if !ok {
		return engine.Null
	}
	e, _ := v.(engine.Entity)
	return e
}

// Initialize stamps a host object with an archetype and runs its
// post-constructor: the engine entity is created, bound in the alias table
// and fed every schema field's initial value.
func (sc *Scene) Initialize(p *bridge.Proxy, typ string) (engine.Entity, error) {
	a, ok := archetypes[typ]
	if !ok {
		return engine.Null, errors.Errorf("no archetype registered for %q", typ)
	}

	if e := sc.EntityOf(p); e != engine.Null {
		return e, nil
	}

	if err := p.SetType(typ); err != nil {
		return engine.Null, err
	}

	e, err := a.PostConstructor(sc, p)
	if err != nil {
		return engine.Null, errors.Wrapf(err, "constructing %v", p)
	}

	p.SetData(entityKey, e)
	sc.Session.BindAlias(e, p)

	sc.TouchAll(p)
	a.EvaluateStartState(sc, e)

	ui.Debug().Msgf("Initialized %v as %v entity %v", p.Name(), typ, e)
	return e, nil
}

// TouchAll re-announces every non-internal schema field of a proxy, pushing
// initial values through the normal change path.
func (sc *Scene) TouchAll(p *bridge.Proxy) {
	def, ok := schema.Get(p.Type())
	if !ok {
		return
	}
	for _, name := range def.Order {
		f := def.Fields[name]
		if f.Internal {
			continue
		}
		prop, err := p.Property(name)
		if err != nil {
			if bridge.IsExist(err) {
				return
			}
			sc.Session.Warn("touch "+p.Name()+"."+name, err)
			continue
		}
		if err := prop.Touch(); err != nil {
			sc.Session.Warn("touch "+p.Name()+"."+name, err)
		}
	}
}

// onCreated picks up objects that arrive already typed, e.g. through a
// host-side duplication of one of ours. Objects made via Initialize pass
// through here before their type is stamped and are ignored.
func (sc *Scene) onCreated(p *bridge.Proxy) {
	typ := p.Type()
	if typ == "" {
		return
	}
	if _, ok := archetypes[typ]; !ok {
		return
	}
	if _, err := sc.Initialize(p, typ); err != nil {
		sc.Session.Warn("mirroring created "+p.Name(), err)
	}
}

func (sc *Scene) onRemoved(p *bridge.Proxy) {
	// Membership must shrink now; the entity itself stays until destroy,
	// so undo can bring the pair back without re-construction.
	sc.EvaluateAllMembers()
}

func (sc *Scene) onUnremoved(p *bridge.Proxy) {
	sc.EvaluateAllMembers()
	if e := sc.EntityOf(p); e != engine.Null {
		sc.TouchAll(p)
	}
}

func (sc *Scene) onDestroyed(p *bridge.Proxy) {
	e := sc.EntityOf(p)
	if e == engine.Null {
		return
	}
	// The alias stays: it holds the proxy weakly and callers may still
	// resolve it to read the name of what was destroyed.
	sc.Engine.Destroy(e)
	sc.EvaluateAllMembers()
}

// onPropertyChanged routes one field edit into the protocol: the archetype
// hook first, then the structural notification to the engine, exactly once
// per edit.
func (sc *Scene) onPropertyChanged(p *bridge.Proxy, field string) {
	e := sc.EntityOf(p)
	if e == engine.Null {
		return
	}

	if a, ok := archetypes[p.Type()]; ok {
		a.OnPropertyChanged(sc, e, field)
	}

	if !sc.applying {
		sc.Engine.PropertyChanged(e, field)
	}
}

// Bind associates a proxy with an existing engine entity, for callers that
// create entities outside the archetype machinery.
func (sc *Scene) Bind(p *bridge.Proxy, e engine.Entity) {
	p.SetData(entityKey, e)
	sc.Session.BindAlias(e, p)
}

// onEngineAttribute lands a manipulator edit from the engine's own viewport
// back onto the host object.
func (sc *Scene) onEngineAttribute(e engine.Entity, field string, value any) {
	p := sc.Session.Alias(e)
	if p == nil || !p.IsAlive() {
		return
	}
	prop, err := p.Property(field)
	if err != nil {
		sc.Session.Warn("engine edit of "+p.Name()+"."+field, err)
		return
	}

	sc.applying = true
	defer func() { sc.applying = false }()

	if err := prop.Write(value); err != nil {
		sc.Session.Warn("engine edit of "+p.Name()+"."+field, err)
	}
}

func (sc *Scene) onEngineSelection(entities []engine.Entity) {
	proxies := make([]*bridge.Proxy, 0, len(entities))
	for _, e := range entities {
		if p := sc.Session.Alias(e); p != nil && p.IsAlive() {
			proxies = append(proxies, p)
		}
	}
	for _, fn := range sc.engineSelected {
		fn(proxies)
	}
}

// OnEngineSelected registers a callback for selection changes originating
// inside the engine viewport.
func (sc *Scene) OnEngineSelected(fn func([]*bridge.Proxy)) {
	sc.engineSelected = append(sc.engineSelected, fn)
}

// onEngineCommand defers command handlers to the next flush. Commands
// typically edit the document, which is undefined inside a callback from
// the engine.
func (sc *Scene) onEngineCommand(command string) {
	for _, fn := range sc.engineCommand {
		sc.Session.Defer(func() { fn(command) })
	}
}

// OnEngineCommand registers a handler for commands issued from the engine's
// own UI.
func (sc *Scene) OnEngineCommand(fn func(string)) {
	sc.engineCommand = append(sc.engineCommand, fn)
}

// Solvers returns the live solver proxies.
func (sc *Scene) Solvers() []*bridge.Proxy {
	return sc.Session.Typed("rdSolver")
}

// EvaluateAllMembers re-collects membership on every live solver.
func (sc *Scene) EvaluateAllMembers() {
	for _, solver := range sc.Solvers() {
		e := sc.EntityOf(solver)
		if e == engine.Null {
			continue
		}
		if me, ok := archetypes["rdSolver"].(MemberEvaluator); ok {
			me.EvaluateMembers(sc, e)
		}
	}
}

// Typed returns live proxies of one archetype, wrapping the session lookup
// for archetype implementations.
func (sc *Scene) Typed(typ string) []*bridge.Proxy {
	return sc.Session.Typed(typ)
}
