package bridge

import (
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/rigbridge/rigbridge/modules/host"
	"github.com/rigbridge/rigbridge/modules/ui"
)

// Session owns every proxy for one host document. All lookups, lifecycle
// bookkeeping and event fan-out go through it; there is no package-level
// state, so two documents side by side get two independent sessions.
//
// A session is single-threaded by contract, like the host event loop that
// drives it.
type Session struct {
	doc   host.Document
	cache objectCache

	// The one-proxy-per-identity registry. Holds the strong reference for
	// the proxy's whole life; dropped when the proxy is destroyed.
	proxies map[Identity]*Proxy

	aliases   aliasTable
	selection selectionTracker
	deferred  deferredQueue
	reports   reportLog

	created    []func(*Proxy)
	removed    []func(*Proxy)
	unremoved  []func(*Proxy)
	destroyed  []func(*Proxy)
	selChanged []func([]*Proxy)
	modes      []func(prev, cur host.Mode)
	frames     []func(int)

	// propChanged fires after any field edit or touch, exactly once per
	// edit, with the proxy and the field name.
	propChanged []func(*Proxy, string)
}

func NewSession(doc host.Document) *Session {
	s := &Session{
		doc:     doc,
		cache:   newObjectCache(),
		proxies: make(map[Identity]*Proxy),
		aliases: newAliasTable(),
	}

	doc.Subscribe(host.Events{
		ObjectCreated:      s.onObjectCreated,
		ObjectRemoved:      s.onObjectRemoved,
		ObjectDestroyed:    s.onObjectDestroyed,
		HandlesInvalidated: s.onHandlesInvalidated,
		FieldEdited:        s.onFieldEdited,
		SelectionChanged:   s.onSelectionChanged,
		ModeChanged:        s.onModeChanged,
		FrameChanged:       s.onFrameChanged,
	})

	return s
}

func (s *Session) Document() host.Document {
	return s.doc
}

// Wrap returns the one proxy for a host object, constructing it on first
// observation. Subsequent wraps of the same underlying object return the
// same pointer, whatever handle they came through.
func (s *Session) Wrap(h host.Handle) (*Proxy, error) {
	id, err := s.IdentityOf(h)
	if err != nil {
		return nil, err
	}

	if p, ok := s.proxies[id]; ok {
		// Freshen the handle while we hold a known-live one
		if !p.destroyed && h.Valid() {
			p.handle = h
			p.lastName = h.Name()
			p.dirty = false
			if p.kind == ProxyBone {
				p.boneIdx = h.Index()
			}
			if p.removed {
				s.markUnremoved(p, true)
			}
		}
		return p, nil
	}

	p := &Proxy{
		session:    s,
		identity:   id,
		kind:       proxyKindOf(h),
		handle:     h,
		lastName:   h.Name(),
		boneIdx:    h.Index(),
		data:       make(map[string]any),
		previous:   make(map[string]string),
		properties: make(map[propertyKey]*Property),
		outputs:    make(map[string]*Proxy),
	}

	s.proxies[id] = p
	if p.kind != ProxyBone {
		s.cache.store(id, h)
	}

	s.fanOut("created", s.created, p)
	return p, nil
}

func proxyKindOf(h host.Handle) ProxyKind {
	switch h.Kind() {
	case host.KindArmature:
		return ProxyArmature
	case host.KindBone:
		return ProxyBone
	}
	return ProxyObject
}

// wrapRef resolves a reference field value into a proxy, nil when the
// referenced object is gone.
func (s *Session) wrapRef(ref host.Ref) *Proxy {
	if ref.Object == nil {
		return nil
	}
	if ref.BoneID != "" {
		ownerID, err := s.objectIdentity(ref.Object)
		if err != nil {
			return nil
		}
		id := Identity{Object: ownerID, Sub: ref.BoneID}
		if p, ok := s.proxies[id]; ok {
			return p
		}
		h, ok := s.findBoneByIndex(id, ref.Object, ref.BoneIdx)
		if !ok {
			h, ok = s.findBone(id)
		}
		if !ok {
			return nil
		}
		p, err := s.Wrap(h)
		if err != nil {
			return nil
		}
		return p
	}
	h := ref.Object
	if !h.Valid() {
		// Stale reference. Re-resolve through the identity; a destroyed
		// target resolves to nothing rather than a dead wrapper.
		id, err := s.objectIdentity(h)
		if err != nil {
			return nil
		}
		if p, ok := s.proxies[Identity{Object: id}]; ok && !p.destroyed {
			return p
		}
		live, ok := s.findByIdentity(Identity{Object: id})
		if !ok {
			return nil
		}
		h = live
	}
	p, err := s.Wrap(h)
	if err != nil {
		return nil
	}
	return p
}

// ByIdentity returns a registered proxy without touching the host.
func (s *Session) ByIdentity(id Identity) (*Proxy, bool) {
	p, ok := s.proxies[id]
	return p, ok
}

// Proxies visits every registered (non-destroyed) proxy.
func (s *Session) Proxies(yield func(*Proxy) bool) {
	for _, p := range s.proxies {
		if !yield(p) {
			return
		}
	}
}

// Typed collects the live proxies of one archetype.
func (s *Session) Typed(typ string) []*Proxy {
	var out []*Proxy
	for _, p := range s.proxies {
		if p.destroyed || p.removed {
			continue
		}
		if p.Type() == typ {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) Frame() int {
	return s.doc.Frame()
}

// Handler registration. Handlers run synchronously on the host thread; a
// panicking handler is logged and skipped, never allowed to break the
// others or the event that triggered it.

func (s *Session) OnCreated(fn func(*Proxy))            { s.created = append(s.created, fn) }
func (s *Session) OnRemoved(fn func(*Proxy))            { s.removed = append(s.removed, fn) }
func (s *Session) OnUnremoved(fn func(*Proxy))          { s.unremoved = append(s.unremoved, fn) }
func (s *Session) OnDestroyed(fn func(*Proxy))          { s.destroyed = append(s.destroyed, fn) }
func (s *Session) OnSelectionChanged(fn func([]*Proxy)) { s.selChanged = append(s.selChanged, fn) }
func (s *Session) OnModeChanged(fn func(prev, cur host.Mode)) {
	s.modes = append(s.modes, fn)
}
func (s *Session) OnFrameChanged(fn func(int)) { s.frames = append(s.frames, fn) }
func (s *Session) OnPropertyChanged(fn func(*Proxy, string)) {
	s.propChanged = append(s.propChanged, fn)
}

func (s *Session) fanOut(what string, fns []func(*Proxy), p *Proxy) {
	s.reports.add(what, p)
	for _, fn := range fns {
		s.safely(what, func() { fn(p) })
	}
}

func (s *Session) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.reports.note("panic", what, fmt.Sprint(r))
			ui.Error().Msgf("Listener for %v failed: %v", what, r)
		}
	}()
	fn()
}

// Warn logs a synchronization failure and keeps it in the rolling report
// log, so integrations that only surface the log at idle still see it.
func (s *Session) Warn(subject string, err error) {
	s.reports.note("warning", subject, err.Error())
	ui.Warn().Msgf("%v: %v", subject, err)
}

// DirtyAll flags every proxy and every cached property value stale. Cheap;
// the cost is paid lazily as proxies are next accessed.
func (s *Session) DirtyAll() {
	for _, p := range s.proxies {
		if p.destroyed {
			continue
		}
		p.dirty = true
		for _, prop := range p.properties {
			prop.dirty = true
		}
	}
}

// RestoreAll eagerly re-resolves every proxy, driving removed/unremoved
// transitions now instead of at next access. Used after undo when listeners
// want prompt lifecycle events.
func (s *Session) RestoreAll() {
	for _, p := range s.proxies {
		if p.destroyed {
			continue
		}
		p.restore()
	}
}

// InvalidateCaches drops the identity lookup cache. The next resolution
// pays one full document scan.
func (s *Session) InvalidateCaches() {
	s.cache.clear()
}

func (s *Session) dispatchPropertyChanged(p *Proxy, field string) {
	for _, fn := range s.propChanged {
		s.safely("property "+field, func() { fn(p, field) })
	}
}

// proxyFor resolves an event handle to its registered proxy without going
// through Wrap, so events about unobserved objects are ignored and events
// about dead objects (whose metadata remains readable) still resolve.
func (s *Session) proxyFor(h host.Handle) (*Proxy, bool) {
	var id Identity

	if h.Kind() == host.KindBone {
		owner := h.Owner()
		if owner == nil {
			return nil, false
		}
		raw, ok := owner.Meta(identField)
		if !ok {
			return nil, false
		}
		obj, err := uuid.FromString(raw)
		if err != nil {
			return nil, false
		}
		sub, ok := h.Meta(boneIDField)
		if !ok {
			return nil, false
		}
		id = Identity{Object: obj, Sub: sub}
	} else {
		raw, ok := h.Meta(identField)
		if !ok {
			return nil, false
		}
		obj, err := uuid.FromString(raw)
		if err != nil {
			return nil, false
		}
		id = Identity{Object: obj}
	}

	p, ok := s.proxies[id]
	return p, ok
}

func (s *Session) onObjectCreated(h host.Handle) {
	// Wrapping eagerly is what catches host-side duplication: the copy
	// arrives carrying the original's identity metadata and gets its own.
	if _, err := s.Wrap(h); err != nil {
		if !IsExist(err) {
			ui.Debug().Msgf("Ignoring created object %v: %v", h.Name(), err)
		}
	}
}

func (s *Session) onObjectRemoved(h host.Handle) {
	if p, ok := s.proxyFor(h); ok {
		s.markRemoved(p, true)
	}
}

func (s *Session) onObjectDestroyed(h host.Handle) {
	if p, ok := s.proxyFor(h); ok {
		s.markDestroyed(p)
	}
}

func (s *Session) onHandlesInvalidated() {
	s.cache.clear()
	s.DirtyAll()
}

func (s *Session) onFieldEdited(h host.Handle, field string) {
	p, ok := s.proxyFor(h)
	if !ok {
		return
	}
	for key, prop := range p.properties {
		if key.name == field {
			prop.dirty = true
		}
	}
	s.dispatchPropertyChanged(p, field)
}

func (s *Session) onSelectionChanged(handles []host.Handle) {
	ordered := s.selection.reconcile(s, handles)
	for _, fn := range s.selChanged {
		s.safely("selection", func() { fn(ordered) })
	}
}

func (s *Session) onModeChanged(prev, cur host.Mode) {
	if prev == host.EditMode {
		// Bones may have been added, removed or reordered
		s.cache.clear()
		for _, p := range s.proxies {
			p.Rearrange()
		}
		s.DirtyAll()
	}
	for _, fn := range s.modes {
		s.safely("mode", func() { fn(prev, cur) })
	}
}

func (s *Session) onFrameChanged(frame int) {
	for _, fn := range s.frames {
		s.safely("frame", func() { fn(frame) })
	}
}

func (s *Session) markRemoved(p *Proxy, notify bool) {
	if p.removed || p.destroyed {
		return
	}
	p.removed = true
	delete(s.cache.byID, p.identity)
	s.selection.drop(p)
	if notify {
		s.fanOut("removed", s.removed, p)
	}
}

func (s *Session) markUnremoved(p *Proxy, notify bool) {
	if !p.removed || p.destroyed {
		return
	}
	p.removed = false
	if notify {
		s.fanOut("unremoved", s.unremoved, p)
	}
}

func (s *Session) markDestroyed(p *Proxy) {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.removed = false
	p.handle = nil
	delete(s.cache.byID, p.identity)
	s.selection.drop(p)
	s.fanOut("destroyed", s.destroyed, p)

	// Drop the strong reference first, so dependents re-reading their
	// reference fields below resolve the target to nothing instead of the
	// dead wrapper. Anyone still holding the proxy can read its name and
	// identity; the weak alias table stops keeping it alive.
	delete(s.proxies, p.identity)

	// Wake the dependents: whoever referenced this object re-announces the
	// referencing field and re-reads it as gone.
	for field, other := range p.outputs {
		if other.destroyed {
			continue
		}
		if prop, err := other.Property(field); err == nil {
			s.safely("output "+field, func() { prop.Touch() })
		}
	}
}
