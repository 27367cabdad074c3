package bridge

import (
	"fmt"

	"github.com/rigbridge/rigbridge/modules/host"
	"github.com/rigbridge/rigbridge/modules/types"
)

// typeField is the metadata field naming the archetype of objects owned by
// this integration. Plain host objects don't carry it.
const typeField = "rigType"

type ProxyKind uint8

const (
	ProxyObject ProxyKind = iota
	ProxyArmature
	ProxyBone
)

func (k ProxyKind) String() string {
	switch k {
	case ProxyObject:
		return "object"
	case ProxyArmature:
		return "armature"
	case ProxyBone:
		return "bone"
	}
	return "unknown"
}

// Proxy is the stable wrapper around a host object. Exactly one Proxy exists
// per identity at any time; they are only constructed through Session.Wrap.
//
// A proxy survives handle invalidation: any public accessor that needs the
// live object first re-resolves the handle if it has been marked dirty, and
// converts resolution failure into a lifecycle transition instead of an
// error from nowhere.
type Proxy struct {
	session  *Session
	identity Identity
	kind     ProxyKind

	handle   host.Handle
	lastName string
	boneIdx  int

	// Is the handle possibly invalidated?
	dirty bool

	// Soft-deleted, may come back through undo.
	removed bool

	// Permanently gone. Terminal.
	destroyed bool

	archetype     string
	archetypeRead bool

	// Transient metadata, e.g. the bound engine entity. Not persisted.
	data map[string]any

	// Canonical previous values per field, for change detection. Lives here
	// rather than in Property because properties are discarded on restore.
	previous map[string]string

	properties map[propertyKey]*Property

	// Reverse connections: objects whose reference fields point at us,
	// keyed by field name.
	outputs map[string]*Proxy
}

func (p *Proxy) String() string {
	if p.removed || p.destroyed {
		return fmt.Sprintf("%s<removed>", p.lastName)
	}
	return p.lastName
}

// Identity always succeeds, even on destroyed proxies.
func (p *Proxy) Identity() Identity {
	return p.identity
}

// Name returns the last known name. Always succeeds; the name of a destroyed
// object is the one it had when last seen.
func (p *Proxy) Name() string {
	if err := p.ensure(); err == nil {
		p.lastName = p.handle.Name()
	}
	return p.lastName
}

func (p *Proxy) Kind() ProxyKind {
	return p.kind
}

// Type returns the archetype name for objects owned by this integration,
// empty for foreign objects. Cached; survives destruction.
func (p *Proxy) Type() string {
	if !p.archetypeRead {
		if err := p.ensure(); err == nil {
			p.archetype, _ = p.handle.Meta(typeField)
			p.archetypeRead = true
		}
	}
	return p.archetype
}

// SetType stamps the archetype onto the underlying object. Used right after
// creating an object this integration owns.
func (p *Proxy) SetType(typ string) error {
	if err := p.ensure(); err != nil {
		return err
	}
	p.handle.SetMeta(typeField, typ)
	p.archetype = typ
	p.archetypeRead = true
	return nil
}

// IsValid reports whether the proxy has not been permanently destroyed.
func (p *Proxy) IsValid() bool {
	return !p.destroyed
}

// IsAlive reports whether the underlying object is present in the document,
// re-resolving the handle if necessary.
func (p *Proxy) IsAlive() bool {
	if p.destroyed {
		return false
	}
	if p.dirty || p.handle == nil || !p.handle.Valid() {
		p.restore()
	}
	return !p.removed
}

// Dirty flags the handle as possibly invalidated. The next access restores.
func (p *Proxy) Dirty() {
	p.dirty = true
}

// Rearrange flags a bone proxy's cached index as untrustworthy, e.g. after
// bones were removed or reordered.
func (p *Proxy) Rearrange() {
	if p.kind == ProxyBone {
		p.boneIdx = -1
		p.dirty = true
	}
}

// Handle returns the live host handle.
func (p *Proxy) Handle() (host.Handle, error) {
	if err := p.ensure(); err != nil {
		return nil, err
	}
	return p.handle, nil
}

func (p *Proxy) Matrix() (types.Matrix4, error) {
	if err := p.ensure(); err != nil {
		return types.IdentityMatrix(), err
	}
	return p.handle.Matrix(), nil
}

func (p *Proxy) SetMatrix(m types.Matrix4) error {
	if err := p.ensure(); err != nil {
		return err
	}
	p.handle.SetMatrix(m)
	return nil
}

// Data is the transient key/value metadata map.
func (p *Proxy) Data(key string) (any, bool) {
	v, ok := p.data[key]
	return v, ok
}

func (p *Proxy) SetData(key string, value any) {
	p.data[key] = value
}

// ConnectOutput records the reverse of a reference: `other`'s field `field`
// points at p.
func (p *Proxy) ConnectOutput(field string, other *Proxy) {
	p.outputs[field] = other
}

func (p *Proxy) OutputConnection(field string) (*Proxy, bool) {
	o, ok := p.outputs[field]
	return o, ok
}

// ensure guards every live accessor: a destroyed proxy rejects access, a
// dirty or invalid handle is restored first.
func (p *Proxy) ensure() error {
	if p.destroyed {
		return ExistError{What: p.lastName}
	}
	if !p.dirty && p.handle != nil && p.handle.Valid() && !p.removed {
		return nil
	}
	return p.restore()
}

// restore re-resolves the host handle through the identity machinery. On
// failure the proxy transitions to removed; on success a previously removed
// proxy has evidently been brought back by undo and transitions to alive.
func (p *Proxy) restore() error {
	// No matter what happens, the dirt has been handled
	p.dirty = false

	// These can no longer be trusted. The instances survive so callers
	// holding one keep the single accessor per field; they just refetch.
	for _, prop := range p.properties {
		prop.Dirty()
	}

	var h host.Handle
	var ok bool

	if p.kind == ProxyBone {
		h, ok = p.restoreBone()
	} else {
		h, ok = p.session.findByIdentity(p.identity)
	}

	if !ok {
		p.handle = nil
		p.session.markRemoved(p, true)
		return ExistError{What: p.lastName}
	}

	p.handle = h
	p.lastName = h.Name()
	if p.kind == ProxyBone {
		p.boneIdx = h.Index()
	}

	// If we made it this far and the proxy was previously removed, the
	// object has been recreated via undo.
	if p.removed {
		p.session.markUnremoved(p, true)
	}

	return nil
}

func (p *Proxy) restoreBone() (host.Handle, bool) {
	armature, ok := p.session.findByIdentity(Identity{Object: p.identity.Object})
	if !ok {
		return nil, false
	}

	// Try the fast route first
	if h, ok := p.session.findBoneByIndex(p.identity, armature, p.boneIdx); ok {
		return h, true
	}

	// The slow route
	return p.session.findBone(p.identity)
}
