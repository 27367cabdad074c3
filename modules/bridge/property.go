package bridge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/rigbridge/rigbridge/modules/host"
	"github.com/rigbridge/rigbridge/modules/schema"
	"github.com/rigbridge/rigbridge/modules/types"
)

// propertyKey identifies a property within a proxy. Index is the vector
// component for axis-suffixed access ("gravityY"), -1 for the whole value.
type propertyKey struct {
	name  string
	index int
}

// Property is a cached accessor for one field of a proxy's host object.
// Reads are served from cache until the property is dirtied; fields the
// schema marks as driven bypass the cache entirely because an animation
// channel may move them between any two reads.
type Property struct {
	proxy *Proxy
	name  string
	index int

	field *schema.Field

	cached any
	valid  bool
	dirty  bool
}

var axisIndex = map[byte]int{'X': 0, 'Y': 1, 'Z': 2}

// splitAxis strips a trailing axis suffix when, and only when, the remaining
// base names a vector field of the given archetype. "shapeExtentsY" on a
// marker resolves to ("shapeExtents", 1); a field genuinely named with a
// trailing Y stays whole.
func splitAxis(typ, name string) (string, int) {
	if len(name) < 2 {
		return name, -1
	}
	idx, ok := axisIndex[name[len(name)-1]]
	if !ok {
		return name, -1
	}
	base := name[:len(name)-1]
	f, ok := schema.Lookup(typ, base)
	if !ok || (f.Type != schema.TypeVector3 && f.Type != schema.TypeColor) {
		return name, -1
	}
	return base, idx
}

// Property returns the accessor for the named field, creating it on first
// use. Known schema fields are registered on the host object with their
// default so a fresh object reads back sensibly.
func (p *Proxy) Property(name string) (*Property, error) {
	if err := p.ensure(); err != nil {
		return nil, err
	}

	base, index := splitAxis(p.Type(), name)
	key := propertyKey{name: base, index: index}

	if prop, ok := p.properties[key]; ok {
		return prop, nil
	}

	prop := &Property{
		proxy: p,
		name:  base,
		index: index,
		dirty: true,
	}

	if f, ok := schema.Lookup(p.Type(), base); ok {
		prop.field = f
		p.handle.EnsureField(base, f.Default)
	}

	p.properties[key] = prop
	return prop, nil
}

func (pr *Property) Name() string {
	if pr.index >= 0 {
		return pr.name + string("XYZ"[pr.index])
	}
	return pr.name
}

// Field returns the schema field backing this property, nil for fields of
// foreign objects.
func (pr *Property) Field() *schema.Field {
	return pr.field
}

// Dirty invalidates the cached value. The next Read refetches.
func (pr *Property) Dirty() {
	pr.dirty = true
}

// Read returns the current value, from cache when allowed. Driven fields and
// host-animated fields are never served from cache. force bypasses the cache
// unconditionally.
func (pr *Property) Read(force bool) (any, error) {
	if err := pr.proxy.ensure(); err != nil {
		return nil, err
	}

	driven := (pr.field != nil && pr.field.Driven) ||
		pr.proxy.handle.Animated(pr.name)

	if pr.valid && !pr.dirty && !driven && !force {
		return pr.extract(pr.cached), nil
	}

	raw, ok := pr.proxy.handle.Fetch(pr.name)
	if !ok {
		if pr.field != nil {
			raw = pr.field.Default
		} else {
			return nil, errors.Errorf("%s has no field %q", pr.proxy.lastName, pr.name)
		}
	}

	pr.cached = pr.convert(raw)
	pr.valid = true
	pr.dirty = false

	return pr.extract(pr.cached), nil
}

// convert normalizes a raw host value into the property's public shape:
// enum indices become labels, host references become proxies.
func (pr *Property) convert(raw any) any {
	if pr.field == nil {
		return raw
	}

	switch pr.field.Type {
	case schema.TypeEnum:
		if i, ok := toInt(raw); ok && i >= 0 && i < len(pr.field.Items) {
			return pr.field.Items[i]
		}
	case schema.TypeEntity, schema.TypeRef:
		if ref, ok := raw.(host.Ref); ok {
			return pr.proxy.session.wrapRef(ref)
		}
	case schema.TypeEntityList, schema.TypeRefList:
		if refs, ok := raw.([]host.Ref); ok {
			proxies := make([]*Proxy, 0, len(refs))
			for _, ref := range refs {
				if px := pr.proxy.session.wrapRef(ref); px != nil {
					proxies = append(proxies, px)
				}
			}
			return proxies
		}
	}

	return raw
}

// extract pulls the addressed component out of a vector value.
func (pr *Property) extract(v any) any {
	if pr.index < 0 {
		return v
	}
	switch t := v.(type) {
	case types.Vector3:
		return t[pr.index]
	case types.Color:
		return t[pr.index]
	}
	return v
}

// Write stores a new value on the host object. Enum labels and indices are
// both accepted, proxies collapse to host references, and axis-suffixed
// writes patch the one component in place. The host emits the edit event
// which dirties this property and fans out to change listeners.
func (pr *Property) Write(value any) error {
	if err := pr.proxy.ensure(); err != nil {
		return err
	}

	converted, err := pr.lower(value)
	if err != nil {
		return err
	}

	if pr.index >= 0 {
		f, ok := toFloat(converted)
		if !ok {
			return errors.Errorf("component write to %s needs a scalar, got %T", pr.Name(), value)
		}
		current, _ := pr.proxy.handle.Fetch(pr.name)
		switch vec := current.(type) {
		case types.Vector3:
			vec[pr.index] = f
			converted = vec
		case types.Color:
			vec[pr.index] = f
			converted = vec
		default:
			var fresh types.Vector3
			fresh[pr.index] = f
			converted = fresh
		}
	}

	if err := pr.proxy.handle.Store(pr.name, converted); err != nil {
		return err
	}
	pr.recordOutputs(value)
	return nil
}

// recordOutputs notes the reverse of every reference just written, so the
// target knows who to wake when it goes away.
func (pr *Property) recordOutputs(value any) {
	switch t := value.(type) {
	case *Proxy:
		if t != nil {
			t.ConnectOutput(pr.name, pr.proxy)
		}
	case []*Proxy:
		for _, px := range t {
			px.ConnectOutput(pr.name, pr.proxy)
		}
	}
}

// lower converts a public value into the raw shape the host stores.
func (pr *Property) lower(value any) (any, error) {
	if pr.field == nil {
		return value, nil
	}

	switch pr.field.Type {
	case schema.TypeEnum:
		switch t := value.(type) {
		case string:
			if i := pr.field.IndexOf(t); i >= 0 {
				return i, nil
			}
			return nil, errors.Errorf("%q is not an item of %s", t, pr.name)
		default:
			if i, ok := toInt(value); ok {
				if i < 0 || i >= len(pr.field.Items) {
					return nil, errors.Errorf("enum index %d out of range for %s", i, pr.name)
				}
				return i, nil
			}
		}
	case schema.TypeEntity, schema.TypeRef:
		switch t := value.(type) {
		case *Proxy:
			if t == nil {
				return host.Ref{}, nil
			}
			return t.ref()
		case nil:
			return host.Ref{}, nil
		}
	case schema.TypeEntityList, schema.TypeRefList:
		if proxies, ok := value.([]*Proxy); ok {
			refs := make([]host.Ref, 0, len(proxies))
			for _, px := range proxies {
				r, err := px.ref()
				if err != nil {
					return nil, err
				}
				refs = append(refs, r)
			}
			return refs, nil
		}
	}

	return value, nil
}

// Changed compares the current value against the last one this method saw
// and reports whether it moved, updating the record. The comparison uses a
// canonical string form so float noise and reference identity both behave.
func (pr *Property) Changed() (bool, error) {
	v, err := pr.Read(false)
	if err != nil {
		return false, err
	}

	now := canonical(v)
	key := pr.Name()

	before, seen := pr.proxy.previous[key]
	pr.proxy.previous[key] = now

	if !seen {
		return true, nil
	}
	return before != now, nil
}

// Touch re-announces the property to change listeners without writing,
// used when a dependent needs to re-read after an indirect change.
func (pr *Property) Touch() error {
	if err := pr.proxy.ensure(); err != nil {
		return err
	}
	pr.dirty = true
	delete(pr.proxy.previous, pr.Name())
	pr.proxy.session.dispatchPropertyChanged(pr.proxy, pr.Name())
	return nil
}

// ref lowers a proxy into a host reference for storage.
func (p *Proxy) ref() (host.Ref, error) {
	if err := p.ensure(); err != nil {
		return host.Ref{}, err
	}
	if p.kind == ProxyBone {
		return host.Ref{Object: p.handle.Owner(), BoneID: p.identity.Sub, BoneIdx: p.boneIdx}, nil
	}
	return host.Ref{Object: p.handle}, nil
}

// canonical renders a value into a deterministic comparison string.
func canonical(v any) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case *Proxy:
		if t == nil {
			return "<nil>"
		}
		return t.identity.String()
	case []*Proxy:
		parts := make([]string, len(t))
		for i, px := range t {
			parts[i] = canonical(px)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case float64:
		return strconv.FormatFloat(t, 'g', 12, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', 7, 64)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}
