// Package dump is the versioned JSON interchange format: a complete export
// of the engine's component registry, loadable into a fresh host document.
// Persistent identifiers are never written to the file; loading assigns
// fresh identities and fresh entities throughout.
package dump

import (
	"sort"
	"strconv"

	"github.com/Velocidex/ordereddict"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/host"
	"github.com/rigbridge/rigbridge/modules/scene"
	"github.com/rigbridge/rigbridge/modules/schema"
	"github.com/rigbridge/rigbridge/modules/types"
	"github.com/rigbridge/rigbridge/modules/ui"
	"github.com/rigbridge/rigbridge/modules/version"
)

// Format identifies the dump layout. Bump the suffix on breaking changes.
const Format = "rigbridge.dump/1"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one exported entity.
type Entry struct {
	Entity     engine.Entity  `json:"entity"`
	Archetype  string         `json:"archetype"`
	Name       string         `json:"name"`
	Components map[string]any `json:"components"`
}

// Export serializes the whole component registry. Entities appear in handle
// order and component keys are sorted, so identical registries produce
// byte-identical dumps.
func Export(binding engine.Binding) ([]byte, error) {
	entities := ordereddict.NewDict()

	binding.Each(func(e engine.Entity) bool {
		components := ordereddict.NewDict()
		for _, name := range binding.Components(e) {
			components.Set(name, sortedComponent(binding.Component(name, e)))
		}

		entities.Set(strconv.Itoa(int(e)), ordereddict.NewDict().
			Set("archetype", binding.Archetype(e)).
			Set("name", binding.Name(e)).
			Set("components", components))
		return true
	})

	doc := ordereddict.NewDict().
		Set("format", Format).
		Set("producer", version.ProgramVersionShort()).
		Set("entities", entities)

	return json.MarshalIndent(doc, "", "  ")
}

func sortedComponent(c engine.Component) *ordereddict.Dict {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := ordereddict.NewDict()
	for _, k := range keys {
		d.Set(k, c[k])
	}
	return d
}

type rawDump struct {
	Format   string `json:"format"`
	Producer string `json:"producer"`
	Entities map[string]struct {
		Archetype  string                    `json:"archetype"`
		Name       string                    `json:"name"`
		Components map[string]map[string]any `json:"components"`
	} `json:"entities"`
}

// Parse decodes a dump without importing it, for inspection.
func Parse(data []byte) ([]Entry, error) {
	var raw rawDump
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parsing dump")
	}
	if raw.Format != Format {
		return nil, errors.Errorf("unsupported dump format %q", raw.Format)
	}

	entries := make([]Entry, 0, len(raw.Entities))
	for id, re := range raw.Entities {
		n, err := strconv.Atoi(id)
		if err != nil {
			return nil, errors.Wrapf(err, "entity key %q", id)
		}
		components := make(map[string]any, len(re.Components))
		for name, c := range re.Components {
			components[name] = c
		}
		entries = append(entries, Entry{
			Entity:     engine.Entity(n),
			Archetype:  re.Archetype,
			Name:       re.Name,
			Components: components,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Entity < entries[j].Entity })
	return entries, nil
}

// ObjectFactory is the host-side creation capability an import needs.
// The in-memory reference document satisfies it.
type ObjectFactory interface {
	CreateObject(name string, kind host.Kind) host.Handle
}

// fieldProperty maps a dumped component field back to the host property it
// was derived from. Purely derived fields (kinematic inputs, rest matrices,
// scene ownership) have no entry; they are reconstructed by evaluation, not
// written back.
var fieldProperty = map[string]map[string]string{
	"SolverComponent": {
		"gravity":            "gravity",
		"substeps":           "substeps",
		"positionIterations": "positionIterations",
		"velocityIterations": "velocityIterations",
		"sceneScale":         "sceneScale",
	},
	"TimeComponent": {
		"startTime":       "startTime",
		"startTimeCustom": "startTimeCustom",
		"frameskipMethod": "frameskipMethod",
	},
	"SolverUIComponent": {
		"airDensity":     "airDensity",
		"timeMultiplier": "timeMultiplier",
		"cache":          "cache",
	},
	"RigidComponent": {
		"mass":           "mass",
		"density":        "density",
		"friction":       "friction",
		"restitution":    "restitution",
		"thickness":      "thickness",
		"collide":        "collide",
		"ignoreGravity":  "ignoreGravity",
		"ignoreMass":     "ignoreMass",
		"collisionGroup": "collisionGroup",
	},
	"GeometryDescriptionComponent": {
		"type":        "shapeType",
		"extents":     "shapeExtents",
		"radius":      "shapeRadius",
		"length":      "shapeLength",
		"offset":      "shapeOffset",
		"rotation":    "shapeRotation",
		"vertexLimit": "shapeVertexLimit",
		"source":      "inputGeometry",
	},
	"OriginComponent": {
		"matrix": "originMatrix",
	},
	"LimitComponent": {
		"range":        "limitRange",
		"stiffness":    "limitStiffness",
		"dampingRatio": "limitDampingRatio",
	},
	"ParentComponent": {
		"entity": "parentMarker",
	},
	"MarkerUIComponent": {
		"inputType":         "inputType",
		"influence":         "influence",
		"airDensity":        "airDensity",
		"recordTranslation": "recordTranslation",
		"recordRotation":    "recordRotation",
	},
	"DriveComponent": {
		"linearStiffness":     "linearStiffness",
		"linearDampingRatio":  "linearDampingRatio",
		"angularStiffness":    "angularStiffness",
		"angularDampingRatio": "angularDampingRatio",
	},
	"DrawableComponent": {
		"color":       "color",
		"displayType": "displayType",
		"drawScale":   "drawScale",
	},
	"GroupComponent": {
		"selfCollide": "selfCollide",
		"inputType":   "inputType",
	},
	"GroupUIComponent": {
		"linearStiffness":  "linearStiffness",
		"angularStiffness": "angularStiffness",
		"influence":        "influence",
	},
	"EnvironmentComponent": {
		"friction":    "friction",
		"restitution": "restitution",
		"thickness":   "thickness",
		"source":      "inputGeometry",
	},
	"JointComponent": {
		"parent": "parentMarker",
		"child":  "childMarker",
	},
	"DistanceComponent": {
		"method":       "method",
		"minimum":      "minimum",
		"maximum":      "maximum",
		"stiffness":    "stiffness",
		"dampingRatio": "dampingRatio",
	},
}

// Import loads a dump into a fresh host document: one new host object per
// entity, initialized through its archetype (which allocates a new engine
// entity and binds the alias). The dumped values are then pushed back into
// the host fields through the property layer, so every later evaluation
// re-derives the same component state instead of starting from schema
// defaults. Entity references resolve through the freshly created proxies;
// old handles and identifiers from the producing session never survive the
// round trip.
func Import(data []byte, factory ObjectFactory, sc *scene.Scene) ([]*bridge.Proxy, error) {
	entries, err := Parse(data)
	if err != nil {
		return nil, err
	}

	byOld := make(map[engine.Entity]*bridge.Proxy, len(entries))
	proxies := make([]*bridge.Proxy, 0, len(entries))

	// First pass: create the pairs, record the handle translation.
	for _, entry := range entries {
		if _, ok := scene.Registered(entry.Archetype); !ok {
			ui.Warn().Msgf("Skipping unknown archetype %q for %v", entry.Archetype, entry.Name)
			continue
		}

		kind := host.KindEmpty
		if entry.Archetype == "rdMarker" || entry.Archetype == "rdEnvironment" {
			kind = host.KindMesh
		}
		h := factory.CreateObject(entry.Name, kind)

		p, err := sc.Session.Wrap(h)
		if err != nil {
			return nil, errors.Wrapf(err, "wrapping %v", entry.Name)
		}
		if _, err := sc.Initialize(p, entry.Archetype); err != nil {
			return nil, err
		}

		byOld[entry.Entity] = p
		proxies = append(proxies, p)
	}

	// Second pass: write the host fields. Entries are in ascending old
	// handle order, so membership lists come out in creation order.
	members := make(map[*bridge.Proxy][]*bridge.Proxy)
	owners := make([]*bridge.Proxy, 0)
	count := 0
	for _, entry := range entries {
		p, ok := byOld[entry.Entity]
		if !ok {
			continue
		}
		for name, raw := range entry.Components {
			fields, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if name == "SceneComponent" {
				if owner := ownerOf(fields, byOld); owner != nil {
					if _, seen := members[owner]; !seen {
						owners = append(owners, owner)
					}
					members[owner] = append(members[owner], p)
				}
				continue
			}
			props, ok := fieldProperty[name]
			if !ok {
				continue
			}
			for k, v := range fields {
				propName, ok := props[k]
				if !ok {
					continue
				}
				if err := writeBack(p, propName, v, byOld); err != nil {
					sc.Session.Warn("import of "+entry.Name+"."+propName, err)
				}
			}
		}
		count++
	}

	// Membership last, when every member already carries its own state.
	for _, owner := range owners {
		if err := writeBack(owner, "members", members[owner], byOld); err != nil {
			sc.Session.Warn("import of "+owner.Name()+".members", err)
		}
	}

	ui.Info().Msgf("Imported %v entities from dump", count)
	return proxies, nil
}

// ownerOf resolves the proxy a dumped SceneComponent assigns this entity to:
// the group when it joined through one, the solver otherwise.
func ownerOf(fields map[string]any, byOld map[engine.Entity]*bridge.Proxy) *bridge.Proxy {
	if g, ok := asEntity(fields["group"]); ok && g != engine.Null {
		return byOld[g]
	}
	if e, ok := asEntity(fields["entity"]); ok && e != engine.Null {
		return byOld[e]
	}
	return nil
}

// writeBack lands one dumped value on a host property, translating the
// decoded JSON shape into the shape the schema declares. Reference fields
// resolve through the freshly created proxies.
func writeBack(p *bridge.Proxy, name string, v any, byOld map[engine.Entity]*bridge.Proxy) error {
	prop, err := p.Property(name)
	if err != nil {
		return err
	}
	f := prop.Field()
	if f == nil {
		return errors.Errorf("%v has no %q field", p.Type(), name)
	}

	switch f.Type {
	case schema.TypeRef, schema.TypeEntity:
		old, ok := asEntity(v)
		if !ok || old == engine.Null {
			return nil
		}
		target, ok := byOld[old]
		if !ok {
			// The reference left the dump's world, e.g. input geometry
			// that was never an archetype of its own.
			return nil
		}
		return prop.Write(target)
	case schema.TypeRefList, schema.TypeEntityList:
		if list, ok := v.([]*bridge.Proxy); ok {
			return prop.Write(list)
		}
		return nil
	default:
		return prop.Write(hostValue(f, v))
	}
}

// hostValue converts a decoded JSON value into the host-side shape of the
// field: numbers become ints where the schema says so, arrays become the
// fixed-size vector and matrix types.
func hostValue(f *schema.Field, v any) any {
	switch f.Type {
	case schema.TypeInt, schema.TypeEnum:
		if n, ok := v.(float64); ok {
			return int(n)
		}
	case schema.TypeVector3:
		if fs, ok := floatSlice(v, 3); ok {
			return types.Vector3(fs)
		}
	case schema.TypeColor:
		if fs, ok := floatSlice(v, 3); ok {
			return types.Color(fs)
		}
	case schema.TypeMatrix:
		if fs, ok := floatSlice(v, 16); ok {
			return types.Matrix4(fs)
		}
	}
	return v
}

func floatSlice(v any, n int) ([]float64, bool) {
	raw, ok := v.([]any)
	if !ok || len(raw) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, e := range raw {
		f, ok := e.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func asEntity(v any) (engine.Entity, bool) {
	switch t := v.(type) {
	case float64:
		return engine.Entity(t), true
	case engine.Entity:
		return t, true
	}
	return engine.Null, false
}
