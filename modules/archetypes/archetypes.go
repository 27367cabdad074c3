// Package archetypes registers the entity roles this integration mirrors
// into the engine: solver, marker, group, environment and the constraint
// family. Importing the package installs them all.
package archetypes

import (
	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/scene"
	"github.com/rigbridge/rigbridge/modules/types"
)

// read returns a property value, zero on any failure. Evaluation passes use
// it because a single unreadable field must not abort the pass.
func read(p *bridge.Proxy, field string) any {
	prop, err := p.Property(field)
	if err != nil {
		return nil
	}
	v, err := prop.Read(false)
	if err != nil {
		return nil
	}
	return v
}

func boolOf(p *bridge.Proxy, field string) bool {
	b, _ := read(p, field).(bool)
	return b
}

func intOf(p *bridge.Proxy, field string) int {
	switch v := read(p, field).(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func floatOf(p *bridge.Proxy, field string) float64 {
	switch v := read(p, field).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func vectorOf(p *bridge.Proxy, field string) types.Vector3 {
	v, _ := read(p, field).(types.Vector3)
	return v
}

func colorOf(p *bridge.Proxy, field string) types.Color {
	v, _ := read(p, field).(types.Color)
	return v
}

func matrixOf(p *bridge.Proxy, field string) types.Matrix4 {
	if v, ok := read(p, field).(types.Matrix4); ok {
		return v
	}
	return types.IdentityMatrix()
}

// enumOf returns the enum value as its index, which is what the engine's
// component store expects.
func enumOf(p *bridge.Proxy, field string) int {
	prop, err := p.Property(field)
	if err != nil {
		return 0
	}
	v, err := prop.Read(false)
	if err != nil {
		return 0
	}
	label, ok := v.(string)
	if !ok {
		return intOf(p, field)
	}
	f := prop.Field()
	if f == nil {
		return 0
	}
	if i := f.IndexOf(label); i >= 0 {
		return i
	}
	return 0
}

func refOf(p *bridge.Proxy, field string) *bridge.Proxy {
	v, _ := read(p, field).(*bridge.Proxy)
	return v
}

func listOf(p *bridge.Proxy, field string) []*bridge.Proxy {
	v, _ := read(p, field).([]*bridge.Proxy)
	return v
}

// entityOf resolves a reference field straight to the referenced proxy's
// engine entity, Null when unset or not yet mirrored.
func entityOf(sc *scene.Scene, p *bridge.Proxy, field string) engine.Entity {
	target := refOf(p, field)
	if target == nil {
		return engine.Null
	}
	return sc.EntityOf(target)
}
