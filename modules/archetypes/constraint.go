package archetypes

import (
	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/scene"
)

func init() {
	scene.Register(PinConstraint{})
	scene.Register(DistanceConstraint{})
	scene.Register(FixedConstraint{})
}

// joint re-derives the parent/child entity pair a constraint carries.
func joint(sc *scene.Scene, p *bridge.Proxy, e engine.Entity) {
	j := sc.Engine.Component("JointComponent", e)
	j["parent"] = entityOf(sc, p, "parentMarker")
	j["child"] = entityOf(sc, p, "childMarker")
}

// PinConstraint drags one marker toward a world-space transform.
type PinConstraint struct{}

func (PinConstraint) Type() string { return "rdPinConstraint" }

func (PinConstraint) PostConstructor(sc *scene.Scene, p *bridge.Proxy) (engine.Entity, error) {
	return sc.Engine.Create("rdPinConstraint", p.Name()), nil
}

func (PinConstraint) OnPropertyChanged(sc *scene.Scene, e engine.Entity, field string) {
	if field != "childMarker" {
		return
	}
	if p := sc.Session.Alias(e); p != nil {
		sc.Engine.Component("JointComponent", e)["child"] = entityOf(sc, p, "childMarker")
	}
}

func (PinConstraint) EvaluateStartState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}
	sc.Engine.Component("JointComponent", e)["child"] = entityOf(sc, p, "childMarker")
	if m, err := p.Matrix(); err == nil {
		sc.Engine.Component("PinComponent", e)["target"] = m
	}
}

func (PinConstraint) EvaluateCurrentState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}
	if m, err := p.Matrix(); err == nil {
		sc.Engine.Component("PinComponent", e)["target"] = m
	}
	drive := sc.Engine.Component("DriveComponent", e)
	drive["linearStiffness"] = floatOf(p, "linearStiffness")
	drive["linearDampingRatio"] = floatOf(p, "linearDampingRatio")
	drive["angularStiffness"] = floatOf(p, "angularStiffness")
	drive["angularDampingRatio"] = floatOf(p, "angularDampingRatio")
}

// DistanceConstraint keeps two markers between a minimum and maximum
// distance of one another.
type DistanceConstraint struct{}

func (DistanceConstraint) Type() string { return "rdDistanceConstraint" }

func (DistanceConstraint) PostConstructor(sc *scene.Scene, p *bridge.Proxy) (engine.Entity, error) {
	return sc.Engine.Create("rdDistanceConstraint", p.Name()), nil
}

func (DistanceConstraint) OnPropertyChanged(sc *scene.Scene, e engine.Entity, field string) {
	switch field {
	case "parentMarker", "childMarker":
		if p := sc.Session.Alias(e); p != nil {
			joint(sc, p, e)
		}
	}
}

func (DistanceConstraint) EvaluateStartState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}
	joint(sc, p, e)
	sc.Engine.Component("DistanceComponent", e)["method"] = enumOf(p, "method")
}

func (DistanceConstraint) EvaluateCurrentState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}
	dist := sc.Engine.Component("DistanceComponent", e)
	dist["minimum"] = floatOf(p, "minimum")
	dist["maximum"] = floatOf(p, "maximum")
	dist["stiffness"] = floatOf(p, "stiffness")
	dist["dampingRatio"] = floatOf(p, "dampingRatio")
}

// FixedConstraint welds two markers together.
type FixedConstraint struct{}

func (FixedConstraint) Type() string { return "rdFixedConstraint" }

func (FixedConstraint) PostConstructor(sc *scene.Scene, p *bridge.Proxy) (engine.Entity, error) {
	return sc.Engine.Create("rdFixedConstraint", p.Name()), nil
}

func (FixedConstraint) OnPropertyChanged(sc *scene.Scene, e engine.Entity, field string) {
	switch field {
	case "parentMarker", "childMarker":
		if p := sc.Session.Alias(e); p != nil {
			joint(sc, p, e)
		}
	}
}

func (FixedConstraint) EvaluateStartState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}
	joint(sc, p, e)
}

// Fixed constraints carry no per-frame state.
func (FixedConstraint) EvaluateCurrentState(sc *scene.Scene, e engine.Entity) {}
