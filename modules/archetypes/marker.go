package archetypes

import (
	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/scene"
	"github.com/rigbridge/rigbridge/modules/types"
)

func init() {
	scene.Register(Marker{})
}

// Marker mirrors one host transform into a simulated rigid body.
type Marker struct{}

func (Marker) Type() string { return "rdMarker" }

func (Marker) PostConstructor(sc *scene.Scene, p *bridge.Proxy) (engine.Entity, error) {
	return sc.Engine.Create("rdMarker", p.Name()), nil
}

// OnPropertyChanged re-derives the relationships a raw component write
// cannot express: the parent link and the kinematic input source.
func (Marker) OnPropertyChanged(sc *scene.Scene, e engine.Entity, field string) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}

	switch field {
	case "parentMarker":
		sc.Engine.Component("ParentComponent", e)["entity"] = entityOf(sc, p, "parentMarker")
	case "sourceTransform":
		sc.Engine.Component("KinematicComponent", e)["value"] = sourceMatrix(p)
	case "enabled":
		sc.EvaluateAllMembers()
	}
}

// EvaluateStartState pushes the structural fields: shape, mass, origin,
// collision behavior. These only matter at time zero.
func (Marker) EvaluateStartState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}

	rigid := sc.Engine.Component("RigidComponent", e)
	rigid["mass"] = floatOf(p, "mass")
	rigid["density"] = floatOf(p, "density")
	rigid["friction"] = floatOf(p, "friction")
	rigid["restitution"] = floatOf(p, "restitution")
	rigid["thickness"] = floatOf(p, "thickness")
	rigid["collide"] = boolOf(p, "collide")
	rigid["ignoreGravity"] = boolOf(p, "ignoreGravity")
	rigid["ignoreMass"] = boolOf(p, "ignoreMass")
	rigid["collisionGroup"] = intOf(p, "collisionGroup")

	geo := sc.Engine.Component("GeometryDescriptionComponent", e)
	geo["type"] = enumOf(p, "shapeType")
	geo["extents"] = vectorOf(p, "shapeExtents")
	geo["radius"] = floatOf(p, "shapeRadius")
	geo["length"] = floatOf(p, "shapeLength")
	geo["offset"] = vectorOf(p, "shapeOffset")
	geo["rotation"] = vectorOf(p, "shapeRotation")
	geo["vertexLimit"] = intOf(p, "shapeVertexLimit")
	if g := refOf(p, "inputGeometry"); g != nil {
		geo["source"] = sc.EntityOf(g)
	}

	origin := sc.Engine.Component("OriginComponent", e)
	origin["matrix"] = matrixOf(p, "originMatrix")

	rest := sc.Engine.Component("RestComponent", e)
	rest["matrix"] = sourceMatrix(p)

	limit := sc.Engine.Component("LimitComponent", e)
	limit["range"] = vectorOf(p, "limitRange")
	limit["stiffness"] = floatOf(p, "limitStiffness")
	limit["dampingRatio"] = floatOf(p, "limitDampingRatio")

	sc.Engine.Component("ParentComponent", e)["entity"] = entityOf(sc, p, "parentMarker")

	drawable := sc.Engine.Component("DrawableComponent", e)
	drawable["color"] = colorOf(p, "color")
	drawable["displayType"] = enumOf(p, "displayType")
	drawable["drawScale"] = floatOf(p, "drawScale")
}

// EvaluateCurrentState pushes the per-frame fields: the kinematic input
// transform and the animatable drive values.
func (Marker) EvaluateCurrentState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}

	kin := sc.Engine.Component("KinematicComponent", e)
	kin["value"] = sourceMatrix(p)

	ui := sc.Engine.Component("MarkerUIComponent", e)
	ui["inputType"] = enumOf(p, "inputType")
	ui["influence"] = floatOf(p, "influence")
	ui["airDensity"] = floatOf(p, "airDensity")
	ui["recordTranslation"] = boolOf(p, "recordTranslation")
	ui["recordRotation"] = boolOf(p, "recordRotation")

	drive := sc.Engine.Component("DriveComponent", e)
	drive["linearStiffness"] = floatOf(p, "linearStiffness")
	drive["linearDampingRatio"] = floatOf(p, "linearDampingRatio")
	drive["angularStiffness"] = floatOf(p, "angularStiffness")
	drive["angularDampingRatio"] = floatOf(p, "angularDampingRatio")
}

// sourceMatrix is the marker's input transform: the sourceTransform
// reference when set, the marker object's own transform otherwise.
func sourceMatrix(p *bridge.Proxy) types.Matrix4 {
	src := refOf(p, "sourceTransform")
	if src == nil {
		src = p
	}
	m, err := src.Matrix()
	if err != nil {
		m, _ = p.Matrix()
	}
	return m
}
