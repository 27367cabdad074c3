package archetypes

import (
	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/scene"
)

func init() {
	scene.Register(Group{})
}

// Group bundles markers so they can share drive settings and collision
// behavior. Membership flows through the owning solver.
type Group struct{}

func (Group) Type() string { return "rdGroup" }

func (Group) PostConstructor(sc *scene.Scene, p *bridge.Proxy) (engine.Entity, error) {
	return sc.Engine.Create("rdGroup", p.Name()), nil
}

func (Group) OnPropertyChanged(sc *scene.Scene, e engine.Entity, field string) {
	switch field {
	case "members", "enabled":
		sc.EvaluateAllMembers()
	}
}

func (Group) EvaluateStartState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}

	group := sc.Engine.Component("GroupComponent", e)
	group["selfCollide"] = boolOf(p, "selfCollide")
	group["inputType"] = enumOf(p, "inputType")
}

func (Group) EvaluateCurrentState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}

	ui := sc.Engine.Component("GroupUIComponent", e)
	ui["linearStiffness"] = floatOf(p, "linearStiffness")
	ui["angularStiffness"] = floatOf(p, "angularStiffness")
	ui["influence"] = floatOf(p, "influence")
}
