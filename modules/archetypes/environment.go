package archetypes

import (
	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/scene"
)

func init() {
	scene.Register(Environment{})
}

// Environment is static collision geometry: it participates in the
// simulation but is never simulated itself.
type Environment struct{}

func (Environment) Type() string { return "rdEnvironment" }

func (Environment) PostConstructor(sc *scene.Scene, p *bridge.Proxy) (engine.Entity, error) {
	return sc.Engine.Create("rdEnvironment", p.Name()), nil
}

func (Environment) OnPropertyChanged(sc *scene.Scene, e engine.Entity, field string) {
	if field != "inputGeometry" {
		return
	}
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}
	sc.Engine.Component("EnvironmentComponent", e)["source"] = entityOf(sc, p, "inputGeometry")
}

func (Environment) EvaluateStartState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}

	env := sc.Engine.Component("EnvironmentComponent", e)
	env["friction"] = floatOf(p, "friction")
	env["restitution"] = floatOf(p, "restitution")
	env["thickness"] = floatOf(p, "thickness")
	env["source"] = entityOf(sc, p, "inputGeometry")

	drawable := sc.Engine.Component("DrawableComponent", e)
	drawable["color"] = colorOf(p, "color")
	drawable["displayType"] = enumOf(p, "displayType")
}

// Environments have no per-frame state; the geometry never moves.
func (Environment) EvaluateCurrentState(sc *scene.Scene, e engine.Entity) {}
