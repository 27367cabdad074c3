package archetypes

import (
	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/scene"
)

func init() {
	scene.Register(Solver{})
}

// Solver owns the simulation: every other entity participates by being a
// member (directly or through one level of group).
type Solver struct{}

func (Solver) Type() string { return "rdSolver" }

func (Solver) PostConstructor(sc *scene.Scene, p *bridge.Proxy) (engine.Entity, error) {
	return sc.Engine.Create("rdSolver", p.Name()), nil
}

func (s Solver) OnPropertyChanged(sc *scene.Scene, e engine.Entity, field string) {
	switch field {
	case "members", "enabled":
		s.EvaluateMembers(sc, e)
	case "gravity":
		if p := sc.Session.Alias(e); p != nil {
			sc.Engine.Component("SolverComponent", e)["gravity"] = vectorOf(p, "gravity")
		}
	}
}

func (Solver) EvaluateStartState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}

	solver := sc.Engine.Component("SolverComponent", e)
	solver["gravity"] = vectorOf(p, "gravity")
	solver["substeps"] = intOf(p, "substeps")
	solver["positionIterations"] = intOf(p, "positionIterations")
	solver["velocityIterations"] = intOf(p, "velocityIterations")
	solver["sceneScale"] = floatOf(p, "sceneScale")

	tc := sc.Engine.Component("TimeComponent", e)
	tc["startTime"] = enumOf(p, "startTime")
	tc["startTimeCustom"] = intOf(p, "startTimeCustom")
	tc["frameskipMethod"] = enumOf(p, "frameskipMethod")
}

func (Solver) EvaluateCurrentState(sc *scene.Scene, e engine.Entity) {
	p := sc.Session.Alias(e)
	if p == nil {
		return
	}

	ui := sc.Engine.Component("SolverUIComponent", e)
	ui["airDensity"] = floatOf(p, "airDensity")
	ui["timeMultiplier"] = floatOf(p, "timeMultiplier")
	ui["cache"] = enumOf(p, "cache")
}

// EvaluateMembers re-collects the membership set: every live, enabled member
// of the solver's list joins the simulation, members of a member group join
// through it (one level of nesting, matching the engine's own model).
// Everything previously owned but no longer listed is released first.
func (s Solver) EvaluateMembers(sc *scene.Scene, e engine.Entity) {
	s.ClearMembers(sc, e)

	p := sc.Session.Alias(e)
	if p == nil || !p.IsAlive() || !boolOf(p, "enabled") {
		return
	}

	for _, member := range listOf(p, "members") {
		if !member.IsAlive() || !boolOf(member, "enabled") {
			continue
		}
		me := sc.EntityOf(member)
		if me == engine.Null {
			continue
		}

		if member.Type() == "rdGroup" {
			sc.Engine.Component("SceneComponent", me)["entity"] = e
			for _, nested := range listOf(member, "members") {
				if !nested.IsAlive() || !boolOf(nested, "enabled") {
					continue
				}
				ne := sc.EntityOf(nested)
				if ne == engine.Null {
					continue
				}
				in := sc.Engine.Component("SceneComponent", ne)
				in["entity"] = e
				in["group"] = me
			}
			continue
		}

		sc.Engine.Component("SceneComponent", me)["entity"] = e
	}
}

// ClearMembers releases every entity currently owned by this solver.
func (Solver) ClearMembers(sc *scene.Scene, e engine.Entity) {
	sc.Engine.Each(func(member engine.Entity) bool {
		if member == e {
			return true
		}
		if !sc.Engine.HasComponent("SceneComponent", member) {
			return true
		}
		in := sc.Engine.Component("SceneComponent", member)
		if owner, _ := in["entity"].(engine.Entity); owner == e {
			in["entity"] = engine.Null
			delete(in, "group")
		}
		return true
	})
}
