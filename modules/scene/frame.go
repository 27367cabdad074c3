package scene

import (
	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/types"
)

// SetStartFrame sets the frame the simulation considers time zero.
// Landing on it rewinds every solver.
func (sc *Scene) SetStartFrame(frame int) {
	sc.startFrame = frame
	sc.started = false
}

func (sc *Scene) StartFrame() int {
	return sc.startFrame
}

// onFrameChanged drives the evaluation passes. At the start frame the
// structural state is (re)pushed and solver outputs rewound; any later frame
// pushes runtime state, steps the solvers and reads the results back into
// host transforms. Frames before the start frame do nothing.
func (sc *Scene) onFrameChanged(frame int) {
	if frame < sc.startFrame {
		return
	}

	if frame == sc.startFrame || !sc.started {
		sc.evaluateStart()
		sc.started = true
		if frame == sc.startFrame {
			return
		}
	}

	sc.evaluateCurrent()

	for _, solver := range sc.Solvers() {
		e := sc.EntityOf(solver)
		if e == engine.Null {
			continue
		}
		sc.Engine.Evaluate(e)
	}

	sc.readback()
}

// outputResetter is the optional rewind capability of a binding.
type outputResetter interface {
	ResetOutput(engine.Entity, types.Matrix4)
}

// evaluateStart pushes time-zero state: membership first, then each
// entity's structural fields, then a rewind of simulated outputs to the
// host's current transforms.
func (sc *Scene) evaluateStart() {
	sc.EvaluateAllMembers()

	resetter, canReset := sc.Engine.(outputResetter)

	sc.Session.Aliases(func(e engine.Entity, p *bridge.Proxy) bool {
		if !p.IsAlive() {
			return true
		}
		a, ok := archetypes[p.Type()]
		if !ok {
			return true
		}
		a.EvaluateStartState(sc, e)

		if canReset && sc.Engine.Archetype(e) == "rdMarker" {
			if m, err := p.Matrix(); err == nil {
				resetter.ResetOutput(e, m)
			}
		}
		return true
	})
}

func (sc *Scene) evaluateCurrent() {
	sc.Session.Aliases(func(e engine.Entity, p *bridge.Proxy) bool {
		if !p.IsAlive() {
			return true
		}
		a, ok := archetypes[p.Type()]
		if !ok {
			return true
		}
		a.EvaluateCurrentState(sc, e)
		return true
	})
}

// readback pulls simulated transforms into the host for entities that have
// a visual representation.
func (sc *Scene) readback() {
	sc.Session.Aliases(func(e engine.Entity, p *bridge.Proxy) bool {
		if !p.IsAlive() {
			return true
		}
		if sc.Engine.Archetype(e) != "rdMarker" {
			return true
		}
		if err := p.SetMatrix(sc.Engine.OutputMatrix(e)); err != nil {
			if !bridge.IsExist(err) {
				sc.Session.Warn("readback of "+p.Name(), err)
			}
		}
		return true
	})
}
