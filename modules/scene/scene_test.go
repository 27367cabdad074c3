package scene_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/rigbridge/rigbridge/modules/archetypes"
	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/demo"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/host"
	"github.com/rigbridge/rigbridge/modules/scene"
)

func newScene() (*host.MemDocument, *engine.Registry, *scene.Scene) {
	doc := host.NewMemDocument()
	reg := engine.NewRegistry()
	sc := scene.New(bridge.NewSession(doc), reg)
	return doc, reg, sc
}

// currentHandle scans for the live handle of a name, the way an event
// callback would after the previous handles were invalidated.
func currentHandle(doc *host.MemDocument, name string) host.Handle {
	var result host.Handle
	doc.Objects(func(h host.Handle) bool {
		if h.Name() == name {
			result = h
			return false
		}
		return true
	})
	return result
}

func mustInitialize(t *testing.T, sc *scene.Scene, h host.Handle, typ string) (*bridge.Proxy, engine.Entity) {
	t.Helper()
	p, err := sc.Session.Wrap(h)
	require.NoError(t, err)
	e, err := sc.Initialize(p, typ)
	require.NoError(t, err)
	return p, e
}

// TestObjectLifetimeAgainstEngine walks one object through its entire life:
// creation, an entity binding, a watched edit, soft deletion, undo and
// final destruction, checking the engine and the alias table at every step.
func TestObjectLifetimeAgainstEngine(t *testing.T) {
	doc, reg, sc := newScene()

	created := 0
	sc.Session.OnCreated(func(*bridge.Proxy) { created++ })
	destroyed := 0
	sc.Session.OnDestroyed(func(*bridge.Proxy) { destroyed++ })

	h := doc.CreateObject("node", host.KindEmpty)
	assert.Equal(t, 1, created)

	p, err := sc.Session.Wrap(h)
	require.NoError(t, err)
	assert.Equal(t, 1, created, "wrapping again announces nothing")

	id := p.Identity()

	const entity = engine.Entity(42)
	sc.Bind(p, entity)
	require.Same(t, p, sc.Session.Alias(entity))

	h.EnsureField("visible", true)
	visible, err := p.Property("visible")
	require.NoError(t, err)

	require.NoError(t, visible.Write(false))
	assert.Equal(t, 1, reg.PropertyChangedCount(entity, "visible"),
		"one write, one notification")

	v, err := visible.Read(false)
	require.NoError(t, err)
	assert.Equal(t, false, v)

	doc.Remove(currentHandle(doc, "node"))
	assert.Same(t, p, sc.Session.Alias(entity), "alias survives soft deletion")
	assert.False(t, p.IsAlive())
	assert.True(t, p.IsValid())

	doc.Undo()
	assert.True(t, p.IsAlive(), "undo brings the object back")
	assert.Same(t, p, sc.Session.Alias(entity))
	assert.Equal(t, id, p.Identity())

	doc.Destroy(currentHandle(doc, "node"))
	assert.Equal(t, 1, destroyed)
	assert.False(t, p.IsValid())

	ghost := sc.Session.Alias(entity)
	require.NotNil(t, ghost, "alias still resolves what was destroyed")
	assert.Same(t, p, ghost)
	assert.False(t, ghost.IsValid())
}

func TestInitializeBindsEntity(t *testing.T) {
	doc, reg, sc := newScene()

	h := doc.CreateObject("marker", host.KindMesh)
	p, e := mustInitialize(t, sc, h, "rdMarker")

	assert.NotEqual(t, engine.Null, e)
	assert.Equal(t, "rdMarker", reg.Archetype(e))
	assert.Equal(t, e, sc.EntityOf(p))
	assert.Same(t, p, sc.Session.Alias(e))
	assert.True(t, reg.HasComponent("RigidComponent", e))
	assert.True(t, reg.HasComponent("ParentComponent", e))

	// Initializing twice is a no-op
	again, err := sc.Initialize(p, "rdMarker")
	require.NoError(t, err)
	assert.Equal(t, e, again)
}

func TestInitializeUnknownArchetype(t *testing.T) {
	doc, _, sc := newScene()

	h := doc.CreateObject("thing", host.KindEmpty)
	p, err := sc.Session.Wrap(h)
	require.NoError(t, err)

	_, err = sc.Initialize(p, "rdNothing")
	assert.Error(t, err)
}

func TestDuplicatedObjectJoinsScene(t *testing.T) {
	doc, reg, sc := newScene()

	h := doc.CreateObject("marker", host.KindMesh)
	p, e := mustInitialize(t, sc, h, "rdMarker")

	dupHandle := doc.Duplicate(currentHandle(doc, "marker"))
	dup, err := sc.Session.Wrap(dupHandle)
	require.NoError(t, err)

	assert.NotSame(t, p, dup)
	de := sc.EntityOf(dup)
	assert.NotEqual(t, engine.Null, de)
	assert.NotEqual(t, e, de)
	assert.Equal(t, "rdMarker", reg.Archetype(de))
}

func TestSolverMembership(t *testing.T) {
	doc := host.NewMemDocument()
	reg := engine.NewRegistry()
	sc, err := demo.Build(doc, reg)
	require.NoError(t, err)

	solverE := sc.EntityOf(sc.Solvers()[0])
	require.NotEqual(t, engine.Null, solverE)

	markers := sc.Typed("rdMarker")
	require.Len(t, markers, 3)
	for _, m := range markers {
		owner, _ := reg.Component("SceneComponent", sc.EntityOf(m))["entity"].(engine.Entity)
		assert.Equal(t, solverE, owner, "%v belongs to the solver", m.Name())
	}

	// Disabling a member releases it
	hip := markers[0]
	enabled, err := hip.Property("enabled")
	require.NoError(t, err)
	require.NoError(t, enabled.Write(false))

	owner, _ := reg.Component("SceneComponent", sc.EntityOf(hip))["entity"].(engine.Entity)
	assert.Equal(t, engine.Null, owner)

	require.NoError(t, enabled.Write(true))
	owner, _ = reg.Component("SceneComponent", sc.EntityOf(hip))["entity"].(engine.Entity)
	assert.Equal(t, solverE, owner)
}

func TestGroupMembershipNests(t *testing.T) {
	doc, reg, sc := newScene()

	_, solverE := mustInitialize(t, sc,
		doc.CreateObject("solver", host.KindEmpty), "rdSolver")
	group, groupE := mustInitialize(t, sc,
		doc.CreateObject("group", host.KindEmpty), "rdGroup")
	marker, markerE := mustInitialize(t, sc,
		doc.CreateObject("marker", host.KindMesh), "rdMarker")

	groupMembers, err := group.Property("members")
	require.NoError(t, err)
	require.NoError(t, groupMembers.Write([]*bridge.Proxy{marker}))

	solver, err := sc.Session.Wrap(currentHandle(doc, "solver"))
	require.NoError(t, err)
	solverMembers, err := solver.Property("members")
	require.NoError(t, err)
	require.NoError(t, solverMembers.Write([]*bridge.Proxy{group}))

	in := reg.Component("SceneComponent", markerE)
	owner, _ := in["entity"].(engine.Entity)
	via, _ := in["group"].(engine.Entity)
	assert.Equal(t, solverE, owner, "nested members join through their group")
	assert.Equal(t, groupE, via)

	gin := reg.Component("SceneComponent", groupE)
	gowner, _ := gin["entity"].(engine.Entity)
	assert.Equal(t, solverE, gowner)

	// Removing the marker from the group releases only the marker
	require.NoError(t, groupMembers.Write([]*bridge.Proxy{}))
	owner, _ = reg.Component("SceneComponent", markerE)["entity"].(engine.Entity)
	assert.Equal(t, engine.Null, owner)
	gowner, _ = reg.Component("SceneComponent", groupE)["entity"].(engine.Entity)
	assert.Equal(t, solverE, gowner)
}

func TestFrameLoopSimulates(t *testing.T) {
	doc := host.NewMemDocument()
	reg := engine.NewRegistry()
	sc, err := demo.Build(doc, reg)
	require.NoError(t, err)

	markers := sc.Typed("rdMarker")
	require.Len(t, markers, 3)

	var head *bridge.Proxy
	for _, m := range markers {
		if m.Name() == "rMarker_head" {
			head = m
		}
	}
	require.NotNil(t, head)

	// The head follows its input, the rest fall
	input, err := head.Property("inputType")
	require.NoError(t, err)
	require.NoError(t, input.Write("Kinematic"))

	sc.SetStartFrame(1)
	for frame := 1; frame <= 12; frame++ {
		doc.SetFrame(frame)
	}

	for _, m := range markers {
		mat, err := m.Matrix()
		require.NoError(t, err)
		z := mat.Translation()[2]
		if m == head {
			assert.InDelta(t, 3.0, z, 1e-9, "kinematic member holds its transform")
		} else {
			assert.Less(t, z, 0.99, "%v should have fallen", m.Name())
		}
	}
}

func TestStartFrameRewinds(t *testing.T) {
	doc := host.NewMemDocument()
	reg := engine.NewRegistry()
	sc, err := demo.Build(doc, reg)
	require.NoError(t, err)

	hip := sc.Typed("rdMarker")[0]
	e := sc.EntityOf(hip)
	start, err := hip.Matrix()
	require.NoError(t, err)

	sc.SetStartFrame(1)
	doc.SetFrame(1)

	var zs []float64
	for frame := 2; frame <= 6; frame++ {
		doc.SetFrame(frame)
		zs = append(zs, reg.OutputMatrix(e).Translation()[2])
	}
	require.Less(t, zs[4], start.Translation()[2], "the marker fell")
	lastStep := zs[3] - zs[4]

	// Back at the start frame the accumulated velocity is gone: a single
	// step from rest falls far less than the last step before the rewind.
	doc.SetFrame(1)
	base := reg.OutputMatrix(e).Translation()[2]
	doc.SetFrame(2)
	firstStep := base - reg.OutputMatrix(e).Translation()[2]

	assert.Greater(t, firstStep, 0.0)
	assert.Less(t, firstStep, lastStep, "rewinding reset the velocity")
}

func TestEngineEditDoesNotEcho(t *testing.T) {
	doc, reg, sc := newScene()

	h := doc.CreateObject("marker", host.KindMesh)
	p, e := mustInitialize(t, sc, h, "rdMarker")

	before := reg.PropertyChangedCount(e, "mass")
	require.Equal(t, 1, before, "initialization announced the field once")

	reg.SetAttribute(e, "MarkerUIComponent", "mass", 2.5)

	mass, err := p.Property("mass")
	require.NoError(t, err)
	v, err := mass.Read(false)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v, "the engine edit landed on the host object")

	assert.Equal(t, before, reg.PropertyChangedCount(e, "mass"),
		"engine-originated edits are not echoed back to the engine")
}

func TestDestroyReleasesEntity(t *testing.T) {
	doc, reg, sc := newScene()

	h := doc.CreateObject("marker", host.KindMesh)
	p, e := mustInitialize(t, sc, h, "rdMarker")
	require.True(t, reg.Valid(e))

	doc.Destroy(currentHandle(doc, "marker"))
	assert.False(t, reg.Valid(e))
	assert.False(t, p.IsValid())

	ghost := sc.Session.Alias(e)
	require.NotNil(t, ghost)
	assert.False(t, ghost.IsValid())
}

func TestDestroyedReferenceWakesDependent(t *testing.T) {
	doc, reg, sc := newScene()

	parent, parentE := mustInitialize(t, sc,
		doc.CreateObject("parent", host.KindMesh), "rdMarker")
	child, childE := mustInitialize(t, sc,
		doc.CreateObject("child", host.KindMesh), "rdMarker")

	link, err := child.Property("parentMarker")
	require.NoError(t, err)
	require.NoError(t, link.Write(parent))

	got, _ := reg.Component("ParentComponent", childE)["entity"].(engine.Entity)
	require.Equal(t, parentE, got)

	doc.Destroy(currentHandle(doc, "parent"))
	got, _ = reg.Component("ParentComponent", childE)["entity"].(engine.Entity)
	assert.Equal(t, engine.Null, got, "the dependent re-read its gone reference")
}

func TestEngineSelectionResolvesProxies(t *testing.T) {
	doc, reg, sc := newScene()

	h := doc.CreateObject("marker", host.KindMesh)
	p, e := mustInitialize(t, sc, h, "rdMarker")

	var picked []*bridge.Proxy
	sc.OnEngineSelected(func(sel []*bridge.Proxy) { picked = sel })

	reg.SelectFromEngine([]engine.Entity{e, engine.Entity(999)})
	require.Len(t, picked, 1, "unknown entities are dropped")
	assert.Same(t, p, picked[0])
}

func TestEngineCommandRunsDeferred(t *testing.T) {
	_, reg, sc := newScene()

	var got []string
	sc.OnEngineCommand(func(command string) { got = append(got, command) })

	reg.ExecuteCommand("recordSimulation")
	assert.Empty(t, got, "commands wait for the next safe point")

	sc.Session.Flush()
	assert.Equal(t, []string{"recordSimulation"}, got)
}

func TestRemovedMemberLeavesSimulation(t *testing.T) {
	doc := host.NewMemDocument()
	reg := engine.NewRegistry()
	sc, err := demo.Build(doc, reg)
	require.NoError(t, err)

	solverE := sc.EntityOf(sc.Solvers()[0])
	hip := sc.Typed("rdMarker")[0]
	e := sc.EntityOf(hip)

	doc.Remove(currentHandle(doc, hip.Name()))
	owner, _ := reg.Component("SceneComponent", e)["entity"].(engine.Entity)
	assert.Equal(t, engine.Null, owner)
	assert.True(t, reg.Valid(e), "the entity survives until hard deletion")

	doc.Undo()
	require.True(t, hip.IsAlive())
	owner, _ = reg.Component("SceneComponent", e)["entity"].(engine.Entity)
	assert.Equal(t, solverE, owner, "undo restores membership")
}
