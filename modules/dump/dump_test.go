package dump_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigbridge/rigbridge/modules/bridge"
	"github.com/rigbridge/rigbridge/modules/demo"
	"github.com/rigbridge/rigbridge/modules/dump"
	"github.com/rigbridge/rigbridge/modules/engine"
	"github.com/rigbridge/rigbridge/modules/host"
	"github.com/rigbridge/rigbridge/modules/scene"
	"github.com/rigbridge/rigbridge/modules/types"
)

func demoDump(t *testing.T) ([]byte, *engine.Registry, *scene.Scene) {
	t.Helper()
	doc := host.NewMemDocument()
	reg := engine.NewRegistry()
	sc, err := demo.Build(doc, reg)
	require.NoError(t, err)

	data, err := dump.Export(reg)
	require.NoError(t, err)
	return data, reg, sc
}

func TestExportIsDeterministic(t *testing.T) {
	data, reg, _ := demoDump(t)

	again, err := dump.Export(reg)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestParse(t *testing.T) {
	data, _, _ := demoDump(t)

	entries, err := dump.Parse(data)
	require.NoError(t, err)
	require.Len(t, entries, 4, "one solver and three markers")

	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Entity, entries[i].Entity)
	}

	byType := map[string]int{}
	for _, entry := range entries {
		byType[entry.Archetype]++
		assert.NotEmpty(t, entry.Name)
		assert.NotEmpty(t, entry.Components)
	}
	assert.Equal(t, 1, byType["rdSolver"])
	assert.Equal(t, 3, byType["rdMarker"])
}

func TestParseRejectsForeignFormat(t *testing.T) {
	_, err := dump.Parse([]byte(`{"format": "something.else/9", "entities": {}}`))
	assert.Error(t, err)

	_, err = dump.Parse([]byte(`not json at all`))
	assert.Error(t, err)
}

func TestParseEmptyRegistry(t *testing.T) {
	data, err := dump.Export(engine.NewRegistry())
	require.NoError(t, err)

	entries, err := dump.Parse(data)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestImportRemapsEntities loads a dump into a completely fresh document,
// registry and session and verifies the entity references inside the
// components point at the new entities, not the dumped handles.
func TestImportRemapsEntities(t *testing.T) {
	data, _, _ := demoDump(t)

	doc := host.NewMemDocument()
	reg := engine.NewRegistry()
	sc := scene.New(bridge.NewSession(doc), reg)

	proxies, err := dump.Import(data, doc, sc)
	require.NoError(t, err)
	require.Len(t, proxies, 4)

	solvers := sc.Solvers()
	require.Len(t, solvers, 1)
	solverE := sc.EntityOf(solvers[0])

	markers := sc.Typed("rdMarker")
	require.Len(t, markers, 3)

	valid := map[engine.Entity]bool{solverE: true}
	for _, m := range markers {
		valid[sc.EntityOf(m)] = true
	}

	for _, m := range markers {
		e := sc.EntityOf(m)
		require.True(t, reg.Valid(e))

		owner, _ := reg.Component("SceneComponent", e)["entity"].(engine.Entity)
		assert.Equal(t, solverE, owner, "%v rejoined its solver", m.Name())

		parent, _ := reg.Component("ParentComponent", e)["entity"].(engine.Entity)
		if parent != engine.Null {
			assert.True(t, valid[parent], "%v parent remapped into the new handle space", m.Name())
			assert.NotEqual(t, e, parent)
		}
	}

	// The original gravity made it across in engine shape, not JSON shape
	g, ok := reg.Component("SolverComponent", solverE)["gravity"].(types.Vector3)
	require.True(t, ok)
	assert.InDelta(t, -9.81, g[2], 1e-9)
}

// TestImportRestoresState round-trips edited values and verifies the first
// evaluation after the import derives them again instead of falling back to
// schema defaults.
func TestImportRestoresState(t *testing.T) {
	doc := host.NewMemDocument()
	reg := engine.NewRegistry()
	sc, err := demo.Build(doc, reg)
	require.NoError(t, err)

	var hip *bridge.Proxy
	for _, m := range sc.Typed("rdMarker") {
		if m.Name() == "rMarker_hip" {
			hip = m
		}
	}
	require.NotNil(t, hip)

	mass, err := hip.Property("mass")
	require.NoError(t, err)
	require.NoError(t, mass.Write(3.5))

	// Push the edited state into the components before exporting
	doc.SetFrame(sc.StartFrame())

	data, err := dump.Export(reg)
	require.NoError(t, err)

	doc2 := host.NewMemDocument()
	reg2 := engine.NewRegistry()
	sc2 := scene.New(bridge.NewSession(doc2), reg2)

	_, err = dump.Import(data, doc2, sc2)
	require.NoError(t, err)

	var hip2 *bridge.Proxy
	for _, m := range sc2.Typed("rdMarker") {
		if m.Name() == "rMarker_hip" {
			hip2 = m
		}
	}
	require.NotNil(t, hip2)

	// The value landed on the host object itself
	mass2, err := hip2.Property("mass")
	require.NoError(t, err)
	v, err := mass2.Read(false)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	// The first evaluation re-derives the imported state
	doc2.SetFrame(sc2.StartFrame())
	e := sc2.EntityOf(hip2)
	got, _ := reg2.Component("RigidComponent", e)["mass"].(float64)
	assert.Equal(t, 3.5, got)

	solvers := sc2.Solvers()
	require.Len(t, solvers, 1)
	g, ok := reg2.Component("SolverComponent", sc2.EntityOf(solvers[0]))["gravity"].(types.Vector3)
	require.True(t, ok)
	assert.InDelta(t, -9.81, g[2], 1e-9)
}

func TestImportSkipsUnknownArchetypes(t *testing.T) {
	payload := []byte(`{
  "format": "rigbridge.dump/1",
  "producer": "test",
  "entities": {
    "1": {"archetype": "rdWormhole", "name": "odd", "components": {}}
  }
}`)

	doc := host.NewMemDocument()
	reg := engine.NewRegistry()
	sc := scene.New(bridge.NewSession(doc), reg)

	proxies, err := dump.Import(payload, doc, sc)
	require.NoError(t, err)
	assert.Empty(t, proxies)
}
