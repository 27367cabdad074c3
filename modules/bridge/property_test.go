package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigbridge/rigbridge/modules/host"
	"github.com/rigbridge/rigbridge/modules/types"
)

func newMarker(t *testing.T) (*host.MemDocument, *Session, *Proxy) {
	t.Helper()
	doc, s := newFixture()
	h := doc.CreateObject("marker", host.KindMesh)
	p, err := s.Wrap(h)
	require.NoError(t, err)
	require.NoError(t, p.SetType("rdMarker"))
	return doc, s, p
}

func TestCachedRead(t *testing.T) {
	doc, s := newFixture()
	h := doc.CreateObject("plain", host.KindEmpty)
	h.EnsureField("value", 7.5)

	p, err := s.Wrap(h)
	require.NoError(t, err)
	prop, err := p.Property("value")
	require.NoError(t, err)

	fetches := doc.Fetches()

	v1, err := prop.Read(false)
	require.NoError(t, err)
	v2, err := prop.Read(false)
	require.NoError(t, err)

	assert.Equal(t, 7.5, v1)
	assert.Equal(t, v1, v2)
	assert.Equal(t, fetches+1, doc.Fetches(), "two clean reads cost one fetch")
}

func TestForcedReadRefetches(t *testing.T) {
	doc, s := newFixture()
	h := doc.CreateObject("plain", host.KindEmpty)
	h.EnsureField("value", 1.0)

	p, _ := s.Wrap(h)
	prop, err := p.Property("value")
	require.NoError(t, err)

	prop.Read(false)
	fetches := doc.Fetches()
	prop.Read(true)
	assert.Equal(t, fetches+1, doc.Fetches())
}

func TestDrivenAlwaysRefetches(t *testing.T) {
	doc, _, p := newMarker(t)

	// linearStiffness is animation-driven per its definition
	prop, err := p.Property("linearStiffness")
	require.NoError(t, err)
	require.True(t, prop.Field().Driven)

	fetches := doc.Fetches()
	prop.Read(false)
	prop.Read(false)
	assert.Equal(t, fetches+2, doc.Fetches(), "driven fields bypass the cache")
}

func TestHostAnimatedRefetches(t *testing.T) {
	doc, s := newFixture()
	h := doc.CreateObject("plain", host.KindEmpty)
	h.EnsureField("value", 1.0)
	h.SetAnimated("value", true)

	p, _ := s.Wrap(h)
	prop, err := p.Property("value")
	require.NoError(t, err)

	fetches := doc.Fetches()
	prop.Read(false)
	prop.Read(false)
	assert.Equal(t, fetches+2, doc.Fetches())
}

func TestWriteThenRead(t *testing.T) {
	doc, s := newFixture()
	h := doc.CreateObject("plain", host.KindEmpty)
	h.EnsureField("visible", true)

	p, _ := s.Wrap(h)
	prop, err := p.Property("visible")
	require.NoError(t, err)

	v, err := prop.Read(false)
	require.NoError(t, err)
	require.Equal(t, true, v)

	require.NoError(t, prop.Write(false))

	v, err = prop.Read(false)
	require.NoError(t, err)
	assert.Equal(t, false, v, "the edit event dirtied the cache")
}

func TestChangeDetection(t *testing.T) {
	doc, s := newFixture()
	h := doc.CreateObject("plain", host.KindEmpty)
	h.EnsureField("mass", 0.0)

	p, _ := s.Wrap(h)
	prop, err := p.Property("mass")
	require.NoError(t, err)

	require.NoError(t, prop.Write(1.0))
	changed, err := prop.Changed()
	require.NoError(t, err)
	assert.True(t, changed, "first observation counts as a change")

	require.NoError(t, prop.Write(1.0))
	changed, err = prop.Changed()
	require.NoError(t, err)
	assert.False(t, changed, "same value, no change")

	require.NoError(t, prop.Write(2.0))
	changed, err = prop.Changed()
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestPropertySingleton(t *testing.T) {
	_, _, p := newMarker(t)

	a, err := p.Property("mass")
	require.NoError(t, err)
	b, err := p.Property("mass")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestPropertySurvivesRestore(t *testing.T) {
	doc, _, p := newMarker(t)

	prop, err := p.Property("mass")
	require.NoError(t, err)
	v, err := prop.Read(false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	doc.Remove(currentHandle(doc, "marker"))
	doc.Undo()
	require.True(t, p.IsAlive())

	// The restore must keep the instance, not mint a second accessor.
	again, err := p.Property("mass")
	require.NoError(t, err)
	assert.Same(t, prop, again)

	// An edit after the restore reaches the held instance too.
	require.NoError(t, currentHandle(doc, "marker").Store("mass", 2.5))
	v, err = prop.Read(false)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)
}

func TestSchemaDefaults(t *testing.T) {
	_, _, p := newMarker(t)

	prop, err := p.Property("density")
	require.NoError(t, err)
	v, err := prop.Read(false)
	require.NoError(t, err)
	assert.Equal(t, prop.Field().Default, v)
}

func TestAxisSuffix(t *testing.T) {
	_, _, p := newMarker(t)

	whole, err := p.Property("shapeExtents")
	require.NoError(t, err)
	require.NoError(t, whole.Write(types.Vector3{1, 1, 1}))

	y, err := p.Property("shapeExtentsY")
	require.NoError(t, err)
	assert.Equal(t, "shapeExtentsY", y.Name())

	require.NoError(t, y.Write(2.5))

	v, err := whole.Read(false)
	require.NoError(t, err)
	assert.Equal(t, types.Vector3{1, 2.5, 1}, v)

	// Component read addresses just the axis
	c, err := y.Read(false)
	require.NoError(t, err)
	assert.Equal(t, 2.5, c)
}

func TestEnumConversion(t *testing.T) {
	_, _, p := newMarker(t)

	prop, err := p.Property("inputType")
	require.NoError(t, err)

	v, err := prop.Read(false)
	require.NoError(t, err)
	assert.Equal(t, "Kinematic", v, "default index reads back as its label")

	require.NoError(t, prop.Write("Pose"))
	v, err = prop.Read(false)
	require.NoError(t, err)
	assert.Equal(t, "Pose", v)

	// Index writes are accepted too
	require.NoError(t, prop.Write(3))
	v, err = prop.Read(false)
	require.NoError(t, err)
	assert.Equal(t, "Off", v)

	assert.Error(t, prop.Write("NoSuchItem"))
	assert.Error(t, prop.Write(17))
}

func TestReferenceRoundTrip(t *testing.T) {
	doc, s, p := newMarker(t)

	other := doc.CreateObject("parent", host.KindMesh)
	parent, err := s.Wrap(other)
	require.NoError(t, err)
	require.NoError(t, parent.SetType("rdMarker"))

	prop, err := p.Property("parentMarker")
	require.NoError(t, err)

	require.NoError(t, prop.Write(parent))
	v, err := prop.Read(false)
	require.NoError(t, err)
	assert.Same(t, parent, v, "a reference reads back as the one proxy")

	back, ok := parent.OutputConnection("parentMarker")
	require.True(t, ok, "the target learns who references it")
	assert.Same(t, p, back)

	// Clearing the reference
	require.NoError(t, prop.Write(nil))
	v, err = prop.Read(false)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestReferenceToDestroyedReadsNil(t *testing.T) {
	doc, s, p := newMarker(t)

	other := doc.CreateObject("parent", host.KindMesh)
	parent, err := s.Wrap(other)
	require.NoError(t, err)
	require.NoError(t, parent.SetType("rdMarker"))

	prop, err := p.Property("parentMarker")
	require.NoError(t, err)
	require.NoError(t, prop.Write(parent))

	doc.Destroy(currentHandle(doc, "parent"))

	// The stale handle must not resolve back to the dead wrapper.
	v, err := prop.Read(true)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestBoneReferenceRoundTrip(t *testing.T) {
	doc, s, p := newMarker(t)

	arm := doc.CreateArmature("rig", "hip")
	boneHandle, ok := doc.BoneHandle(arm, 0)
	require.True(t, ok)
	bone, err := s.Wrap(boneHandle)
	require.NoError(t, err)

	prop, err := p.Property("sourceTransform")
	require.NoError(t, err)
	require.NoError(t, prop.Write(bone))

	v, err := prop.Read(false)
	require.NoError(t, err)
	assert.Same(t, bone, v)
}

func TestUnknownFieldFails(t *testing.T) {
	doc, s := newFixture()
	h := doc.CreateObject("plain", host.KindEmpty)

	p, _ := s.Wrap(h)
	prop, err := p.Property("neverRegistered")
	require.NoError(t, err)

	_, err = prop.Read(false)
	assert.Error(t, err)
	assert.Error(t, prop.Write(1.0))
}

func TestTouchNotifiesWithoutEdit(t *testing.T) {
	doc, s := newFixture()
	h := doc.CreateObject("plain", host.KindEmpty)
	h.EnsureField("value", 1.0)

	p, _ := s.Wrap(h)

	var notified []string
	s.OnPropertyChanged(func(q *Proxy, field string) {
		if q == p {
			notified = append(notified, field)
		}
	})

	prop, err := p.Property("value")
	require.NoError(t, err)
	require.NoError(t, prop.Touch())

	assert.Equal(t, []string{"value"}, notified)

	v, err := prop.Read(false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v, "touch does not change the value")
}

func TestEditNotifiesExactlyOnce(t *testing.T) {
	doc, s := newFixture()
	h := doc.CreateObject("plain", host.KindEmpty)
	h.EnsureField("value", 1.0)

	p, _ := s.Wrap(h)

	count := 0
	s.OnPropertyChanged(func(q *Proxy, field string) {
		if q == p && field == "value" {
			count++
		}
	})

	prop, err := p.Property("value")
	require.NoError(t, err)
	require.NoError(t, prop.Write(3.0))
	assert.Equal(t, 1, count)
}
