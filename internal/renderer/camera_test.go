package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertVec3(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "component %d", i)
	}
}

func TestOrbitCamera_DefaultFraming(t *testing.T) {
	c := NewOrbitCamera(16.0 / 9.0)

	assertVec3(t, DefaultEye, c.Position())
	assertVec3(t, DefaultTarget, c.Target)
	assert.Equal(t, float32(30), c.FOV)
	assert.Equal(t, float32(0.1), c.NearPlane)
	assert.Equal(t, float32(20), c.FarPlane)
	assert.InDelta(t, DefaultEye.Sub(DefaultTarget).Len(), c.Distance(), 1e-5)
}

func TestOrbitCamera_ZoomIsClamped(t *testing.T) {
	c := NewOrbitCamera(1)

	for i := 0; i < 100; i++ {
		c.Zoom(0.5)
	}
	assert.Equal(t, float32(DefaultMinDistance), c.Distance())

	for i := 0; i < 100; i++ {
		c.Zoom(2)
	}
	assert.Equal(t, float32(DefaultMaxDistance), c.Distance())

	c.Zoom(0)
	assert.Equal(t, float32(DefaultMaxDistance), c.Distance())
}

func TestOrbitCamera_OrbitKeepsTargetAndDistance(t *testing.T) {
	c := NewOrbitCamera(1)
	d := c.Distance()

	c.Orbit(90, 0)
	assert.InDelta(t, d, c.Position().Sub(c.Target).Len(), 1e-4)
	assertVec3(t, DefaultTarget, c.Target)
	assert.Greater(t, c.Position().X(), float32(1))

	c.Orbit(0, -1000)
	assert.Greater(t, c.Position().Y(), c.Target.Y())
	assert.InDelta(t, d, c.Position().Sub(c.Target).Len(), 1e-4)
}

func TestOrbitController_DragAndScroll(t *testing.T) {
	c := NewOrbitCamera(1)
	oc := NewOrbitController(c)
	start := c.Position()

	oc.ProcessMouse(100, 100, false)
	oc.ProcessMouse(150, 100, false)
	assertVec3(t, start, c.Position())

	oc.ProcessMouse(150, 100, true)
	oc.ProcessMouse(200, 100, true)
	assert.NotEqual(t, start, c.Position())

	d := c.Distance()
	oc.ProcessScroll(1)
	assert.Less(t, c.Distance(), d)
	oc.ProcessScroll(-2)
	assert.Greater(t, c.Distance(), d)
}

func TestCamera_Matrices(t *testing.T) {
	c := NewOrbitCamera(2)
	c.SetAspectRatio(0)
	assert.Equal(t, float32(2), c.AspectRatio)

	p := c.ProjectionMatrix()
	assert.InDelta(t, p.At(1, 1)/2, p.At(0, 0), 1e-5)

	// The target sits on the view axis.
	v := c.ViewMatrix().Mul4x1(c.Target.Vec4(1))
	assert.InDelta(t, 0, v.X(), 1e-4)
	assert.InDelta(t, 0, v.Y(), 1e-4)
	assert.Less(t, v.Z(), float32(0))
}

func TestDefaultLighting(t *testing.T) {
	l := DefaultLighting()

	assertVec3(t, mgl32.Vec3{1, 1, 1}, l.SkyColor)
	assertVec3(t, mgl32.Vec3{0x22 / 255.0, 0x22 / 255.0, 0x44 / 255.0}, l.GroundColor)
	assert.Equal(t, float32(1.3), l.HemisphereIntensity)
	assert.Equal(t, float32(1.3), l.KeyIntensity)
	assertVec3(t, mgl32.Vec3{1, 2, 1}.Normalize(), l.KeyDirection())
}

func TestHexColor(t *testing.T) {
	c, err := HexColor("#ff8000")
	require.NoError(t, err)
	assertVec3(t, mgl32.Vec3{1, 128 / 255.0, 0}, c)

	c, err = HexColor("0f0")
	require.NoError(t, err)
	assertVec3(t, mgl32.Vec3{0, 1, 0}, c)

	_, err = HexColor("#12345")
	assert.Error(t, err)
	_, err = HexColor("#zzzzzz")
	assert.Error(t, err)
}
