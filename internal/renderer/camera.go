package renderer

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Default framing: upper body, slightly above eye level.
var (
	DefaultEye    = mgl32.Vec3{0, 1.35, 1.5}
	DefaultTarget = mgl32.Vec3{0, 1.3, 0}
)

const (
	DefaultFOV         = 30
	DefaultNear        = 0.1
	DefaultFar         = 20
	DefaultMinDistance = 0.7
	DefaultMaxDistance = 3.0

	minPolar = 0.1
)

// Camera orbits a fixed target. Its position is stored in spherical
// coordinates around the target: polar angle from +Y and azimuth from +Z.
type Camera struct {
	Target mgl32.Vec3
	Up     mgl32.Vec3

	FOV         float32
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32

	MinDistance float32
	MaxDistance float32

	distance float32
	azimuth  float64
	polar    float64
}

// NewOrbitCamera returns the default viewer camera.
func NewOrbitCamera(aspect float32) *Camera {
	c := &Camera{
		Target:      DefaultTarget,
		Up:          mgl32.Vec3{0, 1, 0},
		FOV:         DefaultFOV,
		AspectRatio: aspect,
		NearPlane:   DefaultNear,
		FarPlane:    DefaultFar,
		MinDistance: DefaultMinDistance,
		MaxDistance: DefaultMaxDistance,
	}
	c.SetPosition(DefaultEye)
	return c
}

// SetPosition places the camera, clamping its distance to the zoom range.
func (c *Camera) SetPosition(pos mgl32.Vec3) {
	rel := pos.Sub(c.Target)
	d := rel.Len()
	if d == 0 {
		rel = mgl32.Vec3{0, 0, 1}
		d = 1
	}
	c.azimuth = math.Atan2(float64(rel.X()), float64(rel.Z()))
	c.polar = math.Acos(float64(rel.Y() / d))
	c.distance = c.clampDistance(d)
}

// Position returns the eye position in world space.
func (c *Camera) Position() mgl32.Vec3 {
	sinP := math.Sin(c.polar)
	rel := mgl32.Vec3{
		float32(sinP * math.Sin(c.azimuth)),
		float32(math.Cos(c.polar)),
		float32(sinP * math.Cos(c.azimuth)),
	}.Mul(c.distance)
	return c.Target.Add(rel)
}

// Distance from eye to target.
func (c *Camera) Distance() float32 {
	return c.distance
}

func (c *Camera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Target, c.Up)
}

func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.FOV), c.AspectRatio, c.NearPlane, c.FarPlane)
}

// SetAspectRatio updates the projection for a new viewport.
func (c *Camera) SetAspectRatio(aspect float32) {
	if aspect > 0 {
		c.AspectRatio = aspect
	}
}

// Orbit rotates the camera around the target by degrees. The polar angle
// stays away from the poles.
func (c *Camera) Orbit(deltaAzimuth, deltaPolar float32) {
	c.azimuth += float64(mgl32.DegToRad(deltaAzimuth))
	c.polar += float64(mgl32.DegToRad(deltaPolar))
	c.polar = math.Max(minPolar, math.Min(math.Pi-minPolar, c.polar))
}

// Zoom scales the distance to the target. Values below 1 move closer.
func (c *Camera) Zoom(scale float32) {
	if scale <= 0 {
		return
	}
	c.distance = c.clampDistance(c.distance * scale)
}

func (c *Camera) clampDistance(d float32) float32 {
	if d < c.MinDistance {
		return c.MinDistance
	}
	if c.MaxDistance > 0 && d > c.MaxDistance {
		return c.MaxDistance
	}
	return d
}

// OrbitController turns mouse drag and scroll into camera motion. Panning
// is not supported.
type OrbitController struct {
	camera *Camera

	OrbitSensitivity float32 // degrees per pixel
	ZoomStep         float32 // distance factor per scroll notch

	lastX, lastY float32
	dragging     bool
}

func NewOrbitController(camera *Camera) *OrbitController {
	return &OrbitController{
		camera:           camera,
		OrbitSensitivity: 0.4,
		ZoomStep:         0.95,
	}
}

// ProcessMouse handles a cursor update with the primary button state.
func (oc *OrbitController) ProcessMouse(x, y float32, pressed bool) {
	if pressed && oc.dragging {
		dx := x - oc.lastX
		dy := y - oc.lastY
		oc.camera.Orbit(-dx*oc.OrbitSensitivity, -dy*oc.OrbitSensitivity)
	}
	oc.dragging = pressed
	oc.lastX = x
	oc.lastY = y
}

// ProcessScroll zooms in for positive offsets.
func (oc *OrbitController) ProcessScroll(offset float32) {
	oc.camera.Zoom(float32(math.Pow(float64(oc.ZoomStep), float64(offset))))
}
