package renderer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Lighting is a hemisphere fill plus one directional key light.
type Lighting struct {
	SkyColor            mgl32.Vec3
	GroundColor         mgl32.Vec3
	HemisphereIntensity float32

	KeyColor     mgl32.Vec3
	KeyPosition  mgl32.Vec3 // light shines from here toward the origin
	KeyIntensity float32
}

// DefaultLighting returns the viewer's lights.
func DefaultLighting() Lighting {
	return Lighting{
		SkyColor:            mustHex("#ffffff"),
		GroundColor:         mustHex("#222244"),
		HemisphereIntensity: 1.3,
		KeyColor:            mustHex("#ffffff"),
		KeyPosition:         mgl32.Vec3{1, 2, 1},
		KeyIntensity:        1.3,
	}
}

// KeyDirection is the unit vector pointing toward the key light.
func (l Lighting) KeyDirection() mgl32.Vec3 {
	if l.KeyPosition.Len() == 0 {
		return mgl32.Vec3{0, 1, 0}
	}
	return l.KeyPosition.Normalize()
}

// SetUniforms uploads the lights to s.
func (l Lighting) SetUniforms(s *Shader) {
	s.SetVec3("uSkyColor", l.SkyColor)
	s.SetVec3("uGroundColor", l.GroundColor)
	s.SetFloat("uHemiIntensity", l.HemisphereIntensity)
	s.SetVec3("uKeyColor", l.KeyColor)
	s.SetVec3("uKeyDir", l.KeyDirection())
	s.SetFloat("uKeyIntensity", l.KeyIntensity)
}

// HexColor parses #rrggbb or #rgb into a linear 0..1 triple.
func HexColor(s string) (mgl32.Vec3, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return mgl32.Vec3{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return mgl32.Vec3{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return mgl32.Vec3{
		float32(v>>16&0xff) / 255,
		float32(v>>8&0xff) / 255,
		float32(v&0xff) / 255,
	}, nil
}

func mustHex(s string) mgl32.Vec3 {
	c, err := HexColor(s)
	if err != nil {
		panic(err)
	}
	return c
}
