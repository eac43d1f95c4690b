package vrm

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

// Mesh is one node instance of a glTF mesh. Morph weights are shared by all
// of its primitives.
type Mesh struct {
	Name        string
	Node        int
	Source      int
	Transform   mgl32.Mat4
	Primitives  []*Primitive
	TargetNames []string

	// Weights holds the current morph target weights; DefaultWeights the
	// values declared in the file.
	Weights        []float32
	DefaultWeights []float32
}

// Primitive holds the CPU copy of a triangle list.
type Primitive struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	TexCoords []mgl32.Vec2
	Indices   []uint32
	Targets   [][]mgl32.Vec3

	BaseColor mgl32.Vec4
	// Texture is the encoded base color image, if any.
	Texture []byte
}

// Deform writes the morphed positions into dst and returns it. dst is
// reallocated when it is too small.
func (p *Primitive) Deform(weights []float32, dst []mgl32.Vec3) []mgl32.Vec3 {
	if cap(dst) < len(p.Positions) {
		dst = make([]mgl32.Vec3, len(p.Positions))
	}
	dst = dst[:len(p.Positions)]
	copy(dst, p.Positions)

	for t, deltas := range p.Targets {
		if t >= len(weights) {
			break
		}
		w := weights[t]
		if w < 0.001 {
			continue
		}
		for i, d := range deltas {
			if i < len(dst) {
				dst[i] = dst[i].Add(d.Mul(w))
			}
		}
	}
	return dst
}

// TargetIndex returns the morph target index for a name, or -1.
func (m *Mesh) TargetIndex(name string) int {
	for i, n := range m.TargetNames {
		if n == name {
			return i
		}
	}
	return -1
}

func (m *Mesh) resetWeights() {
	for i := range m.Weights {
		m.Weights[i] = 0
	}
}

func loadMesh(doc *gltf.Document, meshIndex int) (*Mesh, error) {
	src := doc.Meshes[meshIndex]
	mesh := &Mesh{
		Name:   src.Name,
		Source: meshIndex,
	}

	targets := 0
	for pi, prim := range src.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		p, err := loadPrimitive(doc, prim)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", meshIndex, pi, err)
		}
		if len(p.Targets) > targets {
			targets = len(p.Targets)
		}
		mesh.Primitives = append(mesh.Primitives, p)
	}

	mesh.DefaultWeights = make([]float32, targets)
	for i, w := range src.Weights {
		if i < targets {
			mesh.DefaultWeights[i] = float32(w)
		}
	}
	mesh.Weights = make([]float32, targets)
	copy(mesh.Weights, mesh.DefaultWeights)
	mesh.TargetNames = targetNames(src.Extras, targets)

	return mesh, nil
}

func loadPrimitive(doc *gltf.Document, prim *gltf.Primitive) (*Primitive, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("missing POSITION attribute")
	}
	positions, err := readVec3(doc, posIdx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	p := &Primitive{
		Positions: positions,
		BaseColor: mgl32.Vec4{1, 1, 1, 1},
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		p.Normals, err = readVec3(doc, idx)
		if err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
	}
	if len(p.Normals) != len(positions) {
		p.Normals = make([]mgl32.Vec3, len(positions))
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		p.TexCoords, err = readVec2(doc, idx)
		if err != nil {
			return nil, fmt.Errorf("read texcoords: %w", err)
		}
	}
	if len(p.TexCoords) != len(positions) {
		p.TexCoords = make([]mgl32.Vec2, len(positions))
	}

	if prim.Indices != nil {
		p.Indices, err = readIndices(doc, *prim.Indices)
		if err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	} else {
		p.Indices = make([]uint32, len(positions))
		for i := range p.Indices {
			p.Indices[i] = uint32(i)
		}
	}

	for ti, target := range prim.Targets {
		var deltas []mgl32.Vec3
		if idx, ok := target[gltf.POSITION]; ok {
			deltas, err = readVec3(doc, idx)
			if err != nil {
				return nil, fmt.Errorf("read morph target %d: %w", ti, err)
			}
		}
		p.Targets = append(p.Targets, deltas)
	}

	if prim.Material != nil && *prim.Material < len(doc.Materials) {
		loadMaterial(doc, doc.Materials[*prim.Material], p)
	}

	return p, nil
}

func loadMaterial(doc *gltf.Document, mat *gltf.Material, p *Primitive) {
	pbr := mat.PBRMetallicRoughness
	if pbr == nil {
		return
	}
	if pbr.BaseColorFactor != nil {
		f := pbr.BaseColorFactor
		p.BaseColor = mgl32.Vec4{float32(f[0]), float32(f[1]), float32(f[2]), float32(f[3])}
	}

	info := pbr.BaseColorTexture
	if info == nil || info.Index >= len(doc.Textures) {
		return
	}
	tex := doc.Textures[info.Index]
	if tex.Source == nil || *tex.Source >= len(doc.Images) {
		return
	}
	img := doc.Images[*tex.Source]
	if img.BufferView == nil {
		return
	}
	if data, err := bufferViewBytes(doc, *img.BufferView); err == nil {
		p.Texture = data
	}
}

// targetNames reads the conventional mesh.extras.targetNames array.
func targetNames(extras any, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("target_%d", i)
	}

	m, ok := extras.(map[string]any)
	if !ok {
		return names
	}
	list, ok := m["targetNames"].([]any)
	if !ok {
		return names
	}
	for i, v := range list {
		if s, ok := v.(string); ok && i < n {
			names[i] = s
		}
	}
	return names
}
