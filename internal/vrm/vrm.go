// Package vrm loads VRM 0.x and 1.0 avatars from glTF binaries and maps their
// expression tables onto morph target weights.
package vrm

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"

	"github.com/normanking/lumiavatar/internal/avatar3d"
)

// ErrNoMeshes is returned for documents without any renderable mesh.
var ErrNoMeshes = errors.New("no meshes in file")

// Model is a loaded avatar.
type Model struct {
	Name string
	// Version is 0 for VRM 0.x, 1 for VRM 1.0 and -1 for plain glTF.
	Version int
	Meshes  []*Mesh
	// Root orients the whole model. VRM 0.x models face +Z and are turned
	// around to face the camera.
	Root mgl32.Mat4

	expressions *ExpressionManager
	elapsed     float64
	steps       int
}

// Load reads a .vrm or .glb file.
func Load(path string) (*Model, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return FromDocument(doc)
}

// Decode reads a model from r. External buffer URIs are not resolved.
func Decode(r io.Reader) (*Model, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode gltf: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument builds a model from an already decoded document.
func FromDocument(doc *gltf.Document) (*Model, error) {
	m := &Model{Version: -1, Root: mgl32.Ident4()}

	byNode := make(map[int]*Mesh)
	bySource := make(map[int][]*Mesh)

	var visit func(node int, parent mgl32.Mat4, depth int) error
	visit = func(node int, parent mgl32.Mat4, depth int) error {
		if node < 0 || node >= len(doc.Nodes) || depth > len(doc.Nodes) {
			return fmt.Errorf("invalid node hierarchy at node %d", node)
		}
		n := doc.Nodes[node]
		world := parent.Mul4(localTransform(n))

		if n.Mesh != nil && *n.Mesh < len(doc.Meshes) {
			mesh, err := loadMesh(doc, *n.Mesh)
			if err != nil {
				return err
			}
			mesh.Node = node
			mesh.Transform = world
			if mesh.Name == "" {
				mesh.Name = n.Name
			}
			m.Meshes = append(m.Meshes, mesh)
			byNode[node] = mesh
			bySource[*n.Mesh] = append(bySource[*n.Mesh], mesh)
		}

		for _, child := range n.Children {
			if err := visit(child, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range rootNodes(doc) {
		if err := visit(root, mgl32.Ident4(), 0); err != nil {
			return nil, err
		}
	}
	if len(m.Meshes) == 0 {
		return nil, ErrNoMeshes
	}

	var ext1 vrm1Extension
	if ok, err := extension(doc, extVRM1, &ext1); err != nil {
		return nil, err
	} else if ok {
		m.Version = 1
		m.Name = ext1.Meta.Name
		if table := parseVRM1(&ext1, byNode); len(table.expressions) > 0 {
			m.expressions = table
		}
		return m, nil
	}

	var ext0 vrm0Extension
	if ok, err := extension(doc, extVRM0, &ext0); err != nil {
		return nil, err
	} else if ok {
		m.Version = 0
		m.Name = ext0.Meta.Title
		m.Root = mgl32.HomogRotate3DY(math.Pi)
		if table := parseVRM0(&ext0, bySource); len(table.expressions) > 0 {
			m.expressions = table
		}
	}

	return m, nil
}

// Expressions returns the expression manager, or nil when the model has no
// expression table. The interface value is nil in that case as well.
func (m *Model) Expressions() avatar3d.ExpressionManager {
	if m == nil || m.expressions == nil {
		return nil
	}
	return m.expressions
}

// ExpressionTable returns the concrete manager, or nil.
func (m *Model) ExpressionTable() *ExpressionManager {
	if m == nil {
		return nil
	}
	return m.expressions
}

// Update advances the pose clock by dt and projects the current expression
// weights onto the morph targets.
func (m *Model) Update(dt float32) {
	m.elapsed += float64(dt)
	m.steps++
	if m.expressions != nil {
		m.expressions.apply(m.Meshes)
	}
}

// Elapsed is the sum of all Update steps in seconds.
func (m *Model) Elapsed() float64 { return m.elapsed }

// Steps counts Update calls.
func (m *Model) Steps() int { return m.steps }

func rootNodes(doc *gltf.Document) []int {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		return doc.Scenes[*doc.Scene].Nodes
	}
	if len(doc.Scenes) > 0 {
		return doc.Scenes[0].Nodes
	}

	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

var identity = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

func localTransform(n *gltf.Node) mgl32.Mat4 {
	mat := n.MatrixOrDefault()
	if mat != identity {
		var out mgl32.Mat4
		for i, v := range mat {
			out[i] = float32(v)
		}
		return out
	}

	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()

	q := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	return mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2])).
		Mul4(q.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
}
