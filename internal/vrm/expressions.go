package vrm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/qmuntal/gltf"

	"github.com/normanking/lumiavatar/internal/avatar3d"
)

const (
	extVRM1 = "VRMC_vrm"
	extVRM0 = "VRM"
)

// vrm0Presets maps VRM 0.x blend shape preset names onto the 1.0 names.
var vrm0Presets = map[string]avatar3d.ExpressionName{
	"a":       avatar3d.ExpressionAa,
	"i":       avatar3d.ExpressionIh,
	"u":       avatar3d.ExpressionOu,
	"e":       avatar3d.ExpressionEe,
	"o":       avatar3d.ExpressionOh,
	"joy":     avatar3d.ExpressionHappy,
	"angry":   avatar3d.ExpressionAngry,
	"sorrow":  avatar3d.ExpressionSad,
	"fun":     avatar3d.ExpressionRelaxed,
	"blink":   avatar3d.ExpressionBlink,
	"neutral": avatar3d.ExpressionNeutral,
}

// MorphBind drives one morph target of every instance of a mesh.
type MorphBind struct {
	Meshes []*Mesh
	Index  int
	Weight float32
}

// Expression is a named set of morph binds.
type Expression struct {
	Name     avatar3d.ExpressionName
	IsBinary bool
	Binds    []MorphBind
}

// ExpressionManager stores expression weights and projects them onto mesh
// morph weights when applied. It satisfies avatar3d.ExpressionManager.
type ExpressionManager struct {
	*avatar3d.Weights
	expressions map[avatar3d.ExpressionName]*Expression
}

func newExpressionManager() *ExpressionManager {
	return &ExpressionManager{
		Weights:     avatar3d.NewWeights(),
		expressions: make(map[avatar3d.ExpressionName]*Expression),
	}
}

// Has reports whether the model defines the named expression.
func (m *ExpressionManager) Has(name avatar3d.ExpressionName) bool {
	_, ok := m.expressions[name]
	return ok
}

// Names returns the defined expression names in sorted order.
func (m *ExpressionManager) Names() []avatar3d.ExpressionName {
	names := make([]avatar3d.ExpressionName, 0, len(m.expressions))
	for name := range m.expressions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Expression returns the definition of name, or nil.
func (m *ExpressionManager) Expression(name avatar3d.ExpressionName) *Expression {
	return m.expressions[name]
}

// apply recomputes the morph weights of meshes from the current expression
// weights. Weights of targets no expression touches are left at zero.
func (m *ExpressionManager) apply(meshes []*Mesh) {
	for _, mesh := range meshes {
		mesh.resetWeights()
	}

	weights := m.Snapshot()
	for name, expr := range m.expressions {
		w := weights[name]
		if w == 0 {
			continue
		}
		if expr.IsBinary {
			if w > 0.5 {
				w = 1
			} else {
				w = 0
			}
		}
		for _, bind := range expr.Binds {
			for _, mesh := range bind.Meshes {
				if bind.Index < 0 || bind.Index >= len(mesh.Weights) {
					continue
				}
				v := mesh.Weights[bind.Index] + bind.Weight*w
				if v > 1 {
					v = 1
				}
				mesh.Weights[bind.Index] = v
			}
		}
	}
}

type vrm1Extension struct {
	SpecVersion string `json:"specVersion"`
	Meta        struct {
		Name string `json:"name"`
	} `json:"meta"`
	Expressions struct {
		Preset map[string]vrm1Expression `json:"preset"`
		Custom map[string]vrm1Expression `json:"custom"`
	} `json:"expressions"`
}

type vrm1Expression struct {
	IsBinary         bool `json:"isBinary"`
	MorphTargetBinds []struct {
		Node   int     `json:"node"`
		Index  int     `json:"index"`
		Weight float64 `json:"weight"`
	} `json:"morphTargetBinds"`
}

type vrm0Extension struct {
	SpecVersion string `json:"specVersion"`
	Meta        struct {
		Title string `json:"title"`
	} `json:"meta"`
	BlendShapeMaster struct {
		BlendShapeGroups []struct {
			Name       string `json:"name"`
			PresetName string `json:"presetName"`
			IsBinary   bool   `json:"isBinary"`
			Binds      []struct {
				Mesh   int     `json:"mesh"`
				Index  int     `json:"index"`
				Weight float64 `json:"weight"`
			} `json:"binds"`
		} `json:"blendShapeGroups"`
	} `json:"blendShapeMaster"`
}

// extension decodes a document level extension into v. It reports false when
// the extension is absent.
func extension(doc *gltf.Document, name string, v any) (bool, error) {
	raw, ok := doc.Extensions[name]
	if !ok {
		return false, nil
	}

	var data []byte
	switch t := raw.(type) {
	case json.RawMessage:
		data = t
	case []byte:
		data = t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return true, fmt.Errorf("encode %s extension: %w", name, err)
		}
		data = b
	}

	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decode %s extension: %w", name, err)
	}
	return true, nil
}

func parseVRM1(ext *vrm1Extension, byNode map[int]*Mesh) *ExpressionManager {
	m := newExpressionManager()
	add := func(name avatar3d.ExpressionName, src vrm1Expression) {
		expr := &Expression{Name: name, IsBinary: src.IsBinary}
		for _, b := range src.MorphTargetBinds {
			mesh, ok := byNode[b.Node]
			if !ok {
				continue
			}
			expr.Binds = append(expr.Binds, MorphBind{
				Meshes: []*Mesh{mesh},
				Index:  b.Index,
				Weight: float32(b.Weight),
			})
		}
		m.expressions[name] = expr
	}

	for name, src := range ext.Expressions.Preset {
		add(avatar3d.ExpressionName(name), src)
	}
	for name, src := range ext.Expressions.Custom {
		if _, taken := m.expressions[avatar3d.ExpressionName(name)]; !taken {
			add(avatar3d.ExpressionName(name), src)
		}
	}
	return m
}

func parseVRM0(ext *vrm0Extension, bySource map[int][]*Mesh) *ExpressionManager {
	m := newExpressionManager()
	for _, group := range ext.BlendShapeMaster.BlendShapeGroups {
		name, ok := vrm0Presets[strings.ToLower(group.PresetName)]
		if !ok {
			if group.Name == "" {
				continue
			}
			name = avatar3d.ExpressionName(strings.ToLower(group.Name))
		}
		if _, taken := m.expressions[name]; taken {
			continue
		}

		expr := &Expression{Name: name, IsBinary: group.IsBinary}
		for _, b := range group.Binds {
			meshes := bySource[b.Mesh]
			if len(meshes) == 0 {
				continue
			}
			expr.Binds = append(expr.Binds, MorphBind{
				Meshes: meshes,
				Index:  b.Index,
				Weight: float32(b.Weight / 100),
			})
		}
		m.expressions[name] = expr
	}
	return m
}
