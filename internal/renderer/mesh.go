package renderer

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/normanking/lumiavatar/internal/vrm"
)

// gpuPrimitive mirrors one vrm.Primitive. Positions live in their own
// dynamic buffer so morphing only re-uploads them.
type gpuPrimitive struct {
	src *vrm.Primitive

	vao       uint32
	posVBO    uint32
	attrVBO   uint32
	ebo       uint32
	indices   int32
	texture   uint32
	ownsTex   bool
	baseColor mgl32.Vec4

	scratch []mgl32.Vec3
}

// gpuMesh draws a vrm.Mesh with its current morph weights.
type gpuMesh struct {
	src        *vrm.Mesh
	primitives []*gpuPrimitive
	applied    []float32
}

func uploadMesh(m *vrm.Mesh, white uint32) (*gpuMesh, error) {
	gm := &gpuMesh{src: m}
	for i, p := range m.Primitives {
		gp, err := uploadPrimitive(p, white)
		if err != nil {
			gm.delete()
			return nil, fmt.Errorf("mesh %q primitive %d: %w", m.Name, i, err)
		}
		gm.primitives = append(gm.primitives, gp)
	}
	return gm, nil
}

func uploadPrimitive(p *vrm.Primitive, white uint32) (*gpuPrimitive, error) {
	gp := &gpuPrimitive{
		src:       p,
		indices:   int32(len(p.Indices)),
		texture:   white,
		baseColor: p.BaseColor,
	}

	if len(p.Texture) > 0 {
		tex, err := createTextureFromBytes(p.Texture)
		if err == nil {
			gp.texture = tex
			gp.ownsTex = true
		}
	}

	gl.GenVertexArrays(1, &gp.vao)
	gl.BindVertexArray(gp.vao)

	gl.GenBuffers(1, &gp.posVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, gp.posVBO)
	pos := flattenVec3(p.Positions, nil)
	gl.BufferData(gl.ARRAY_BUFFER, len(pos)*4, glPtr(pos), gl.DYNAMIC_DRAW)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 3*4, 0)
	gl.EnableVertexAttribArray(0)

	attrs := make([]float32, 0, len(p.Positions)*5)
	for i := range p.Positions {
		n := p.Normals[i]
		uv := p.TexCoords[i]
		attrs = append(attrs, n[0], n[1], n[2], uv[0], uv[1])
	}
	gl.GenBuffers(1, &gp.attrVBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, gp.attrVBO)
	gl.BufferData(gl.ARRAY_BUFFER, len(attrs)*4, glPtr(attrs), gl.STATIC_DRAW)
	stride := int32(5 * 4)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(2)

	gl.GenBuffers(1, &gp.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, gp.ebo)
	if len(p.Indices) > 0 {
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(p.Indices)*4, gl.Ptr(p.Indices), gl.STATIC_DRAW)
	}

	gl.BindVertexArray(0)

	if errCode := gl.GetError(); errCode != gl.NO_ERROR {
		gp.delete()
		return nil, fmt.Errorf("gl error 0x%x", errCode)
	}
	return gp, nil
}

// sync re-uploads deformed positions when the morph weights changed since
// the last frame.
func (gm *gpuMesh) sync() {
	if len(gm.src.Weights) == 0 || equalWeights(gm.applied, gm.src.Weights) {
		return
	}
	gm.applied = append(gm.applied[:0], gm.src.Weights...)

	for _, gp := range gm.primitives {
		if len(gp.src.Targets) == 0 {
			continue
		}
		gp.scratch = gp.src.Deform(gm.src.Weights, gp.scratch)
		pos := flattenVec3(gp.scratch, nil)
		gl.BindBuffer(gl.ARRAY_BUFFER, gp.posVBO)
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(pos)*4, glPtr(pos))
	}
}

func (gm *gpuMesh) draw(s *Shader, root mgl32.Mat4) {
	gm.sync()
	s.SetMat4("uModel", root.Mul4(gm.src.Transform))

	for _, gp := range gm.primitives {
		if gp.indices == 0 {
			continue
		}
		s.SetVec4("uBaseColor", gp.baseColor)
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, gp.texture)

		gl.BindVertexArray(gp.vao)
		gl.DrawElements(gl.TRIANGLES, gp.indices, gl.UNSIGNED_INT, nil)
	}
	gl.BindVertexArray(0)
}

func (gm *gpuMesh) delete() {
	for _, gp := range gm.primitives {
		gp.delete()
	}
	gm.primitives = nil
}

func (gp *gpuPrimitive) delete() {
	gl.DeleteVertexArrays(1, &gp.vao)
	gl.DeleteBuffers(1, &gp.posVBO)
	gl.DeleteBuffers(1, &gp.attrVBO)
	gl.DeleteBuffers(1, &gp.ebo)
	if gp.ownsTex {
		gl.DeleteTextures(1, &gp.texture)
	}
}

func equalWeights(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func flattenVec3(v []mgl32.Vec3, dst []float32) []float32 {
	dst = dst[:0]
	for _, p := range v {
		dst = append(dst, p[0], p[1], p[2])
	}
	return dst
}

func glPtr(data []float32) unsafe.Pointer {
	if len(data) == 0 {
		return nil
	}
	return gl.Ptr(data)
}

func createSolidTexture(r, g, b, a uint8) uint32 {
	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)

	data := []uint8{r, g, b, a}
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, 1, 1, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(data))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	return tex
}

func createTextureFromBytes(data []byte) (uint32, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decode texture: %w", err)
	}

	rgba := image.NewRGBA(img.Bounds())
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)

	var tex uint32
	gl.GenTextures(1, &tex)
	gl.BindTexture(gl.TEXTURE_2D, tex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA,
		int32(rgba.Bounds().Dx()), int32(rgba.Bounds().Dy()),
		0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(rgba.Pix))
	gl.GenerateMipmap(gl.TEXTURE_2D)

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)
	return tex, nil
}
