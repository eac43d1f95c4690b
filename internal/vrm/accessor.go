package vrm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

// accessorView returns the raw bytes backing an accessor together with the
// element stride. Accessors without a buffer view read as zeros.
func accessorView(doc *gltf.Document, index int, elemSize int) (*gltf.Accessor, []byte, int, error) {
	if index < 0 || index >= len(doc.Accessors) {
		return nil, nil, 0, fmt.Errorf("accessor %d out of range", index)
	}
	acc := doc.Accessors[index]
	if acc.BufferView == nil {
		return acc, nil, elemSize, nil
	}
	if *acc.BufferView >= len(doc.BufferViews) {
		return nil, nil, 0, fmt.Errorf("accessor %d: buffer view %d out of range", index, *acc.BufferView)
	}

	view := doc.BufferViews[*acc.BufferView]
	if view.Buffer >= len(doc.Buffers) {
		return nil, nil, 0, fmt.Errorf("buffer view %d: buffer %d out of range", *acc.BufferView, view.Buffer)
	}
	data := doc.Buffers[view.Buffer].Data
	if len(data) == 0 {
		return nil, nil, 0, fmt.Errorf("buffer %d has no data", view.Buffer)
	}

	stride := view.ByteStride
	if stride == 0 {
		stride = elemSize
	}

	start := view.ByteOffset + acc.ByteOffset
	end := view.ByteOffset + view.ByteLength
	if acc.Count > 0 && start+(acc.Count-1)*stride+elemSize > end || end > len(data) {
		return nil, nil, 0, fmt.Errorf("accessor %d exceeds its buffer view", index)
	}

	return acc, data[start:end], stride, nil
}

func readFloat(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func readVec3(doc *gltf.Document, index int) ([]mgl32.Vec3, error) {
	acc, data, stride, err := accessorView(doc, index, 12)
	if err != nil {
		return nil, err
	}
	if acc.ComponentType != gltf.ComponentFloat || acc.Type != gltf.AccessorVec3 {
		return nil, fmt.Errorf("accessor %d: want float VEC3", index)
	}

	out := make([]mgl32.Vec3, acc.Count)
	if data == nil {
		return out, nil
	}
	for i := range out {
		p := data[i*stride:]
		out[i] = mgl32.Vec3{readFloat(p), readFloat(p[4:]), readFloat(p[8:])}
	}
	return out, nil
}

func readVec2(doc *gltf.Document, index int) ([]mgl32.Vec2, error) {
	acc, data, stride, err := accessorView(doc, index, 8)
	if err != nil {
		return nil, err
	}
	if acc.ComponentType != gltf.ComponentFloat || acc.Type != gltf.AccessorVec2 {
		return nil, fmt.Errorf("accessor %d: want float VEC2", index)
	}

	out := make([]mgl32.Vec2, acc.Count)
	if data == nil {
		return out, nil
	}
	for i := range out {
		p := data[i*stride:]
		out[i] = mgl32.Vec2{readFloat(p), readFloat(p[4:])}
	}
	return out, nil
}

func readIndices(doc *gltf.Document, index int) ([]uint32, error) {
	if index < 0 || index >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", index)
	}

	var size int
	switch doc.Accessors[index].ComponentType {
	case gltf.ComponentUbyte:
		size = 1
	case gltf.ComponentUshort:
		size = 2
	case gltf.ComponentUint:
		size = 4
	default:
		return nil, fmt.Errorf("accessor %d: unsupported index component type", index)
	}

	acc, data, stride, err := accessorView(doc, index, size)
	if err != nil {
		return nil, err
	}

	out := make([]uint32, acc.Count)
	if data == nil {
		return out, nil
	}
	for i := range out {
		p := data[i*stride:]
		switch size {
		case 1:
			out[i] = uint32(p[0])
		case 2:
			out[i] = uint32(binary.LittleEndian.Uint16(p))
		case 4:
			out[i] = binary.LittleEndian.Uint32(p)
		}
	}
	return out, nil
}

// bufferViewBytes returns the bytes of an embedded image.
func bufferViewBytes(doc *gltf.Document, index int) ([]byte, error) {
	if index < 0 || index >= len(doc.BufferViews) {
		return nil, fmt.Errorf("buffer view %d out of range", index)
	}
	view := doc.BufferViews[index]
	if view.Buffer >= len(doc.Buffers) {
		return nil, fmt.Errorf("buffer view %d: buffer %d out of range", index, view.Buffer)
	}
	data := doc.Buffers[view.Buffer].Data
	if view.ByteOffset+view.ByteLength > len(data) {
		return nil, fmt.Errorf("buffer view %d exceeds its buffer", index)
	}
	return data[view.ByteOffset : view.ByteOffset+view.ByteLength], nil
}
