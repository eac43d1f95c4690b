// Package renderer draws a VRM avatar into a GLFW window with OpenGL 4.1.
// Everything here must run on the thread that created the window.
package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/rs/zerolog"

	"github.com/normanking/lumiavatar/internal/config"
	"github.com/normanking/lumiavatar/internal/renderloop"
	"github.com/normanking/lumiavatar/internal/vrm"
)

type Config struct {
	Width         int
	Height        int
	Title         string
	VSync         bool
	MSAA          int
	TransparentBG bool
}

// ConfigFromViewer maps viewer settings onto a renderer config.
func ConfigFromViewer(v config.ViewerConfig) Config {
	return Config{
		Width:         v.Width,
		Height:        v.Height,
		Title:         v.Title,
		VSync:         v.VSync,
		MSAA:          v.MSAA,
		TransparentBG: v.Transparent,
	}
}

// Renderer owns the window, the avatar shader and the uploaded model.
type Renderer struct {
	window *glfw.Window
	config Config
	logger zerolog.Logger

	shader   *Shader
	camera   *Camera
	orbit    *OrbitController
	lighting Lighting
	white    uint32

	model  *vrm.Model
	meshes []*gpuMesh

	fbWidth  int
	fbHeight int
}

// New creates the window and GL state. glfw.Init must have been called on
// the current thread.
func New(cfg Config, logger zerolog.Logger) (*Renderer, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	if cfg.MSAA > 0 {
		glfw.WindowHint(glfw.Samples, cfg.MSAA)
	}
	if cfg.TransparentBG {
		glfw.WindowHint(glfw.TransparentFramebuffer, glfw.True)
	}

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	window.MakeContextCurrent()
	window.SetSizeLimits(renderloop.MinWidth, renderloop.MinHeight, glfw.DontCare, glfw.DontCare)

	if err := gl.Init(); err != nil {
		window.Destroy()
		return nil, fmt.Errorf("gl init: %w", err)
	}

	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	r := &Renderer{
		window:   window,
		config:   cfg,
		logger:   logger.With().Str("component", "renderer").Logger(),
		lighting: DefaultLighting(),
	}

	r.shader, err = NewShader(avatarVertSrc, avatarFragSrc)
	if err != nil {
		window.Destroy()
		return nil, fmt.Errorf("avatar shader: %w", err)
	}

	r.fbWidth, r.fbHeight = window.GetFramebufferSize()
	r.camera = NewOrbitCamera(aspect(r.fbWidth, r.fbHeight))
	r.orbit = NewOrbitController(r.camera)
	r.white = createSolidTexture(255, 255, 255, 255)
	r.installInput()

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	if cfg.MSAA > 0 {
		gl.Enable(gl.MULTISAMPLE)
	}

	r.logger.Info().
		Int("width", r.fbWidth).
		Int("height", r.fbHeight).
		Str("gl", gl.GoStr(gl.GetString(gl.VERSION))).
		Msg("Renderer initialized")

	return r, nil
}

func (r *Renderer) installInput() {
	r.window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		pressed := w.GetMouseButton(glfw.MouseButtonLeft) == glfw.Press
		r.orbit.ProcessMouse(float32(x), float32(y), pressed)
	})
	r.window.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		r.orbit.ProcessScroll(float32(yoff))
	})
}

// SetModel uploads m, replacing any previous model. nil clears the scene.
func (r *Renderer) SetModel(m *vrm.Model) error {
	r.clearModel()
	if m == nil {
		return nil
	}

	meshes := make([]*gpuMesh, 0, len(m.Meshes))
	for _, mesh := range m.Meshes {
		gm, err := uploadMesh(mesh, r.white)
		if err != nil {
			for _, done := range meshes {
				done.delete()
			}
			return fmt.Errorf("upload model: %w", err)
		}
		meshes = append(meshes, gm)
	}

	r.model = m
	r.meshes = meshes
	r.logger.Info().Str("model", m.Name).Int("meshes", len(meshes)).Msg("Model uploaded")
	return nil
}

func (r *Renderer) clearModel() {
	for _, gm := range r.meshes {
		gm.delete()
	}
	r.meshes = nil
	r.model = nil
}

// Camera returns the orbit camera.
func (r *Renderer) Camera() *Camera {
	return r.camera
}

// ContainerSize is the current framebuffer size.
func (r *Renderer) ContainerSize() (int, int) {
	return r.window.GetFramebufferSize()
}

// Resize sets the viewport and camera aspect.
func (r *Renderer) Resize(width, height int) {
	if width == r.fbWidth && height == r.fbHeight {
		return
	}
	r.fbWidth, r.fbHeight = width, height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.camera.SetAspectRatio(aspect(width, height))
}

// Render draws the scene, swaps buffers and processes window events.
func (r *Renderer) Render() {
	if r.config.TransparentBG {
		gl.ClearColor(0, 0, 0, 0)
	} else {
		gl.ClearColor(0.07, 0.07, 0.1, 1)
	}
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	if r.model != nil {
		r.shader.Use()
		r.shader.SetMat4("uProjection", r.camera.ProjectionMatrix())
		r.shader.SetMat4("uView", r.camera.ViewMatrix())
		r.shader.SetInt("uBaseColorTex", 0)
		r.lighting.SetUniforms(r.shader)

		for _, gm := range r.meshes {
			gm.draw(r.shader, r.model.Root)
		}
	}

	r.window.SwapBuffers()
	glfw.PollEvents()
}

func (r *Renderer) ShouldClose() bool {
	return r.window.ShouldClose()
}

// Shutdown releases GL resources and destroys the window.
func (r *Renderer) Shutdown() {
	r.clearModel()
	gl.DeleteTextures(1, &r.white)
	r.shader.Delete()
	r.window.Destroy()
}

func aspect(width, height int) float32 {
	if height <= 0 {
		return 1
	}
	return float32(width) / float32(height)
}
