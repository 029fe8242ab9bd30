package renderer

import (
	"fmt"

	"github.com/heliosrt/helios/engine/core"
	"github.com/heliosrt/helios/engine/gpu"
	"github.com/heliosrt/helios/engine/math"
)

// FrameState tracks where within a tick the renderer is. Each Render
// call walks Idle, ComputeDispatched, FramePresented and back to Idle.
type FrameState int

const (
	FrameIdle FrameState = iota
	FrameComputeDispatched
	FramePresented
)

// pendingSync owns the single outstanding sync point. At most one frame
// beyond the current one is ever in flight: replacing the slot waits on
// the old point first, so every resource the new recording reuses is
// already out of GPU hands.
type pendingSync struct {
	device gpu.Device
	point  gpu.SyncPoint
	held   bool
}

// Replace waits on the held point, if any, then stores next.
func (s *pendingSync) Replace(next gpu.SyncPoint) error {
	if err := s.Drain(); err != nil {
		return err
	}
	s.point = next
	s.held = true
	return nil
}

// Drain waits on the held point, if any, and empties the slot.
func (s *pendingSync) Drain() error {
	if !s.held {
		return nil
	}
	done, err := s.device.Wait(s.point, gpu.WaitForever)
	if err != nil {
		return err
	}
	if !done {
		return fmt.Errorf("frame wait: %w", core.ErrStall)
	}
	s.held = false
	return nil
}

// FrameRenderer drives the two-stage frame loop: a ray-trace compute
// dispatch writing the offscreen target, then a full-screen composite
// draw of that target into the acquired swapchain image, both in one
// submission.
type FrameRenderer struct {
	device    gpu.Device
	camera    *Camera
	resources *ResourceSet

	shader        gpu.Shader
	tracePipeline gpu.ComputePipeline
	drawPipeline  gpu.RenderPipeline
	workgroup     [3]uint32

	encoder       gpu.CommandEncoder
	extent        gpu.Extent
	surfaceFormat gpu.Format
	pending       pendingSync
	state         FrameState

	targetInitialized bool
	destroyed         bool
}

// NewFrameRenderer builds everything a Render loop needs: the surface,
// the offscreen target, the shader and both pipelines, the command
// encoder, and the scene's acceleration structures. The structure build
// runs synchronously, so the first Render call already traces against a
// complete top level.
func NewFrameRenderer(device gpu.Device, scene *Scene, camera *Camera, size gpu.Extent, shaderSource string) (*FrameRenderer, error) {
	builder, err := NewBuilder(device)
	if err != nil {
		return nil, err
	}

	r := &FrameRenderer{
		device:    device,
		camera:    camera,
		resources: &ResourceSet{},
		extent:    size,
		pending:   pendingSync{device: device},
	}

	surfaceFormat, err := device.Resize(gpu.SurfaceConfig{
		Size:       size,
		Usage:      gpu.TextureUsageTarget,
		FrameCount: 3,
	})
	if err != nil {
		return nil, err
	}
	r.surfaceFormat = surfaceFormat

	r.resources.Target, err = device.CreateTexture(gpu.TextureDesc{
		Name:   "target",
		Format: gpu.FormatRGBA16Float,
		Width:  size.Width,
		Height: size.Height,
		Usage:  gpu.TextureUsageResource | gpu.TextureUsageStorage,
	})
	if err != nil {
		return nil, err
	}
	r.resources.TargetView, err = device.CreateTextureView(gpu.TextureViewDesc{
		Name:    "target",
		Texture: r.resources.Target,
		Format:  gpu.FormatRGBA16Float,
	})
	if err != nil {
		r.resources.Destroy(device)
		return nil, err
	}

	r.shader, err = device.CreateShader(gpu.ShaderDesc{Name: "ray-trace", Source: shaderSource})
	if err != nil {
		r.resources.Destroy(device)
		return nil, err
	}
	if err := r.createPipelines(r.shader, surfaceFormat); err != nil {
		device.DestroyShader(r.shader)
		r.resources.Destroy(device)
		return nil, err
	}
	r.workgroup = device.WorkgroupSize(r.tracePipeline)

	r.encoder, err = device.CreateCommandEncoder(gpu.CommandEncoderDesc{
		Name:        "main",
		BufferCount: 2,
	})
	if err != nil {
		r.destroyPipelines()
		device.DestroyShader(r.shader)
		r.resources.Destroy(device)
		return nil, err
	}

	if err := builder.Build(scene, r.resources); err != nil {
		r.destroyPipelines()
		device.DestroyShader(r.shader)
		r.resources.Destroy(device)
		return nil, err
	}
	return r, nil
}

func (r *FrameRenderer) createPipelines(shader gpu.Shader, surfaceFormat gpu.Format) error {
	var err error
	r.tracePipeline, err = r.device.CreateComputePipeline(gpu.ComputePipelineDesc{
		Name:   "ray-trace",
		Group:  TraceBindGroup,
		Layout: TraceBindGroupLayout(),
		Shader: shader,
		Entry:  "main",
	})
	if err != nil {
		return err
	}
	r.drawPipeline, err = r.device.CreateRenderPipeline(gpu.RenderPipelineDesc{
		Name:        "composite",
		Group:       CompositeBindGroup,
		Layout:      CompositeBindGroupLayout(),
		Shader:      shader,
		VertexEntry: "draw_vs",
		FragEntry:   "draw_fs",
		Topology:    gpu.TopologyTriangleStrip,
		ColorFormat: surfaceFormat,
	})
	if err != nil {
		r.device.DestroyComputePipeline(r.tracePipeline)
		r.tracePipeline = gpu.ComputePipeline(gpu.InvalidID)
		return err
	}
	return nil
}

func (r *FrameRenderer) destroyPipelines() {
	if r.tracePipeline != gpu.ComputePipeline(gpu.InvalidID) {
		r.device.DestroyComputePipeline(r.tracePipeline)
		r.tracePipeline = gpu.ComputePipeline(gpu.InvalidID)
	}
	if r.drawPipeline != gpu.RenderPipeline(gpu.InvalidID) {
		r.device.DestroyRenderPipeline(r.drawPipeline)
		r.drawPipeline = gpu.RenderPipeline(gpu.InvalidID)
	}
}

// State reports where the previous Render call finished. Outside a
// Render call this is always FrameIdle.
func (r *FrameRenderer) State() FrameState {
	return r.state
}

// Render records and submits one frame. The compute dispatch covers
// every pixel through ceiling division by the workgroup size; the draw
// is the fixed full-screen triangle, no vertex buffers involved. After
// submission the previous frame's sync point is waited on and the slot
// takes the new one, capping in-flight frames at two.
func (r *FrameRenderer) Render() error {
	r.encoder.Begin()
	if !r.targetInitialized {
		r.encoder.InitTexture(r.resources.Target)
		r.targetInitialized = true
	}

	params := r.camera.BuildParameters(r.extent)
	uniform := params.Marshal()

	compute := r.encoder.Compute()
	commands := compute.With(r.tracePipeline)
	commands.Bind(TraceBindGroup, []gpu.BindingValue{
		{Index: BindingParameters, Uniform: uniform},
		{Index: BindingAccStruct, Structure: r.resources.TLAS},
		{Index: BindingOutput, View: r.resources.TargetView},
	})
	commands.Dispatch([3]uint32{
		math.CeilDiv(r.extent.Width, r.workgroup[0]),
		math.CeilDiv(r.extent.Height, r.workgroup[1]),
		1,
	})
	compute.End()
	r.state = FrameComputeDispatched

	frame, err := r.device.AcquireFrame()
	if err != nil {
		r.state = FrameIdle
		return err
	}
	r.encoder.InitTexture(frame.Texture)

	draw := r.encoder.Render(gpu.RenderTargetSet{Colors: []gpu.RenderTarget{{
		View:  frame.View,
		Load:  gpu.LoadOpClearTransparentBlack,
		Store: gpu.StoreOpStore,
	}}})
	drawCommands := draw.With(r.drawPipeline)
	drawCommands.Bind(CompositeBindGroup, []gpu.BindingValue{
		{Index: BindingInput, View: r.resources.TargetView},
	})
	drawCommands.Draw(0, 3, 0, 1)
	draw.End()

	r.encoder.Present(frame)
	r.state = FramePresented

	syncPoint, err := r.device.Submit(r.encoder)
	if err != nil {
		r.state = FrameIdle
		return err
	}
	err = r.pending.Replace(syncPoint)
	r.state = FrameIdle
	return err
}

// ReloadShader swaps the pipelines over to freshly compiled source.
// The new module and pipelines are created first; only once they all
// succeed are the old ones drained and destroyed, so a broken edit
// leaves the running frame loop untouched.
func (r *FrameRenderer) ReloadShader(source string) error {
	shader, err := r.device.CreateShader(gpu.ShaderDesc{Name: "ray-trace", Source: source})
	if err != nil {
		return err
	}

	oldShader := r.shader
	oldTrace := r.tracePipeline
	oldDraw := r.drawPipeline

	if err := r.createPipelines(shader, r.surfaceFormat); err != nil {
		r.tracePipeline = oldTrace
		r.drawPipeline = oldDraw
		r.device.DestroyShader(shader)
		return err
	}

	if err := r.pending.Drain(); err != nil {
		return err
	}
	r.device.DestroyComputePipeline(oldTrace)
	r.device.DestroyRenderPipeline(oldDraw)
	r.device.DestroyShader(oldShader)

	r.shader = shader
	r.workgroup = r.device.WorkgroupSize(r.tracePipeline)
	core.LogInfo("shader reloaded")
	return nil
}

// Destroy drains the pending frame and releases everything the renderer
// owns, in dependency order. Safe to call once on every exit path.
func (r *FrameRenderer) Destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true

	if err := r.pending.Drain(); err != nil {
		core.LogError("frame drain on shutdown: %s", err)
	}
	r.destroyPipelines()
	r.device.DestroyShader(r.shader)
	r.resources.Destroy(r.device)
}
