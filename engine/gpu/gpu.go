package gpu

// Device is the graphics-device contract. One implementation wraps a real
// API (engine/gpu/vulkan); another records everything for tests and
// headless runs (engine/gpu/sim).
//
// All methods are driven from a single CPU thread. Parallelism lives on
// the GPU queue behind the implementation; the only blocking calls are
// Wait and Destroy (final drain).
//
// Every Destroy* method accepts the zero handle as a no-op, so partial
// teardown on an error path never needs to track which handles were
// actually created.
type Device interface {
	// Name identifies the underlying adapter, for logs and errors.
	Name() string

	// Capabilities reports optional features. Callers check RayQuery
	// before touching any acceleration-structure method.
	Capabilities() Capabilities

	// Resize (re)configures the presentable surface and returns its
	// color format, needed to create the composite render pipeline.
	Resize(config SurfaceConfig) (Format, error)

	CreateBuffer(desc BufferDesc) (Buffer, error)
	// WriteBuffer copies host data into a MemoryShared buffer. The buffer
	// must not be in use by in-flight GPU work.
	WriteBuffer(b Buffer, offset uint64, data []byte) error
	DestroyBuffer(b Buffer)

	CreateTexture(desc TextureDesc) (Texture, error)
	DestroyTexture(t Texture)
	CreateTextureView(desc TextureViewDesc) (TextureView, error)
	DestroyTextureView(v TextureView)

	// BottomLevelSizes queries backing and scratch sizes for a BLAS over
	// the given meshes. Must be called before allocating either buffer.
	BottomLevelSizes(meshes []Mesh) (StructureSizes, error)
	// TopLevelSizes queries backing and scratch sizes for a TLAS over
	// instanceCount instances.
	TopLevelSizes(instanceCount uint32) (StructureSizes, error)
	CreateAccelerationStructure(desc AccelerationStructureDesc) (AccelerationStructure, error)
	DestroyAccelerationStructure(s AccelerationStructure)
	// CreateInstanceBuffer allocates and populates the device-format
	// instance records feeding a TLAS build.
	CreateInstanceBuffer(instances []Instance) (Buffer, error)

	CreateShader(desc ShaderDesc) (Shader, error)
	DestroyShader(s Shader)

	// CreateComputePipeline validates desc.Layout against the shader's
	// declared bindings; a mismatch is a fatal setup error.
	CreateComputePipeline(desc ComputePipelineDesc) (ComputePipeline, error)
	DestroyComputePipeline(p ComputePipeline)
	CreateRenderPipeline(desc RenderPipelineDesc) (RenderPipeline, error)
	DestroyRenderPipeline(p RenderPipeline)
	// WorkgroupSize reports the compute pipeline's fixed workgroup
	// dimensions, used to size dispatch grids.
	WorkgroupSize(p ComputePipeline) [3]uint32

	CreateCommandEncoder(desc CommandEncoderDesc) (CommandEncoder, error)
	// Submit hands the recorded commands to the queue and returns a fresh
	// SyncPoint gating reuse of every resource they touch.
	Submit(enc CommandEncoder) (SyncPoint, error)
	// Wait blocks until the sync point completes or timeoutNs elapses.
	// It returns false when the timeout won; callers must retry before
	// touching gated resources. Waiting on the zero SyncPoint returns
	// immediately.
	Wait(sp SyncPoint, timeoutNs uint64) (bool, error)

	// AcquireFrame blocks until the next presentable image is available.
	AcquireFrame() (Frame, error)

	// Destroy drains all in-flight work and tears the device down.
	Destroy()
}

// CommandEncoder records one submission's worth of GPU commands.
// Begin/record/Submit cycles reuse the encoder's internal command
// buffers, gated by the sync point of the submission before last.
type CommandEncoder interface {
	// Begin starts a new recording, recycling the oldest internal buffer.
	Begin()
	// InitTexture transitions a freshly created or acquired texture into
	// a usable state before its first access this recording.
	InitTexture(t Texture)
	// Compute opens a compute pass. Passes opened sequentially on the
	// same encoder are ordered: work in an earlier pass completes before
	// a later pass reads its results.
	Compute() ComputePass
	// Render opens a render pass targeting the given color attachments.
	Render(targets RenderTargetSet) RenderPass
	// Present marks the frame for presentation when this recording is
	// submitted.
	Present(frame Frame)
}

// ComputePass records acceleration-structure builds and dispatches.
type ComputePass interface {
	// BuildBottomLevel records a BLAS build reading mesh geometry and the
	// given scratch region.
	BuildBottomLevel(blas AccelerationStructure, meshes []Mesh, scratch BufferRange)
	// BuildTopLevel records a TLAS build reading instance records and the
	// given scratch region. The referenced BLAS builds must be ordered
	// before this pass.
	BuildTopLevel(tlas AccelerationStructure, instanceCount uint32, instances BufferRange, scratch BufferRange)
	// With selects a pipeline for subsequent Bind/Dispatch calls.
	With(p ComputePipeline) ComputeCommands
	// End closes the pass. No recording methods may be called after.
	End()
}

// ComputeCommands binds resources and dispatches under one pipeline.
type ComputeCommands interface {
	Bind(group uint32, values []BindingValue)
	Dispatch(groups [3]uint32)
}

// RenderPass records draws targeting its color attachments.
type RenderPass interface {
	With(p RenderPipeline) RenderCommands
	End()
}

// RenderCommands binds resources and draws under one pipeline.
type RenderCommands interface {
	Bind(group uint32, values []BindingValue)
	Draw(firstVertex, vertexCount, firstInstance, instanceCount uint32)
}
