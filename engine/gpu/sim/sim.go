// Package sim is an in-memory implementation of the device contract. It
// executes nothing but records every operation in an ordered journal and
// enforces the contract's lifetime rules: destroying a resource still
// referenced by unwaited submissions, or recording passes incorrectly,
// is reported as a violation. Tests and headless runs drive the full
// renderer through it.
package sim

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/heliosrt/helios/engine/assets"
	"github.com/heliosrt/helios/engine/core"
	"github.com/heliosrt/helios/engine/gpu"
)

type resource struct {
	kind   string
	name   string
	id     uuid.UUID
	size   uint64
	memory gpu.Memory
	data   []byte
}

type viewResource struct {
	resource
	texture gpu.Texture
}

type structureResource struct {
	resource
	structureKind gpu.StructureKind
	buffer        gpu.Buffer
	built         bool
}

type computePipeline struct {
	desc  gpu.ComputePipelineDesc
	entry assets.EntryPoint
}

type renderPipeline struct {
	desc gpu.RenderPipelineDesc
}

// Device implements gpu.Device.
type Device struct {
	mutex   sync.Mutex
	journal journal

	nextHandle uint64
	buffers    map[gpu.Buffer]*resource
	textures   map[gpu.Texture]*resource
	views      map[gpu.TextureView]*viewResource
	structures map[gpu.AccelerationStructure]*structureResource
	shaders    map[gpu.Shader]*assets.ShaderSource
	computePLs map[gpu.ComputePipeline]*computePipeline
	renderPLs  map[gpu.RenderPipeline]*renderPipeline

	surface     gpu.SurfaceConfig
	frames      []gpu.Frame
	frameCursor uint32

	nextSync  gpu.SyncPoint
	completed gpu.SyncPoint
	// inFlight maps each unretired submission to the handles it touches.
	inFlight map[gpu.SyncPoint]map[uint64]struct{}

	rayQuery         bool
	manualCompletion bool
	blasSizes        *gpu.StructureSizes
	tlasSizes        *gpu.StructureSizes

	violations []string
}

var _ gpu.Device = (*Device)(nil)

func New() *Device {
	return &Device{
		buffers:    make(map[gpu.Buffer]*resource),
		textures:   make(map[gpu.Texture]*resource),
		views:      make(map[gpu.TextureView]*viewResource),
		structures: make(map[gpu.AccelerationStructure]*structureResource),
		shaders:    make(map[gpu.Shader]*assets.ShaderSource),
		computePLs: make(map[gpu.ComputePipeline]*computePipeline),
		renderPLs:  make(map[gpu.RenderPipeline]*renderPipeline),
		inFlight:   make(map[gpu.SyncPoint]map[uint64]struct{}),
		rayQuery:   true,
	}
}

// SetRayQuery flips the advertised ray-query capability, for exercising
// the renderer's refusal path.
func (d *Device) SetRayQuery(enabled bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.rayQuery = enabled
}

// SetManualCompletion makes finite-timeout waits report a stall until the
// test calls Complete for the sync point. Unbounded waits still complete
// immediately so single-threaded tests cannot deadlock.
func (d *Device) SetManualCompletion(enabled bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.manualCompletion = enabled
}

// Complete marks all submissions up to and including sp as finished.
func (d *Device) Complete(sp gpu.SyncPoint) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.retire(sp)
}

// SetStructureSizes overrides the deterministic size model, letting tests
// pin exact scratch figures.
func (d *Device) SetStructureSizes(blas, tlas gpu.StructureSizes) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.blasSizes = &blas
	d.tlasSizes = &tlas
}

// Violations returns every contract violation observed so far.
func (d *Device) Violations() []string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	out := make([]string, len(d.violations))
	copy(out, d.violations)
	return out
}

// violate is safe to call without d.mutex; violateLocked requires it.
func (d *Device) violate(format string, args ...interface{}) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.violateLocked(format, args...)
}

func (d *Device) violateLocked(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	core.LogWarn("sim device: %s", msg)
	d.violations = append(d.violations, msg)
}

func (d *Device) Name() string {
	return "sim"
}

func (d *Device) Capabilities() gpu.Capabilities {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return gpu.Capabilities{RayQuery: d.rayQuery}
}

func (d *Device) Resize(config gpu.SurfaceConfig) (gpu.Format, error) {
	if config.Size.Width == 0 || config.Size.Height == 0 {
		return gpu.FormatUnknown, fmt.Errorf("surface extent %dx%d is empty",
			config.Size.Width, config.Size.Height)
	}
	if config.FrameCount == 0 {
		return gpu.FormatUnknown, fmt.Errorf("surface needs at least one frame")
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, f := range d.frames {
		delete(d.views, f.View)
		delete(d.textures, f.Texture)
	}
	d.frames = d.frames[:0]
	d.surface = config

	for i := uint32(0); i < config.FrameCount; i++ {
		tex := gpu.Texture(d.newHandle())
		d.textures[tex] = &resource{
			kind: "texture",
			name: fmt.Sprintf("swapchain[%d]", i),
			id:   uuid.New(),
		}
		view := gpu.TextureView(d.newHandle())
		d.views[view] = &viewResource{
			resource: resource{kind: "texture_view", name: fmt.Sprintf("swapchain[%d]", i), id: uuid.New()},
			texture:  tex,
		}
		d.frames = append(d.frames, gpu.Frame{Texture: tex, View: view, Index: i})
	}
	return gpu.FormatBGRA8Unorm, nil
}

func (d *Device) newHandle() uint64 {
	d.nextHandle++
	return d.nextHandle
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return gpu.InvalidID, fmt.Errorf("buffer %q has zero size", desc.Name)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	b := gpu.Buffer(d.newHandle())
	res := &resource{
		kind:   "buffer",
		name:   desc.Name,
		id:     uuid.New(),
		size:   desc.Size,
		memory: desc.Memory,
	}
	if desc.Memory == gpu.MemoryShared {
		res.data = make([]byte, desc.Size)
	}
	d.buffers[b] = res
	d.journal.record(Op{Kind: OpCreateBuffer, Name: desc.Name, Handle: uint64(b)})
	return b, nil
}

func (d *Device) WriteBuffer(b gpu.Buffer, offset uint64, data []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	res, ok := d.buffers[b]
	if !ok {
		return fmt.Errorf("write to unknown buffer %d", b)
	}
	if res.memory != gpu.MemoryShared {
		return fmt.Errorf("buffer %q is not CPU-writable", res.name)
	}
	if offset+uint64(len(data)) > res.size {
		return fmt.Errorf("write past end of buffer %q (%d+%d > %d)",
			res.name, offset, len(data), res.size)
	}
	if d.usedInFlightLocked(uint64(b)) {
		d.violateLocked("buffer %q written while in flight", res.name)
	}
	copy(res.data[offset:], data)
	d.journal.record(Op{Kind: OpWriteBuffer, Name: res.name, Handle: uint64(b)})
	return nil
}

// BufferData exposes a shared buffer's current contents to tests.
func (d *Device) BufferData(b gpu.Buffer) []byte {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if res, ok := d.buffers[b]; ok {
		out := make([]byte, len(res.data))
		copy(out, res.data)
		return out
	}
	return nil
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	if b == gpu.InvalidID {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	res, ok := d.buffers[b]
	if !ok {
		d.violateLocked("destroy of unknown buffer %d", b)
		return
	}
	if d.usedInFlightLocked(uint64(b)) {
		d.violateLocked("buffer %q destroyed while in flight", res.name)
	}
	delete(d.buffers, b)
	d.journal.record(Op{Kind: OpDestroyBuffer, Name: res.name, Handle: uint64(b)})
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return gpu.InvalidID, fmt.Errorf("texture %q has empty extent", desc.Name)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	t := gpu.Texture(d.newHandle())
	d.textures[t] = &resource{kind: "texture", name: desc.Name, id: uuid.New()}
	d.journal.record(Op{Kind: OpCreateTexture, Name: desc.Name, Handle: uint64(t)})
	return t, nil
}

func (d *Device) DestroyTexture(t gpu.Texture) {
	if t == gpu.InvalidID {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	res, ok := d.textures[t]
	if !ok {
		d.violateLocked("destroy of unknown texture %d", t)
		return
	}
	if d.usedInFlightLocked(uint64(t)) {
		d.violateLocked("texture %q destroyed while in flight", res.name)
	}
	for _, view := range d.views {
		if view.texture == t {
			d.violateLocked("texture %q destroyed before its view %q", res.name, view.name)
		}
	}
	delete(d.textures, t)
	d.journal.record(Op{Kind: OpDestroyTexture, Name: res.name, Handle: uint64(t)})
}

func (d *Device) CreateTextureView(desc gpu.TextureViewDesc) (gpu.TextureView, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.textures[desc.Texture]; !ok {
		return gpu.InvalidID, fmt.Errorf("view %q references unknown texture %d",
			desc.Name, desc.Texture)
	}
	v := gpu.TextureView(d.newHandle())
	d.views[v] = &viewResource{
		resource: resource{kind: "texture_view", name: desc.Name, id: uuid.New()},
		texture:  desc.Texture,
	}
	d.journal.record(Op{Kind: OpCreateTextureView, Name: desc.Name, Handle: uint64(v)})
	return v, nil
}

func (d *Device) DestroyTextureView(v gpu.TextureView) {
	if v == gpu.InvalidID {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	res, ok := d.views[v]
	if !ok {
		d.violateLocked("destroy of unknown texture view %d", v)
		return
	}
	if d.usedInFlightLocked(uint64(v)) {
		d.violateLocked("texture view %q destroyed while in flight", res.name)
	}
	delete(d.views, v)
	d.journal.record(Op{Kind: OpDestroyTextureView, Name: res.name, Handle: uint64(v)})
}

// Size model
//
// Real drivers answer size queries from geometry complexity; the sim
// uses a deterministic stand-in so tests get stable figures.

func (d *Device) BottomLevelSizes(meshes []gpu.Mesh) (gpu.StructureSizes, error) {
	if len(meshes) == 0 {
		return gpu.StructureSizes{}, fmt.Errorf("bottom-level size query over zero meshes")
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.blasSizes != nil {
		return *d.blasSizes, nil
	}
	var triangles uint64
	for _, m := range meshes {
		triangles += uint64(m.TriangleCount)
	}
	return gpu.StructureSizes{
		Data:    256 + 128*triangles,
		Scratch: 64 + 64*triangles,
	}, nil
}

func (d *Device) TopLevelSizes(instanceCount uint32) (gpu.StructureSizes, error) {
	if instanceCount == 0 {
		return gpu.StructureSizes{}, fmt.Errorf("top-level size query over zero instances")
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.tlasSizes != nil {
		return *d.tlasSizes, nil
	}
	return gpu.StructureSizes{
		Data:    256 + 64*uint64(instanceCount),
		Scratch: 64 * uint64(instanceCount),
	}, nil
}

func (d *Device) CreateAccelerationStructure(desc gpu.AccelerationStructureDesc) (gpu.AccelerationStructure, error) {
	if desc.Size == 0 {
		return gpu.InvalidID, fmt.Errorf("acceleration structure %q has zero size", desc.Name)
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	backing, ok := d.buffers[desc.Buffer]
	if !ok {
		return gpu.InvalidID, fmt.Errorf("acceleration structure %q references unknown buffer %d",
			desc.Name, desc.Buffer)
	}
	if desc.Offset+desc.Size > backing.size {
		return gpu.InvalidID, fmt.Errorf("acceleration structure %q exceeds backing buffer %q",
			desc.Name, backing.name)
	}
	s := gpu.AccelerationStructure(d.newHandle())
	d.structures[s] = &structureResource{
		resource:      resource{kind: "acceleration_structure", name: desc.Name, id: uuid.New()},
		structureKind: desc.Kind,
		buffer:        desc.Buffer,
	}
	d.journal.record(Op{Kind: OpCreateStructure, Name: desc.Name, Handle: uint64(s)})
	return s, nil
}

func (d *Device) DestroyAccelerationStructure(s gpu.AccelerationStructure) {
	if s == gpu.InvalidID {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	res, ok := d.structures[s]
	if !ok {
		d.violateLocked("destroy of unknown acceleration structure %d", s)
		return
	}
	if d.usedInFlightLocked(uint64(s)) {
		d.violateLocked("acceleration structure %q destroyed while in flight", res.name)
	}
	delete(d.structures, s)
	d.journal.record(Op{Kind: OpDestroyStructure, Name: res.name, Handle: uint64(s)})
}

// instanceRecordSize matches the device-format instance record layout.
const instanceRecordSize = 64

func (d *Device) CreateInstanceBuffer(instances []gpu.Instance) (gpu.Buffer, error) {
	if len(instances) == 0 {
		return gpu.InvalidID, fmt.Errorf("instance buffer over zero instances")
	}
	d.mutex.Lock()
	for _, inst := range instances {
		res, ok := d.structures[inst.Structure]
		if !ok {
			d.mutex.Unlock()
			return gpu.InvalidID, fmt.Errorf("instance references unknown structure %d", inst.Structure)
		}
		if res.structureKind != gpu.StructureBottomLevel {
			d.mutex.Unlock()
			return gpu.InvalidID, fmt.Errorf("instance references %q, which is not bottom-level", res.name)
		}
	}

	b := gpu.Buffer(d.newHandle())
	d.buffers[b] = &resource{
		kind:   "buffer",
		name:   "instances",
		id:     uuid.New(),
		size:   uint64(len(instances)) * instanceRecordSize,
		memory: gpu.MemoryShared,
		data:   make([]byte, len(instances)*instanceRecordSize),
	}
	d.journal.record(Op{Kind: OpCreateInstanceBuffer, Name: "instances", Handle: uint64(b)})
	d.mutex.Unlock()
	return b, nil
}

func (d *Device) CreateShader(desc gpu.ShaderDesc) (gpu.Shader, error) {
	src, err := assets.ScanShader(desc.Name, desc.Source)
	if err != nil {
		return gpu.InvalidID, err
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	s := gpu.Shader(d.newHandle())
	d.shaders[s] = src
	return s, nil
}

func (d *Device) DestroyShader(s gpu.Shader) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	delete(d.shaders, s)
}

var classToKind = map[assets.BindingClass]gpu.BindingKind{
	assets.ClassUniform:               gpu.BindingUniform,
	assets.ClassAccelerationStructure: gpu.BindingAccelerationStructure,
	assets.ClassStorageTexture:        gpu.BindingStorageTexture,
	assets.ClassSampledTexture:        gpu.BindingSampledTexture,
}

// validateLayout checks a pipeline's declared layout against the
// shader's scanned bindings for that group. A mismatch fails pipeline
// creation rather than surfacing per frame.
func validateLayout(name string, src *assets.ShaderSource, group uint32, layout gpu.BindGroupLayout) error {
	decls := src.GroupBindings(int(group))
	if len(decls) != len(layout.Bindings) {
		return fmt.Errorf("pipeline %q: layout declares %d bindings, shader group %d has %d",
			name, len(layout.Bindings), group, len(decls))
	}
	for _, decl := range decls {
		slot, ok := layout.Slot(decl.Index)
		if !ok {
			return fmt.Errorf("pipeline %q: shader binding %q at index %d missing from layout",
				name, decl.Name, decl.Index)
		}
		if slot.Kind != classToKind[decl.Class] {
			return fmt.Errorf("pipeline %q: binding %q at index %d is %s in the shader, %s in the layout",
				name, decl.Name, decl.Index, classToKind[decl.Class], slot.Kind)
		}
	}
	return nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.ComputePipeline, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	src, ok := d.shaders[desc.Shader]
	if !ok {
		return gpu.InvalidID, fmt.Errorf("pipeline %q references unknown shader %d", desc.Name, desc.Shader)
	}
	entry, ok := src.Entry(desc.Entry)
	if !ok || entry.Stage != assets.StageCompute {
		return gpu.InvalidID, fmt.Errorf("pipeline %q: no compute entry point %q", desc.Name, desc.Entry)
	}
	if err := validateLayout(desc.Name, src, desc.Group, desc.Layout); err != nil {
		return gpu.InvalidID, err
	}
	p := gpu.ComputePipeline(d.newHandle())
	d.computePLs[p] = &computePipeline{desc: desc, entry: entry}
	return p, nil
}

func (d *Device) DestroyComputePipeline(p gpu.ComputePipeline) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	delete(d.computePLs, p)
}

func (d *Device) CreateRenderPipeline(desc gpu.RenderPipelineDesc) (gpu.RenderPipeline, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	src, ok := d.shaders[desc.Shader]
	if !ok {
		return gpu.InvalidID, fmt.Errorf("pipeline %q references unknown shader %d", desc.Name, desc.Shader)
	}
	if entry, ok := src.Entry(desc.VertexEntry); !ok || entry.Stage != assets.StageVertex {
		return gpu.InvalidID, fmt.Errorf("pipeline %q: no vertex entry point %q", desc.Name, desc.VertexEntry)
	}
	if entry, ok := src.Entry(desc.FragEntry); !ok || entry.Stage != assets.StageFragment {
		return gpu.InvalidID, fmt.Errorf("pipeline %q: no fragment entry point %q", desc.Name, desc.FragEntry)
	}
	if err := validateLayout(desc.Name, src, desc.Group, desc.Layout); err != nil {
		return gpu.InvalidID, err
	}
	p := gpu.RenderPipeline(d.newHandle())
	d.renderPLs[p] = &renderPipeline{desc: desc}
	return p, nil
}

func (d *Device) DestroyRenderPipeline(p gpu.RenderPipeline) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	delete(d.renderPLs, p)
}

func (d *Device) WorkgroupSize(p gpu.ComputePipeline) [3]uint32 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if pl, ok := d.computePLs[p]; ok {
		return pl.entry.Workgroup
	}
	d.violateLocked("workgroup size query for unknown pipeline %d", p)
	return [3]uint32{1, 1, 1}
}

func (d *Device) CreateCommandEncoder(desc gpu.CommandEncoderDesc) (gpu.CommandEncoder, error) {
	if desc.BufferCount == 0 {
		return nil, fmt.Errorf("encoder %q needs at least one command buffer", desc.Name)
	}
	return &commandEncoder{device: d, name: desc.Name}, nil
}

func (d *Device) Submit(enc gpu.CommandEncoder) (gpu.SyncPoint, error) {
	e, ok := enc.(*commandEncoder)
	if !ok || e.device != d {
		return 0, fmt.Errorf("encoder was not created by this device")
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !e.begun {
		return 0, fmt.Errorf("submit of encoder %q with no open recording", e.name)
	}
	if e.activePass {
		d.violateLocked("encoder %q submitted with an open pass", e.name)
	}

	d.nextSync++
	sp := d.nextSync

	uses := make(map[uint64]struct{}, len(e.uses))
	for h := range e.uses {
		uses[h] = struct{}{}
	}
	d.inFlight[sp] = uses

	for _, op := range e.pending {
		op.Submission = sp
		d.journal.record(op)
	}
	d.journal.record(Op{Kind: OpSubmit, Name: e.name, Sync: sp})

	e.reset()
	return sp, nil
}

func (d *Device) Wait(sp gpu.SyncPoint, timeoutNs uint64) (bool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if sp == 0 {
		return true, nil
	}
	if sp > d.nextSync {
		return false, fmt.Errorf("wait on sync point %d that was never submitted", sp)
	}
	if d.manualCompletion && timeoutNs != gpu.WaitForever && sp > d.completed {
		return false, nil
	}
	d.retire(sp)
	d.journal.record(Op{Kind: OpWait, Sync: sp})
	return true, nil
}

// retire marks sp complete and drops resource tracking for every
// submission at or before it.
func (d *Device) retire(sp gpu.SyncPoint) {
	if sp > d.completed {
		d.completed = sp
	}
	for pending := range d.inFlight {
		if pending <= d.completed {
			delete(d.inFlight, pending)
		}
	}
}

func (d *Device) usedInFlightLocked(handle uint64) bool {
	for _, uses := range d.inFlight {
		if _, ok := uses[handle]; ok {
			return true
		}
	}
	return false
}

func (d *Device) AcquireFrame() (gpu.Frame, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.frames) == 0 {
		return gpu.Frame{}, fmt.Errorf("no surface configured")
	}
	frame := d.frames[d.frameCursor]
	d.frameCursor = (d.frameCursor + 1) % uint32(len(d.frames))
	d.journal.record(Op{Kind: OpAcquireFrame, Handle: uint64(frame.Texture)})
	return frame, nil
}

func (d *Device) Destroy() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.retire(d.nextSync)
	d.journal.record(Op{Kind: OpDrain})

	for _, report := range d.leakReportLocked() {
		core.LogWarn("sim device: leaked %s", report)
	}
}

// LeakReport lists every resource still alive, excluding the swapchain
// images the device itself owns.
func (d *Device) LeakReport() []string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.leakReportLocked()
}

func (d *Device) leakReportLocked() []string {
	owned := make(map[uint64]struct{}, 2*len(d.frames))
	for _, f := range d.frames {
		owned[uint64(f.Texture)] = struct{}{}
		owned[uint64(f.View)] = struct{}{}
	}

	var out []string
	appendLeak := func(handle uint64, res *resource) {
		if _, ok := owned[handle]; ok {
			return
		}
		out = append(out, fmt.Sprintf("%s %q (%s)", res.kind, res.name, res.id))
	}
	for h, res := range d.buffers {
		appendLeak(uint64(h), res)
	}
	for h, res := range d.textures {
		appendLeak(uint64(h), res)
	}
	for h, res := range d.views {
		appendLeak(uint64(h), &res.resource)
	}
	for h, res := range d.structures {
		appendLeak(uint64(h), &res.resource)
	}
	return out
}
