package sim

import (
	"github.com/heliosrt/helios/engine/gpu"
)

// commandEncoder buffers recorded ops until Submit flushes them into the
// journal under a fresh sync point.
type commandEncoder struct {
	device *Device
	name   string

	begun      bool
	activePass bool
	passCount  int
	pending    []Op
	uses       map[uint64]struct{}
}

var _ gpu.CommandEncoder = (*commandEncoder)(nil)

func (e *commandEncoder) reset() {
	e.begun = false
	e.activePass = false
	e.passCount = 0
	e.pending = nil
	e.uses = nil
}

func (e *commandEncoder) Begin() {
	if e.begun {
		e.device.violate("encoder %q restarted while a recording is open", e.name)
	}
	e.begun = true
	e.activePass = false
	e.passCount = 0
	e.pending = e.pending[:0]
	e.uses = make(map[uint64]struct{})
}

func (e *commandEncoder) use(handle uint64) {
	if e.uses != nil {
		e.uses[handle] = struct{}{}
	}
}

func (e *commandEncoder) record(op Op) {
	if !e.begun {
		e.device.violate("encoder %q recorded %s outside Begin/Submit", e.name, op.Kind)
		return
	}
	e.pending = append(e.pending, op)
}

func (e *commandEncoder) InitTexture(t gpu.Texture) {
	e.device.mutex.Lock()
	_, ok := e.device.textures[t]
	e.device.mutex.Unlock()
	if !ok {
		e.device.violate("encoder %q init of unknown texture %d", e.name, t)
		return
	}
	e.use(uint64(t))
}

func (e *commandEncoder) Compute() gpu.ComputePass {
	if !e.begun {
		e.device.violate("encoder %q opened a compute pass outside Begin/Submit", e.name)
	}
	if e.activePass {
		e.device.violate("encoder %q opened a compute pass inside another pass", e.name)
	}
	e.activePass = true
	e.passCount++
	return &computePass{encoder: e, index: e.passCount}
}

func (e *commandEncoder) Render(targets gpu.RenderTargetSet) gpu.RenderPass {
	if !e.begun {
		e.device.violate("encoder %q opened a render pass outside Begin/Submit", e.name)
	}
	if e.activePass {
		e.device.violate("encoder %q opened a render pass inside another pass", e.name)
	}
	e.activePass = true
	e.passCount++

	e.device.mutex.Lock()
	for _, target := range targets.Colors {
		view, ok := e.device.views[target.View]
		if !ok {
			e.device.violateLocked("render pass targets unknown view %d", target.View)
			continue
		}
		e.use(uint64(target.View))
		e.use(uint64(view.texture))
	}
	e.device.mutex.Unlock()

	return &renderPass{encoder: e, index: e.passCount}
}

func (e *commandEncoder) Present(frame gpu.Frame) {
	e.use(uint64(frame.Texture))
	e.use(uint64(frame.View))
	e.record(Op{Kind: OpPresent, Pass: 0, Handle: uint64(frame.Texture)})
}

// computePass implements gpu.ComputePass.
type computePass struct {
	encoder *commandEncoder
	index   int
	ended   bool

	// sawBottomBuild guards the bug class the build protocol exists to
	// prevent: a top-level build recorded in the same pass as the
	// bottom-level build it depends on has no ordering between them.
	sawBottomBuild bool
}

var _ gpu.ComputePass = (*computePass)(nil)

func (p *computePass) BuildBottomLevel(blas gpu.AccelerationStructure, meshes []gpu.Mesh, scratch gpu.BufferRange) {
	d := p.encoder.device
	sizes, err := d.BottomLevelSizes(meshes)
	if err != nil {
		d.violate("bottom-level build with invalid meshes: %s", err)
		return
	}

	d.mutex.Lock()
	res, ok := d.structures[blas]
	if ok {
		res.built = true
	}
	d.mutex.Unlock()
	if !ok {
		d.violate("bottom-level build of unknown structure %d", blas)
		return
	}

	p.encoder.use(uint64(blas))
	p.encoder.use(uint64(scratch.Buffer))
	for _, m := range meshes {
		p.encoder.use(uint64(m.VertexData.Buffer))
		if m.IndexType != gpu.IndexTypeNone {
			p.encoder.use(uint64(m.IndexData.Buffer))
		}
	}
	p.encoder.record(Op{
		Kind:         OpBuildBottomLevel,
		Name:         res.name,
		Handle:       uint64(blas),
		Pass:         p.index,
		ScratchStart: scratch.Offset,
		ScratchEnd:   scratch.Offset + sizes.Scratch,
	})
	p.sawBottomBuild = true
}

func (p *computePass) BuildTopLevel(tlas gpu.AccelerationStructure, instanceCount uint32, instances gpu.BufferRange, scratch gpu.BufferRange) {
	d := p.encoder.device
	if p.sawBottomBuild {
		d.violate("top-level build recorded in the same pass as a bottom-level build")
	}
	sizes, err := d.TopLevelSizes(instanceCount)
	if err != nil {
		d.violate("top-level build with invalid instance count: %s", err)
		return
	}

	d.mutex.Lock()
	res, ok := d.structures[tlas]
	if ok {
		res.built = true
	}
	d.mutex.Unlock()
	if !ok {
		d.violate("top-level build of unknown structure %d", tlas)
		return
	}

	p.encoder.use(uint64(tlas))
	p.encoder.use(uint64(instances.Buffer))
	p.encoder.use(uint64(scratch.Buffer))
	p.encoder.record(Op{
		Kind:         OpBuildTopLevel,
		Name:         res.name,
		Handle:       uint64(tlas),
		Pass:         p.index,
		ScratchStart: scratch.Offset,
		ScratchEnd:   scratch.Offset + sizes.Scratch,
	})
}

func (p *computePass) With(pl gpu.ComputePipeline) gpu.ComputeCommands {
	d := p.encoder.device
	d.mutex.Lock()
	pipe, ok := d.computePLs[pl]
	d.mutex.Unlock()
	if !ok {
		d.violate("compute pass selected unknown pipeline %d", pl)
		return &computeCommands{pass: p}
	}
	return &computeCommands{pass: p, pipeline: pipe}
}

func (p *computePass) End() {
	if p.ended {
		p.encoder.device.violate("compute pass ended twice")
	}
	p.ended = true
	p.encoder.activePass = false
}

type computeCommands struct {
	pass     *computePass
	pipeline *computePipeline
}

var _ gpu.ComputeCommands = (*computeCommands)(nil)

func (c *computeCommands) Bind(group uint32, values []gpu.BindingValue) {
	if c.pipeline == nil {
		return
	}
	d := c.pass.encoder.device
	if group != c.pipeline.desc.Group {
		d.violate("pipeline %q bound at group %d, declared at %d",
			c.pipeline.desc.Name, group, c.pipeline.desc.Group)
		return
	}
	if err := gpu.ValidateBindings(c.pipeline.desc.Layout, values); err != nil {
		d.violate("pipeline %q: %s", c.pipeline.desc.Name, err)
		return
	}
	for _, v := range values {
		if v.Structure != gpu.InvalidID {
			c.pass.encoder.use(uint64(v.Structure))
		}
		if v.View != gpu.InvalidID {
			c.pass.encoder.use(uint64(v.View))
		}
	}
}

func (c *computeCommands) Dispatch(groups [3]uint32) {
	if c.pipeline == nil {
		return
	}
	c.pass.encoder.record(Op{
		Kind:   OpDispatch,
		Name:   c.pipeline.desc.Name,
		Pass:   c.pass.index,
		Groups: groups,
	})
}

// renderPass implements gpu.RenderPass.
type renderPass struct {
	encoder *commandEncoder
	index   int
	ended   bool
}

var _ gpu.RenderPass = (*renderPass)(nil)

func (p *renderPass) With(pl gpu.RenderPipeline) gpu.RenderCommands {
	d := p.encoder.device
	d.mutex.Lock()
	pipe, ok := d.renderPLs[pl]
	d.mutex.Unlock()
	if !ok {
		d.violate("render pass selected unknown pipeline %d", pl)
		return &renderCommands{pass: p}
	}
	return &renderCommands{pass: p, pipeline: pipe}
}

func (p *renderPass) End() {
	if p.ended {
		p.encoder.device.violate("render pass ended twice")
	}
	p.ended = true
	p.encoder.activePass = false
}

type renderCommands struct {
	pass     *renderPass
	pipeline *renderPipeline
}

var _ gpu.RenderCommands = (*renderCommands)(nil)

func (c *renderCommands) Bind(group uint32, values []gpu.BindingValue) {
	if c.pipeline == nil {
		return
	}
	d := c.pass.encoder.device
	if group != c.pipeline.desc.Group {
		d.violate("pipeline %q bound at group %d, declared at %d",
			c.pipeline.desc.Name, group, c.pipeline.desc.Group)
		return
	}
	if err := gpu.ValidateBindings(c.pipeline.desc.Layout, values); err != nil {
		d.violate("pipeline %q: %s", c.pipeline.desc.Name, err)
		return
	}
	for _, v := range values {
		if v.View != gpu.InvalidID {
			c.pass.encoder.use(uint64(v.View))
		}
	}
}

func (c *renderCommands) Draw(firstVertex, vertexCount, firstInstance, instanceCount uint32) {
	if c.pipeline == nil {
		return
	}
	c.pass.encoder.record(Op{
		Kind:          OpDraw,
		Name:          c.pipeline.desc.Name,
		Pass:          c.pass.index,
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
	})
}
