package vulkan

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/heliosrt/helios/engine/assets"
	"github.com/heliosrt/helios/engine/core"
	"github.com/heliosrt/helios/engine/gpu"
)

type vulkanShader struct {
	Module vk.ShaderModule
	Source *assets.ShaderSource
}

// Device implements the device contract on Vulkan. Ray-query support is
// reported absent because the bindings expose no acceleration-structure
// API, so every method on that surface returns an unsupported error and
// the renderer never proceeds past its capability check.
type Device struct {
	ctx    *Context
	fences *fenceRing

	nextHandle uint64
	buffers    map[gpu.Buffer]*vulkanBuffer
	images     map[gpu.Texture]*vulkanImage
	views      map[gpu.TextureView]*vulkanImageView
	shaders    map[gpu.Shader]*vulkanShader

	swapchain       vk.Swapchain
	swapchainFormat vk.Format
	frames          []gpu.Frame

	// acquired numbers swapchain acquisitions so each gets a ring fence.
	acquired gpu.SyncPoint
}

var _ gpu.Device = (*Device)(nil)

func New(appName string, window *glfw.Window) (*Device, error) {
	ctx, err := newContext(appName, window)
	if err != nil {
		return nil, err
	}
	return &Device{
		ctx:     ctx,
		fences:  newFenceRing(ctx),
		buffers: make(map[gpu.Buffer]*vulkanBuffer),
		images:  make(map[gpu.Texture]*vulkanImage),
		views:   make(map[gpu.TextureView]*vulkanImageView),
		shaders: make(map[gpu.Shader]*vulkanShader),
	}, nil
}

func (d *Device) Name() string {
	return vk.ToString(d.ctx.Properties.DeviceName[:])
}

func (d *Device) Capabilities() gpu.Capabilities {
	// goki/vulkan carries no VK_KHR_acceleration_structure bindings.
	return gpu.Capabilities{RayQuery: false}
}

func (d *Device) newID() uint64 {
	d.nextHandle++
	return d.nextHandle
}

func (d *Device) Resize(config gpu.SurfaceConfig) (gpu.Format, error) {
	var capabilities vk.SurfaceCapabilities
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(d.ctx.PhysicalDevice, d.ctx.Surface, &capabilities); res != vk.Success {
		return gpu.FormatUnknown, fmt.Errorf("failed to query surface capabilities: %d", res)
	}
	capabilities.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(d.ctx.PhysicalDevice, d.ctx.Surface, &formatCount, nil)
	if formatCount == 0 {
		return gpu.FormatUnknown, fmt.Errorf("surface reports no formats")
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(d.ctx.PhysicalDevice, d.ctx.Surface, &formatCount, formats)
	surfaceFormat := formats[0]
	surfaceFormat.Deref()
	for _, f := range formats {
		f.Deref()
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			surfaceFormat = f
			break
		}
	}

	oldSwapchain := d.swapchain
	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         d.ctx.Surface,
		MinImageCount:   config.FrameCount,
		ImageFormat:     surfaceFormat.Format,
		ImageColorSpace: surfaceFormat.ColorSpace,
		ImageExtent: vk.Extent2D{
			Width:  config.Size.Width,
			Height: config.Size.Height,
		},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     oldSwapchain,
	}
	var swapchain vk.Swapchain
	if res := vk.CreateSwapchain(d.ctx.LogicalDevice, &swapchainCreateInfo, d.ctx.Allocator, &swapchain); res != vk.Success {
		return gpu.FormatUnknown, fmt.Errorf("failed to create swapchain: %d", res)
	}
	if oldSwapchain != vk.NullSwapchain {
		d.destroySwapchainViews()
		vk.DestroySwapchain(d.ctx.LogicalDevice, oldSwapchain, d.ctx.Allocator)
	}
	d.swapchain = swapchain
	d.swapchainFormat = surfaceFormat.Format

	var imageCount uint32
	vk.GetSwapchainImages(d.ctx.LogicalDevice, swapchain, &imageCount, nil)
	swapchainImages := make([]vk.Image, imageCount)
	vk.GetSwapchainImages(d.ctx.LogicalDevice, swapchain, &imageCount, swapchainImages)

	d.frames = d.frames[:0]
	for i, handle := range swapchainImages {
		img := &vulkanImage{
			Handle: handle,
			Format: surfaceFormat.Format,
			Width:  config.Size.Width,
			Height: config.Size.Height,
		}
		view, err := newImageView(d.ctx, img, surfaceFormat.Format)
		if err != nil {
			return gpu.FormatUnknown, err
		}
		tex := gpu.Texture(d.newID())
		d.images[tex] = img
		viewHandle := gpu.TextureView(d.newID())
		d.views[viewHandle] = &vulkanImageView{Handle: view, Image: tex}
		d.frames = append(d.frames, gpu.Frame{Texture: tex, View: viewHandle, Index: uint32(i)})
	}

	core.LogInfo("swapchain: %d images at %dx%d", imageCount, config.Size.Width, config.Size.Height)
	if surfaceFormat.Format == vk.FormatB8g8r8a8Unorm {
		return gpu.FormatBGRA8Unorm, nil
	}
	return gpu.FormatRGBA8Unorm, nil
}

func (d *Device) destroySwapchainViews() {
	for _, frame := range d.frames {
		if view, ok := d.views[frame.View]; ok {
			vk.DestroyImageView(d.ctx.LogicalDevice, view.Handle, d.ctx.Allocator)
			delete(d.views, frame.View)
		}
		// Swapchain images are owned by the swapchain, not freed here.
		delete(d.images, frame.Texture)
	}
	d.frames = d.frames[:0]
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return gpu.InvalidID, fmt.Errorf("buffer %q has zero size", desc.Name)
	}
	buffer, err := newBuffer(d.ctx, desc)
	if err != nil {
		return gpu.InvalidID, err
	}
	handle := gpu.Buffer(d.newID())
	d.buffers[handle] = buffer
	return handle, nil
}

func (d *Device) WriteBuffer(b gpu.Buffer, offset uint64, data []byte) error {
	buffer, ok := d.buffers[b]
	if !ok {
		return fmt.Errorf("write to unknown buffer %d", b)
	}
	return buffer.write(d.ctx, offset, data)
}

func (d *Device) DestroyBuffer(b gpu.Buffer) {
	if b == gpu.InvalidID {
		return
	}
	if buffer, ok := d.buffers[b]; ok {
		buffer.destroy(d.ctx)
		delete(d.buffers, b)
	}
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return gpu.InvalidID, fmt.Errorf("texture %q has empty extent", desc.Name)
	}
	image, err := newImage(d.ctx, desc)
	if err != nil {
		return gpu.InvalidID, err
	}
	handle := gpu.Texture(d.newID())
	d.images[handle] = image
	return handle, nil
}

func (d *Device) DestroyTexture(t gpu.Texture) {
	if t == gpu.InvalidID {
		return
	}
	if image, ok := d.images[t]; ok {
		image.destroy(d.ctx)
		delete(d.images, t)
	}
}

func (d *Device) CreateTextureView(desc gpu.TextureViewDesc) (gpu.TextureView, error) {
	image, ok := d.images[desc.Texture]
	if !ok {
		return gpu.InvalidID, fmt.Errorf("view %q references unknown texture %d", desc.Name, desc.Texture)
	}
	format := toVkFormat(desc.Format)
	if format == vk.FormatUndefined {
		format = image.Format
	}
	view, err := newImageView(d.ctx, image, format)
	if err != nil {
		return gpu.InvalidID, err
	}
	handle := gpu.TextureView(d.newID())
	d.views[handle] = &vulkanImageView{Handle: view, Image: desc.Texture}
	return handle, nil
}

func (d *Device) DestroyTextureView(v gpu.TextureView) {
	if v == gpu.InvalidID {
		return
	}
	if view, ok := d.views[v]; ok {
		vk.DestroyImageView(d.ctx.LogicalDevice, view.Handle, d.ctx.Allocator)
		delete(d.views, v)
	}
}

// Acceleration-structure surface. None of it is expressible through
// these bindings; callers are gated by Capabilities first.

func (d *Device) BottomLevelSizes(meshes []gpu.Mesh) (gpu.StructureSizes, error) {
	return gpu.StructureSizes{}, fmt.Errorf("bottom-level size query: %w", core.ErrUnsupported)
}

func (d *Device) TopLevelSizes(instanceCount uint32) (gpu.StructureSizes, error) {
	return gpu.StructureSizes{}, fmt.Errorf("top-level size query: %w", core.ErrUnsupported)
}

func (d *Device) CreateAccelerationStructure(desc gpu.AccelerationStructureDesc) (gpu.AccelerationStructure, error) {
	return gpu.InvalidID, fmt.Errorf("acceleration structure %q: %w", desc.Name, core.ErrUnsupported)
}

func (d *Device) DestroyAccelerationStructure(s gpu.AccelerationStructure) {}

func (d *Device) CreateInstanceBuffer(instances []gpu.Instance) (gpu.Buffer, error) {
	return gpu.InvalidID, fmt.Errorf("instance buffer: %w", core.ErrUnsupported)
}

func (d *Device) CreateShader(desc gpu.ShaderDesc) (gpu.Shader, error) {
	src, err := assets.ScanShader(desc.Name, desc.Source)
	if err != nil {
		return gpu.InvalidID, err
	}
	words, err := assets.CompileToSPIRV(desc.Source)
	if err != nil {
		return gpu.InvalidID, err
	}

	moduleCreateInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(words) * 4),
		PCode:    words,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(d.ctx.LogicalDevice, &moduleCreateInfo, d.ctx.Allocator, &module); res != vk.Success {
		return gpu.InvalidID, fmt.Errorf("failed to create shader module %q: %d", desc.Name, res)
	}

	handle := gpu.Shader(d.newID())
	d.shaders[handle] = &vulkanShader{Module: module, Source: src}
	return handle, nil
}

func (d *Device) DestroyShader(s gpu.Shader) {
	if shader, ok := d.shaders[s]; ok {
		vk.DestroyShaderModule(d.ctx.LogicalDevice, shader.Module, d.ctx.Allocator)
		delete(d.shaders, s)
	}
}

// Every pipeline in this renderer binds the top-level structure, so
// pipeline and encoder creation sit behind the same unsupported gate as
// the structures themselves.

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDesc) (gpu.ComputePipeline, error) {
	return gpu.InvalidID, fmt.Errorf("compute pipeline %q: %w", desc.Name, core.ErrUnsupported)
}

func (d *Device) DestroyComputePipeline(p gpu.ComputePipeline) {}

func (d *Device) CreateRenderPipeline(desc gpu.RenderPipelineDesc) (gpu.RenderPipeline, error) {
	return gpu.InvalidID, fmt.Errorf("render pipeline %q: %w", desc.Name, core.ErrUnsupported)
}

func (d *Device) DestroyRenderPipeline(p gpu.RenderPipeline) {}

func (d *Device) WorkgroupSize(p gpu.ComputePipeline) [3]uint32 {
	return [3]uint32{1, 1, 1}
}

func (d *Device) CreateCommandEncoder(desc gpu.CommandEncoderDesc) (gpu.CommandEncoder, error) {
	return nil, fmt.Errorf("command encoder %q: %w", desc.Name, core.ErrUnsupported)
}

func (d *Device) Submit(enc gpu.CommandEncoder) (gpu.SyncPoint, error) {
	return 0, fmt.Errorf("submit: %w", core.ErrUnsupported)
}

func (d *Device) Wait(sp gpu.SyncPoint, timeoutNs uint64) (bool, error) {
	if sp == 0 {
		return true, nil
	}
	return d.fences.wait(sp, timeoutNs)
}

func (d *Device) AcquireFrame() (gpu.Frame, error) {
	if len(d.frames) == 0 {
		return gpu.Frame{}, fmt.Errorf("no surface configured")
	}
	d.acquired++
	f, err := d.fences.acquire(d.acquired)
	if err != nil {
		return gpu.Frame{}, err
	}
	var imageIndex uint32
	res := vk.AcquireNextImage(d.ctx.LogicalDevice, d.swapchain, gpu.WaitForever,
		vk.NullSemaphore, f.Handle, &imageIndex)
	if res != vk.Success && res != vk.Suboptimal {
		return gpu.Frame{}, fmt.Errorf("failed to acquire swapchain image: %d", res)
	}
	// The fence signals once the presentation engine releases the image;
	// block here so the caller may record against it right away.
	if _, err := d.fences.wait(d.acquired, gpu.WaitForever); err != nil {
		return gpu.Frame{}, err
	}
	return d.frames[imageIndex], nil
}

func (d *Device) Destroy() {
	vk.DeviceWaitIdle(d.ctx.LogicalDevice)
	d.fences.destroy()

	for handle, shader := range d.shaders {
		vk.DestroyShaderModule(d.ctx.LogicalDevice, shader.Module, d.ctx.Allocator)
		delete(d.shaders, handle)
	}
	d.destroySwapchainViews()
	if d.swapchain != vk.NullSwapchain {
		vk.DestroySwapchain(d.ctx.LogicalDevice, d.swapchain, d.ctx.Allocator)
		d.swapchain = vk.NullSwapchain
	}
	for handle, view := range d.views {
		vk.DestroyImageView(d.ctx.LogicalDevice, view.Handle, d.ctx.Allocator)
		delete(d.views, handle)
	}
	for handle, image := range d.images {
		image.destroy(d.ctx)
		delete(d.images, handle)
	}
	for handle, buffer := range d.buffers {
		buffer.destroy(d.ctx)
		delete(d.buffers, handle)
	}
	d.ctx.destroy()
}
