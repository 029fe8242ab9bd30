// Package vulkan backs the device contract with the Vulkan API. The
// bindings in use expose no acceleration-structure entry points, so the
// backend reports the ray-query capability as absent and the renderer
// refuses to start on it; buffers, images, shaders and submission are
// fully functional for tooling that runs ahead of that gap.
package vulkan

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/heliosrt/helios/engine/core"
)

type Context struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device

	GraphicsQueueIndex uint32
	GraphicsQueue      vk.Queue
	CommandPool        vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties
}

func newContext(appName string, window *glfw.Window) (*Context, error) {
	ctx := &Context{}

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize vulkan: %w", err)
	}

	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   safeString(appName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        safeString("Helios"),
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion12,
	}

	extensions := window.GetRequiredInstanceExtensions()
	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, ctx.Allocator, &instance); res != vk.Success {
		return nil, fmt.Errorf("failed to create vulkan instance: %d", res)
	}
	ctx.Instance = instance
	vk.InitInstance(instance)

	surfaceRaw, err := window.CreateWindowSurface(instance, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create window surface: %w", err)
	}
	ctx.Surface = vk.SurfaceFromPointer(surfaceRaw)

	if err := ctx.selectPhysicalDevice(); err != nil {
		return nil, err
	}
	if err := ctx.createLogicalDevice(); err != nil {
		return nil, err
	}
	if err := ctx.createCommandPool(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (ctx *Context) selectPhysicalDevice() error {
	var deviceCount uint32
	if res := vk.EnumeratePhysicalDevices(ctx.Instance, &deviceCount, nil); res != vk.Success || deviceCount == 0 {
		return fmt.Errorf("no vulkan capable devices found")
	}
	devices := make([]vk.PhysicalDevice, deviceCount)
	vk.EnumeratePhysicalDevices(ctx.Instance, &deviceCount, devices)

	for _, device := range devices {
		queueIndex, ok := graphicsQueueFamily(device, ctx.Surface)
		if !ok {
			continue
		}
		ctx.PhysicalDevice = device
		ctx.GraphicsQueueIndex = queueIndex

		vk.GetPhysicalDeviceProperties(device, &ctx.Properties)
		ctx.Properties.Deref()
		vk.GetPhysicalDeviceMemoryProperties(device, &ctx.Memory)
		ctx.Memory.Deref()

		core.LogInfo("selected device: %s", vk.ToString(ctx.Properties.DeviceName[:]))
		return nil
	}
	return fmt.Errorf("no device with a graphics+present queue found")
}

// graphicsQueueFamily finds a queue family able to do graphics, compute
// and presentation; the renderer records both pass kinds on one queue.
func graphicsQueueFamily(device vk.PhysicalDevice, surface vk.Surface) (uint32, bool) {
	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
	families := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, families)

	for i, family := range families {
		family.Deref()
		required := vk.QueueFlags(vk.QueueGraphicsBit) | vk.QueueFlags(vk.QueueComputeBit)
		if family.QueueFlags&required != required {
			continue
		}
		var presentSupport vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &presentSupport)
		if presentSupport == vk.True {
			return uint32(i), true
		}
	}
	return 0, false
}

func (ctx *Context) createLogicalDevice() error {
	queuePriority := []float32{1.0}
	queueCreateInfo := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: ctx.GraphicsQueueIndex,
		QueueCount:       1,
		PQueuePriorities: queuePriority,
	}}

	extensions := []string{safeString(vk.KhrSwapchainExtensionName)}
	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       queueCreateInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	var device vk.Device
	if res := vk.CreateDevice(ctx.PhysicalDevice, &deviceCreateInfo, ctx.Allocator, &device); res != vk.Success {
		return fmt.Errorf("failed to create logical device: %d", res)
	}
	ctx.LogicalDevice = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, ctx.GraphicsQueueIndex, 0, &queue)
	ctx.GraphicsQueue = queue
	return nil
}

func (ctx *Context) createCommandPool() error {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: ctx.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(ctx.LogicalDevice, &poolCreateInfo, ctx.Allocator, &pool); res != vk.Success {
		return fmt.Errorf("failed to create command pool: %d", res)
	}
	ctx.CommandPool = pool
	return nil
}

// FindMemoryIndex locates a memory type matching typeFilter with all of
// propertyFlags set.
func (ctx *Context) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < ctx.Memory.MemoryTypeCount; i++ {
		ctx.Memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && ctx.Memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type matches filter %#x with flags %#x", typeFilter, propertyFlags)
}

func (ctx *Context) destroy() {
	if ctx.CommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(ctx.LogicalDevice, ctx.CommandPool, ctx.Allocator)
	}
	if ctx.LogicalDevice != nil {
		vk.DestroyDevice(ctx.LogicalDevice, ctx.Allocator)
	}
	if ctx.Surface != vk.NullSurface {
		vk.DestroySurface(ctx.Instance, ctx.Surface, ctx.Allocator)
	}
	if ctx.Instance != nil {
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
	}
}

// safeString null-terminates a Go string for the C side.
func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}
