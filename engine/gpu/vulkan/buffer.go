package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/heliosrt/helios/engine/gpu"
)

type vulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	Shared bool
}

func newBuffer(ctx *Context, desc gpu.BufferDesc) (*vulkanBuffer, error) {
	usage := vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit) |
		vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit) |
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) |
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if res := vk.CreateBuffer(ctx.LogicalDevice, &bufferCreateInfo, ctx.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("failed to create buffer %q: %d", desc.Name, res)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(ctx.LogicalDevice, handle, &requirements)
	requirements.Deref()

	properties := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	shared := desc.Memory == gpu.MemoryShared
	if shared {
		properties = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) |
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	}
	memoryIndex, err := ctx.FindMemoryIndex(requirements.MemoryTypeBits, properties)
	if err != nil {
		vk.DestroyBuffer(ctx.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("buffer %q: %w", desc.Name, err)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.LogicalDevice, &allocateInfo, ctx.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(ctx.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("failed to allocate %d bytes for buffer %q: %d", desc.Size, desc.Name, res)
	}
	if res := vk.BindBufferMemory(ctx.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(ctx.LogicalDevice, memory, ctx.Allocator)
		vk.DestroyBuffer(ctx.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("failed to bind memory for buffer %q: %d", desc.Name, res)
	}

	return &vulkanBuffer{Handle: handle, Memory: memory, Size: desc.Size, Shared: shared}, nil
}

// write maps the buffer and copies data at offset. Only host-visible
// buffers are writable this way.
func (b *vulkanBuffer) write(ctx *Context, offset uint64, data []byte) error {
	if !b.Shared {
		return fmt.Errorf("write to device-local buffer")
	}
	if offset+uint64(len(data)) > b.Size {
		return fmt.Errorf("write of %d bytes at %d exceeds buffer size %d", len(data), offset, b.Size)
	}

	var mapped unsafe.Pointer
	if res := vk.MapMemory(ctx.LogicalDevice, b.Memory, vk.DeviceSize(offset),
		vk.DeviceSize(len(data)), 0, &mapped); res != vk.Success {
		return fmt.Errorf("failed to map buffer memory: %d", res)
	}
	vk.Memcopy(mapped, data)
	vk.UnmapMemory(ctx.LogicalDevice, b.Memory)
	return nil
}

func (b *vulkanBuffer) destroy(ctx *Context) {
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(ctx.LogicalDevice, b.Handle, ctx.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(ctx.LogicalDevice, b.Memory, ctx.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}
