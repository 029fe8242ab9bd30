package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/heliosrt/helios/engine/gpu"
)

type vulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	Format vk.Format
	Width  uint32
	Height uint32
}

type vulkanImageView struct {
	Handle vk.ImageView
	Image  gpu.Texture
}

func toVkFormat(format gpu.Format) vk.Format {
	switch format {
	case gpu.FormatRGBA16Float:
		return vk.FormatR16g16b16a16Sfloat
	case gpu.FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case gpu.FormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm
	}
	return vk.FormatUndefined
}

func toVkUsage(usage gpu.TextureUsage) vk.ImageUsageFlags {
	var out vk.ImageUsageFlags
	if usage&gpu.TextureUsageResource != 0 {
		out |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	}
	if usage&gpu.TextureUsageStorage != 0 {
		out |= vk.ImageUsageFlags(vk.ImageUsageStorageBit)
	}
	if usage&gpu.TextureUsageTarget != 0 {
		out |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	return out
}

func newImage(ctx *Context, desc gpu.TextureDesc) (*vulkanImage, error) {
	format := toVkFormat(desc.Format)
	if format == vk.FormatUndefined {
		return nil, fmt.Errorf("texture %q has unsupported format", desc.Name)
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         toVkUsage(desc.Usage),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	var handle vk.Image
	if res := vk.CreateImage(ctx.LogicalDevice, &imageCreateInfo, ctx.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("failed to create image %q: %d", desc.Name, res)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(ctx.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex, err := ctx.FindMemoryIndex(requirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		vk.DestroyImage(ctx.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("image %q: %w", desc.Name, err)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: memoryIndex,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(ctx.LogicalDevice, &allocateInfo, ctx.Allocator, &memory); res != vk.Success {
		vk.DestroyImage(ctx.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("failed to allocate memory for image %q: %d", desc.Name, res)
	}
	if res := vk.BindImageMemory(ctx.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(ctx.LogicalDevice, memory, ctx.Allocator)
		vk.DestroyImage(ctx.LogicalDevice, handle, ctx.Allocator)
		return nil, fmt.Errorf("failed to bind memory for image %q: %d", desc.Name, res)
	}

	return &vulkanImage{
		Handle: handle,
		Memory: memory,
		Format: format,
		Width:  desc.Width,
		Height: desc.Height,
	}, nil
}

func newImageView(ctx *Context, image *vulkanImage, format vk.Format) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(ctx.LogicalDevice, &viewCreateInfo, ctx.Allocator, &view); res != vk.Success {
		return vk.NullImageView, fmt.Errorf("failed to create image view: %d", res)
	}
	return view, nil
}

func (img *vulkanImage) destroy(ctx *Context) {
	if img.Handle != vk.NullImage {
		vk.DestroyImage(ctx.LogicalDevice, img.Handle, ctx.Allocator)
		img.Handle = vk.NullImage
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(ctx.LogicalDevice, img.Memory, ctx.Allocator)
		img.Memory = vk.NullDeviceMemory
	}
}
