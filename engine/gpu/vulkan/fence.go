package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/heliosrt/helios/engine/gpu"
)

type fence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func newFence(ctx *Context, createSignaled bool) (*fence, error) {
	f := &fence{IsSignaled: createSignaled}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if f.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if res := vk.CreateFence(ctx.LogicalDevice, &fenceCreateInfo, ctx.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("failed to create fence: %d", res)
	}
	f.Handle = handle
	return f, nil
}

// wait blocks up to timeoutNs. It returns false on timeout; callers
// retry before touching anything the fence gates.
func (f *fence) wait(ctx *Context, timeoutNs uint64) (bool, error) {
	if f.IsSignaled {
		return true, nil
	}
	result := vk.WaitForFences(ctx.LogicalDevice, 1, []vk.Fence{f.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		f.IsSignaled = true
		return true, nil
	case vk.Timeout:
		return false, nil
	default:
		return false, fmt.Errorf("fence wait failed: %d", result)
	}
}

func (f *fence) reset(ctx *Context) error {
	if !f.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(ctx.LogicalDevice, 1, []vk.Fence{f.Handle}); res != vk.Success {
		return fmt.Errorf("failed to reset fence: %d", res)
	}
	f.IsSignaled = false
	return nil
}

func (f *fence) destroy(ctx *Context) {
	if f.Handle != vk.NullFence {
		vk.DestroyFence(ctx.LogicalDevice, f.Handle, ctx.Allocator)
		f.Handle = vk.NullFence
	}
	f.IsSignaled = false
}

// fenceRing maps the contract's monotonic sync points onto a reusable
// set of fences. Submission N's fence may be recycled once a later wait
// has retired N.
type fenceRing struct {
	ctx     *Context
	pending map[gpu.SyncPoint]*fence
	free    []*fence
	retired gpu.SyncPoint
}

func newFenceRing(ctx *Context) *fenceRing {
	return &fenceRing{ctx: ctx, pending: make(map[gpu.SyncPoint]*fence)}
}

func (r *fenceRing) acquire(sp gpu.SyncPoint) (*fence, error) {
	if n := len(r.free); n > 0 {
		f := r.free[n-1]
		r.free = r.free[:n-1]
		if err := f.reset(r.ctx); err != nil {
			return nil, err
		}
		r.pending[sp] = f
		return f, nil
	}
	f, err := newFence(r.ctx, false)
	if err != nil {
		return nil, err
	}
	r.pending[sp] = f
	return f, nil
}

func (r *fenceRing) wait(sp gpu.SyncPoint, timeoutNs uint64) (bool, error) {
	if sp <= r.retired {
		return true, nil
	}
	f, ok := r.pending[sp]
	if !ok {
		return false, fmt.Errorf("wait on sync point %d that was never submitted", sp)
	}
	done, err := f.wait(r.ctx, timeoutNs)
	if err != nil || !done {
		return done, err
	}
	// Everything submitted before sp completed with it; the queue is FIFO.
	for pendingSP, pendingFence := range r.pending {
		if pendingSP <= sp {
			delete(r.pending, pendingSP)
			r.free = append(r.free, pendingFence)
		}
	}
	if sp > r.retired {
		r.retired = sp
	}
	return true, nil
}

func (r *fenceRing) destroy() {
	for _, f := range r.pending {
		f.destroy(r.ctx)
	}
	for _, f := range r.free {
		f.destroy(r.ctx)
	}
	r.pending = nil
	r.free = nil
}
