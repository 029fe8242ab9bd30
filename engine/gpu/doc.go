// Package gpu declares the device contract the renderer is written
// against.
//
// The renderer core never talks to a graphics API directly. It records
// work through the Device, CommandEncoder and pass interfaces defined
// here, using opaque uint64-backed handles for every GPU resource. Each
// backend (engine/gpu/sim, engine/gpu/vulkan) maintains its own mapping
// between handles and real resources.
//
// Submission returns a SyncPoint, an opaque marker that completes once
// every command submitted before it has finished executing on the GPU.
// Waiting on a SyncPoint is the only ordering primitive the contract
// offers to the CPU side; ordering between passes inside one submission
// is the backend's responsibility.
package gpu
