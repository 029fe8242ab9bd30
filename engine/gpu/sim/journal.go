package sim

import (
	"sync"

	"github.com/heliosrt/helios/engine/gpu"
)

// OpKind tags one journal entry.
type OpKind int

const (
	OpCreateBuffer OpKind = iota
	OpWriteBuffer
	OpDestroyBuffer
	OpCreateTexture
	OpDestroyTexture
	OpCreateTextureView
	OpDestroyTextureView
	OpCreateStructure
	OpDestroyStructure
	OpCreateInstanceBuffer
	OpBuildBottomLevel
	OpBuildTopLevel
	OpDispatch
	OpDraw
	OpAcquireFrame
	OpPresent
	OpSubmit
	OpWait
	OpDrain
)

func (k OpKind) String() string {
	switch k {
	case OpCreateBuffer:
		return "create_buffer"
	case OpWriteBuffer:
		return "write_buffer"
	case OpDestroyBuffer:
		return "destroy_buffer"
	case OpCreateTexture:
		return "create_texture"
	case OpDestroyTexture:
		return "destroy_texture"
	case OpCreateTextureView:
		return "create_texture_view"
	case OpDestroyTextureView:
		return "destroy_texture_view"
	case OpCreateStructure:
		return "create_structure"
	case OpDestroyStructure:
		return "destroy_structure"
	case OpCreateInstanceBuffer:
		return "create_instance_buffer"
	case OpBuildBottomLevel:
		return "build_bottom_level"
	case OpBuildTopLevel:
		return "build_top_level"
	case OpDispatch:
		return "dispatch"
	case OpDraw:
		return "draw"
	case OpAcquireFrame:
		return "acquire_frame"
	case OpPresent:
		return "present"
	case OpSubmit:
		return "submit"
	case OpWait:
		return "wait"
	case OpDrain:
		return "drain"
	}
	return "unknown"
}

// Op is one recorded device operation. Pass-scoped commands (builds,
// dispatches, draws) reach the journal when their encoder is submitted,
// in recording order, tagged with the submission's sync point and the
// index of the pass they were recorded in.
type Op struct {
	Kind   OpKind
	Name   string
	Handle uint64

	// Pass is the ordinal of the pass within the submission, counting
	// every opened pass. Zero for ops recorded outside a pass.
	Pass int
	// Submission is the sync point of the submit that carried this op.
	// Zero for immediate (non-encoded) operations.
	Submission gpu.SyncPoint

	// Build ops: the scratch region the build writes.
	ScratchStart uint64
	ScratchEnd   uint64

	// Dispatch ops.
	Groups [3]uint32
	// Draw ops.
	VertexCount   uint32
	InstanceCount uint32

	// Wait ops: the sync point waited on.
	Sync gpu.SyncPoint
}

// journal is the append-only op log tests inspect.
type journal struct {
	mutex sync.Mutex
	ops   []Op
}

func (j *journal) record(op Op) {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.ops = append(j.ops, op)
}

func (j *journal) snapshot() []Op {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	out := make([]Op, len(j.ops))
	copy(out, j.ops)
	return out
}

// Ops returns a copy of the journal in recording order.
func (d *Device) Ops() []Op {
	return d.journal.snapshot()
}

// OpsOfKind filters the journal to one kind, preserving order.
func (d *Device) OpsOfKind(kind OpKind) []Op {
	var out []Op
	for _, op := range d.journal.snapshot() {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}
