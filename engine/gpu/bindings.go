package gpu

import "fmt"

// BindingKind is the resource class a shader binding slot expects.
type BindingKind int

const (
	BindingUniform BindingKind = iota
	BindingAccelerationStructure
	BindingStorageTexture
	BindingSampledTexture
)

func (k BindingKind) String() string {
	switch k {
	case BindingUniform:
		return "uniform"
	case BindingAccelerationStructure:
		return "acceleration_structure"
	case BindingStorageTexture:
		return "storage_texture"
	case BindingSampledTexture:
		return "sampled_texture"
	}
	return "unknown"
}

// Binding declares one slot of a bind group layout. Indices are fixed at
// layout construction and must match the shader's expected slots exactly;
// a mismatch is a setup-time contract violation surfaced at pipeline
// creation, never a per-frame condition.
type Binding struct {
	Name  string
	Kind  BindingKind
	Index uint32
}

// BindGroupLayout is a fixed set of binding slots consumed by one
// pipeline stage.
type BindGroupLayout struct {
	Bindings []Binding
}

// Slot returns the declared binding at the given index.
func (l BindGroupLayout) Slot(index uint32) (Binding, bool) {
	for _, b := range l.Bindings {
		if b.Index == index {
			return b, true
		}
	}
	return Binding{}, false
}

// BindingValue supplies a resource for one slot at bind time. Exactly one
// of the payload fields is set, matching the slot's declared kind.
type BindingValue struct {
	Index     uint32
	Uniform   []byte
	Structure AccelerationStructure
	View      TextureView
}

// ValidateBindings checks a set of bind-time values against a layout.
// Backends call this before recording a bind; a failure here means the
// pipeline setup and the bind call disagree, which is a programming
// error, not a runtime condition.
func ValidateBindings(layout BindGroupLayout, values []BindingValue) error {
	if len(values) != len(layout.Bindings) {
		return fmt.Errorf("bind group expects %d bindings, got %d",
			len(layout.Bindings), len(values))
	}
	for _, v := range values {
		slot, ok := layout.Slot(v.Index)
		if !ok {
			return fmt.Errorf("no binding declared at index %d", v.Index)
		}
		var kind BindingKind
		switch {
		case v.Uniform != nil:
			kind = BindingUniform
		case v.Structure != InvalidID:
			kind = BindingAccelerationStructure
		case v.View != InvalidID:
			if slot.Kind != BindingStorageTexture && slot.Kind != BindingSampledTexture {
				return fmt.Errorf("binding %q (index %d) expects %s, got a texture view",
					slot.Name, v.Index, slot.Kind)
			}
			kind = slot.Kind // views serve both storage and sampled slots
		default:
			return fmt.Errorf("binding %q (index %d) has no value", slot.Name, v.Index)
		}
		if kind != slot.Kind {
			return fmt.Errorf("binding %q (index %d) expects %s, got %s",
				slot.Name, v.Index, slot.Kind, kind)
		}
	}
	return nil
}
