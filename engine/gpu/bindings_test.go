package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func traceLayout() BindGroupLayout {
	return BindGroupLayout{Bindings: []Binding{
		{Name: "parameters", Kind: BindingUniform, Index: 0},
		{Name: "acc_struct", Kind: BindingAccelerationStructure, Index: 1},
		{Name: "output", Kind: BindingStorageTexture, Index: 2},
	}}
}

func TestValidateBindingsAccepts(t *testing.T) {
	err := ValidateBindings(traceLayout(), []BindingValue{
		{Index: 0, Uniform: make([]byte, 48)},
		{Index: 1, Structure: AccelerationStructure(7)},
		{Index: 2, View: TextureView(3)},
	})
	assert.NoError(t, err)
}

func TestValidateBindingsRejectsCountMismatch(t *testing.T) {
	err := ValidateBindings(traceLayout(), []BindingValue{
		{Index: 0, Uniform: make([]byte, 48)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 3 bindings")
}

func TestValidateBindingsRejectsWrongSlot(t *testing.T) {
	err := ValidateBindings(traceLayout(), []BindingValue{
		{Index: 0, Uniform: make([]byte, 48)},
		{Index: 1, Structure: AccelerationStructure(7)},
		{Index: 5, View: TextureView(3)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no binding declared at index 5")
}

func TestValidateBindingsRejectsWrongKind(t *testing.T) {
	// A texture view where the layout expects the acceleration structure.
	err := ValidateBindings(traceLayout(), []BindingValue{
		{Index: 0, Uniform: make([]byte, 48)},
		{Index: 1, View: TextureView(9)},
		{Index: 2, View: TextureView(3)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acceleration_structure")
}

func TestValidateBindingsRejectsEmptyValue(t *testing.T) {
	err := ValidateBindings(traceLayout(), []BindingValue{
		{Index: 0, Uniform: make([]byte, 48)},
		{Index: 1, Structure: AccelerationStructure(7)},
		{Index: 2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no value")
}
