package core

import (
	"errors"
	"fmt"
)

var (
	// ErrCapability means a required GPU feature is absent. Fatal at
	// startup; nothing is recovered.
	ErrCapability = errors.New("required device capability absent")
	// ErrSizing means the device reported a zero or otherwise invalid
	// size for an acceleration structure. Fatal; construction aborts.
	ErrSizing = errors.New("invalid acceleration structure size")
	// ErrStall means a finite-timeout wait elapsed before the GPU
	// signalled completion. Callers retry the wait; they must not proceed.
	ErrStall = errors.New("wait on sync point timed out")
	// ErrUnsupported means the active device backend cannot express the
	// requested operation at all.
	ErrUnsupported = errors.New("operation not supported by device backend")
)

// CapabilityError reports which feature was missing so the refusal to
// start names the offending device.
func CapabilityError(feature, device string) error {
	return fmt.Errorf("%w: %s on %q", ErrCapability, feature, device)
}

// SizingError reports a bad size query result for a named structure.
func SizingError(structure string, size uint64) error {
	return fmt.Errorf("%w: %s reported size %d", ErrSizing, structure, size)
}
