package backend

import (
	"errors"

	"github.com/gogpu/gpufilter/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNoBackends is returned by OpenDefault when nothing is registered.
	ErrNoBackends = errors.New("backend: no backends registered")
)

// Backend names.
const (
	// BackendNative is the gogpu/wgpu HAL adapter (Vulkan).
	BackendNative = "native"

	// BackendSoft is the CPU reference device.
	BackendSoft = "soft"
)

// Factory opens a new device. Factories return ErrBackendNotAvailable
// (possibly wrapped) when the host cannot provide the device.
type Factory func() (gpucore.GPUAdapter, error)
