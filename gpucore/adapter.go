package gpucore

import "errors"

// Adapter errors shared by all implementations.
var (
	// ErrResourceNotFound is returned when an ID does not name a live resource.
	ErrResourceNotFound = errors.New("gpucore: resource not found")

	// ErrAdapterClosed is returned by operations on a closed adapter.
	ErrAdapterClosed = errors.New("gpucore: adapter closed")

	// ErrOutOfRange is returned when a buffer access exceeds the buffer size.
	ErrOutOfRange = errors.New("gpucore: buffer range out of bounds")
)

// GPUAdapter abstracts over different GPU backend implementations. It plays
// the role of the device context: every filter compiles its kernel and
// allocates its auxiliary buffers through the adapter it was given.
//
// Implementations must be thread-safe for concurrent use.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying a resource while in use is undefined behavior
//   - IDs become invalid after destruction and must not be reused
//   - Destroying an unknown or already destroyed ID is a no-op
type GPUAdapter interface {
	// === Capabilities ===

	// Capabilities returns the adapter limits.
	Capabilities() AdapterCapabilities

	// === Shader Compilation ===

	// CreateShaderModule creates a shader module from SPIR-V bytecode.
	// The SPIR-V is compiled by naga before being passed here.
	//
	// Parameters:
	//   - spirv: SPIR-V bytecode as uint32 words
	//   - label: optional debug label
	//
	// Returns the module ID or an error if the module is rejected.
	CreateShaderModule(spirv []uint32, label string) (ShaderModuleID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id ShaderModuleID)

	// === Buffer Management ===

	// CreateBuffer creates a GPU buffer.
	//
	// Parameters:
	//   - size: buffer size in bytes
	//   - usage: buffer usage flags (bitmask of BufferUsage*)
	//   - label: optional debug label
	//
	// Returns the buffer ID or an error if allocation fails.
	CreateBuffer(size int, usage BufferUsage, label string) (BufferID, error)

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// BufferInfo returns the size and usage of a live buffer.
	// The boolean is false if id does not name a live buffer.
	BufferInfo(id BufferID) (BufferInfo, bool)

	// WriteBuffer schedules a host-to-device write. The write is ordered
	// before any work submitted afterwards on the adapter's queue.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// ReadBuffer reads data from a buffer.
	// This waits for all submitted work and stalls the host.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// === Pipeline Management ===

	// CreateBindGroupLayout creates a bind group layout.
	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)

	// DestroyBindGroupLayout releases a bind group layout.
	DestroyBindGroupLayout(id BindGroupLayoutID)

	// CreatePipelineLayout creates a pipeline layout from bind group layouts.
	CreatePipelineLayout(layouts []BindGroupLayoutID) (PipelineLayoutID, error)

	// DestroyPipelineLayout releases a pipeline layout.
	DestroyPipelineLayout(id PipelineLayoutID)

	// CreateComputePipeline creates a compute pipeline.
	CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error)

	// DestroyComputePipeline releases a compute pipeline.
	DestroyComputePipeline(id ComputePipelineID)

	// CreateBindGroup creates a bind group.
	// Bind groups bind actual resources to a bind group layout.
	CreateBindGroup(desc *BindGroupDesc) (BindGroupID, error)

	// DestroyBindGroup releases a bind group.
	DestroyBindGroup(id BindGroupID)

	// === Command Submission ===

	// Queue returns the adapter's single in-order command queue.
	Queue() Queue

	// Close releases the adapter and every resource still alive on it.
	Close()
}

// BufferInfo describes a live buffer.
type BufferInfo struct {
	Size  uint64
	Usage BufferUsage
	Label string
}

// Queue is an ordered channel through which compute passes are submitted.
// Work executes in submission order; Submit does not wait for completion.
type Queue interface {
	// Adapter returns the adapter that owns this queue.
	Adapter() GPUAdapter

	// BeginComputePass begins a compute pass.
	// Returns an encoder for recording compute commands.
	// The encoder must be ended with ComputePassEncoder.End().
	BeginComputePass(label string) ComputePassEncoder

	// Submit submits all recorded and ended passes to the GPU.
	Submit() error

	// WaitIdle blocks until all submitted work has completed.
	// There is no timeout: a kernel that never finishes blocks forever.
	WaitIdle() error
}

// ComputePassEncoder records compute commands.
//
// Usage:
//  1. Obtain encoder from Queue.BeginComputePass()
//  2. Set pipeline and bind groups
//  3. Dispatch compute workgroups
//  4. Call End() to finish recording
//  5. Call Queue.Submit() to execute
//
// The encoder is single-use and cannot be reused after End().
type ComputePassEncoder interface {
	// SetPipeline sets the active compute pipeline.
	SetPipeline(pipeline ComputePipelineID)

	// SetBindGroup sets a bind group at the specified index.
	SetBindGroup(index uint32, group BindGroupID)

	// Dispatch dispatches compute workgroups.
	// x, y, z are the number of workgroups in each dimension.
	Dispatch(x, y, z uint32)

	// End finishes the compute pass.
	// After this call, the encoder cannot be used again.
	End()
}
