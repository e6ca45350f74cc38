// Package gpucore provides the device abstraction used by the filter
// dispatch core.
//
// This package defines the [GPUAdapter] interface, which abstracts over
// different GPU backend implementations, allowing the same dispatch code to
// work with:
//   - gogpu/wgpu HAL devices (backend/native)
//   - the CPU reference device (backend/soft)
//
// # Architecture
//
//	          +------------------+
//	          |  filter/transfer |
//	          +--------+---------+
//	                   |
//	          +--------v---------+
//	          |     gpucore      |
//	          | GPUAdapter/Queue |
//	          +--------+---------+
//	                   |
//	      +------------+------------+
//	      |                         |
//	+-----v------+           +------v-----+
//	|   native   |           |    soft    |
//	| (wgpu/hal) |           |  (CPU ref) |
//	+------------+           +------------+
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([BufferID], [ShaderModuleID],
// etc.). The [GPUAdapter] interface provides creation and destruction
// methods for each resource type. Adapters are responsible for tracking the
// mapping between IDs and actual GPU resources.
//
// # Submission
//
// Each adapter owns exactly one in-order [Queue]. Compute passes recorded
// with [Queue.BeginComputePass] are executed in submission order after
// [Queue.Submit]; [Queue.WaitIdle] drains the queue.
package gpucore
