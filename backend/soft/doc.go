// Package soft provides a CPU reference device implementing
// gpucore.GPUAdapter.
//
// The device keeps buffers as byte slices, validates bind groups and
// dispatches the way a GPU driver would, and executes compute passes on
// Submit by calling a host kernel registered for the pipeline's entry
// point. Reference kernels for every shipped WGSL program are registered
// by default, so a filter pipeline produces the same pixels on this device
// as on a GPU.
//
// Beyond the adapter contract the device exposes test hooks: live
// resource counts, a dispatch history and failure injection for each
// resource-creating operation.
//
//	dev := soft.New()
//	defer dev.Close()
//	dev.FailNext(soft.OpCreateBuffer, 1) // next buffer allocation fails
//
// Importing the package registers it with the backend registry as "soft".
package soft
