//go:build !nogpu

// Package native implements gpucore.GPUAdapter over the gogpu/wgpu HAL.
//
// Open creates a Vulkan instance, picks a discrete or integrated GPU and
// opens a device that the adapter owns. FromProvider wraps a device
// shared by a host application through gpucontext; the adapter then
// never destroys the device.
//
// Importing the package registers it with the backend registry as
// "native". Build with the nogpu tag to leave it out.
package native
