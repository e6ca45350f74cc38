// Package backend selects the device a filter pipeline runs on.
//
// Devices are registered by name from init() functions and opened on
// demand. Two backends ship with the module:
//
//	import _ "github.com/gogpu/gpufilter/backend/native" // Vulkan via gogpu/wgpu HAL
//	import _ "github.com/gogpu/gpufilter/backend/soft"   // CPU reference device
//
// # Backend Selection
//
// Use Default() to get the name of the best registered backend, or
// OpenDefault() to open the first one that works on this host:
//
//	dev, err := backend.OpenDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
// Or request a specific backend by name:
//
//	dev, err := backend.Open(backend.BackendSoft)
package backend
