// Package gpufilter dispatches precompiled GPU compute kernels against a
// shared device-resident image.
//
// # Overview
//
// gpufilter is a Pure Go host-side framework that binds filter configuration
// (masks, tile sizes, scalar parameters) to a WGSL compute kernel and
// launches it through a device adapter. It does not implement any image
// processing algorithm itself: the kernels are supplied as source text and
// compiled at filter construction.
//
// # Packages
//
//   - gpucore: device and queue abstraction (opaque resource IDs)
//   - backend/native: adapter over gogpu/wgpu HAL (Vulkan)
//   - backend/soft: CPU reference device used for tests and GPU-less hosts
//   - transfer: owns the device image buffers, uploads and downloads images
//   - filter: the dispatch core (linear, nonlinear, masked, morphology,
//     transformation filters)
//   - kernels: embedded sample WGSL kernels and a source loader
//
// # Quick Start
//
//	dev, err := backend.Open(backend.Default())
//	if err != nil {
//		return err
//	}
//	defer dev.Close()
//
//	tm, err := transfer.New(dev, transfer.WithChannels(1))
//	if err != nil {
//		return err
//	}
//	defer tm.Close()
//	if err := tm.Upload(img); err != nil {
//		return err
//	}
//
//	lp, err := filter.NewLowpass(dev, tm, filter.WGSL(kernels.MustSource(kernels.Lowpass)), kernels.Lowpass, filter.BoxMask(1))
//	if err != nil {
//		return err
//	}
//	defer lp.Release()
//
//	if err := lp.Filter(dev.Queue()); err != nil {
//		return err
//	}
//	out, err := tm.Download()
//
// # Logging
//
// All packages log through [Logger]; output is disabled until [SetLogger]
// is called.
package gpufilter
