// Package filter binds host-side filter configuration to a compiled compute
// kernel and launches it against a device-resident image.
//
// Every filter satisfies the flat Filter interface. Concrete filters are
// one Dispatcher type configured by Capabilities: context-bound or
// context-free, linear or nonlinear, and with no, one or two filter-owned
// masks. Constructors compile the kernel, validate it against the family's
// argument layout and upload masks once; Filter then binds the current
// image buffers and parameters and enqueues exactly one dispatch.
//
//	lp, err := filter.NewLowpass(dev, tm, filter.WGSL(src), "lowpass", filter.BoxMask(1))
//	if err != nil {
//		return err
//	}
//	defer lp.Release()
//	if err := lp.Filter(dev.Queue()); err != nil {
//		return err
//	}
package filter

import (
	"fmt"

	"github.com/gogpu/gpufilter/gpucore"
)

// Filter is the invocation contract shared by all filters.
type Filter interface {
	// Filter binds arguments and enqueues one kernel execution on q. It
	// returns nil only if every argument was bound and the launch was
	// accepted. It does not wait for the kernel to finish.
	Filter(q gpucore.Queue) error

	// Release frees every device resource the filter owns. It is safe to
	// call more than once.
	Release()
}

// Target is the device image a filter reads and writes. transfer.Manager
// implements it.
type Target interface {
	Device() gpucore.GPUAdapter
	Width() int
	Height() int
	Channels() int

	// ImageBuffers returns the buffer holding the current image and the
	// buffer the filter writes its result to.
	ImageBuffers() (src, dst gpucore.BufferID)

	// Commit makes the destination the current image. Called after a
	// successful submit.
	Commit()
}

// Context says whether a filter allocates device buffers of its own.
type Context int

const (
	// ContextBound filters allocate masks, scratch and offset buffers.
	ContextBound Context = iota
	// ContextFree filters bind only the image and the parameter block.
	ContextFree
)

func (c Context) String() string {
	if c == ContextFree {
		return "context-free"
	}
	return "context-bound"
}

// Linearity selects the kernel family.
type Linearity int

const (
	// Linear kernels compute weighted sums of a neighborhood.
	Linear Linearity = iota
	// Nonlinear kernels compute rank statistics or morphological operators.
	Nonlinear
)

func (l Linearity) String() string {
	if l == Nonlinear {
		return "nonlinear"
	}
	return "linear"
}

// Capabilities describes what a Dispatcher binds.
type Capabilities struct {
	Context   Context
	Linearity Linearity
	Masks     MaskKind

	// Family names the filter in logs and errors, e.g. "lowpass".
	Family string
}

// Validate rejects combinations no kernel family accepts.
func (c Capabilities) Validate() error {
	switch {
	case c.Context == ContextFree && c.Masks != NoMask:
		return fmt.Errorf("%w: %s filter cannot own masks", ErrInvalidConfig, c.Context)
	case c.Context == ContextBound && c.Linearity == Linear && c.Masks == NoMask:
		return fmt.Errorf("%w: a linear context-bound filter needs a mask", ErrInvalidConfig)
	case c.Linearity == Nonlinear && c.Masks == DualMask:
		return fmt.Errorf("%w: nonlinear filters take at most one mask", ErrInvalidConfig)
	}
	return nil
}

func (c Capabilities) String() string {
	if c.Context == ContextFree {
		return fmt.Sprintf("%s(%s)", c.Family, c.Context)
	}
	return fmt.Sprintf("%s(%s, %s, %s)", c.Family, c.Context, c.Linearity, c.Masks)
}
