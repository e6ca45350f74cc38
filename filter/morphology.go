package filter

import (
	"fmt"

	"github.com/gogpu/gpufilter/gpucore"
)

// NewErode builds an erosion: the minimum over the taps where the
// structuring element is non-zero. A zero element selects a 3x3 square.
func NewErode(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint string, element Mask, opts ...Option) (*Dispatcher, error) {
	return newMorphology(dev, t, prog, entryPoint, "erode", element, opts)
}

// NewDilate builds a dilation: the maximum over the taps where the
// structuring element is non-zero. A zero element selects a 3x3 square.
func NewDilate(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint string, element Mask, opts ...Option) (*Dispatcher, error) {
	return newMorphology(dev, t, prog, entryPoint, "dilate", element, opts)
}

func newMorphology(dev gpucore.GPUAdapter, t Target, prog Program, entryPoint, name string, element Mask, opts []Option) (*Dispatcher, error) {
	if element.IsZero() {
		element = SquareMask(1)
	}
	if element.Sum() == 0 {
		return nil, fmt.Errorf("%w: %s structuring element is empty", ErrInvalidConfig, name)
	}
	cfg, err := newConfig(entryPoint, opts)
	if err != nil {
		return nil, err
	}
	return build(dev, t, prog, entryPoint, family{
		caps: Capabilities{
			Context:   ContextBound,
			Linearity: Nonlinear,
			Masks:     SingleMask,
			Family:    name,
		},
		masks: Single(element),
	}, cfg)
}

// NewOpen returns the morphological opening, which is not implemented.
func NewOpen() *Stub { return &Stub{Family: "open"} }

// NewClose returns the morphological closing, which is not implemented.
func NewClose() *Stub { return &Stub{Family: "close"} }

// NewGradient returns the morphological gradient, which is not
// implemented.
func NewGradient() *Stub { return &Stub{Family: "gradient"} }

// NewTopHat returns the top-hat transform, which is not implemented.
func NewTopHat() *Stub { return &Stub{Family: "tophat"} }

// Stub is a filter family without a kernel. It owns no device resources
// and its Filter method always fails with ErrUnimplemented.
type Stub struct {
	Family string
}

// Filter returns an error wrapping ErrUnimplemented.
func (s *Stub) Filter(gpucore.Queue) error {
	return fmt.Errorf("%w: %s", ErrUnimplemented, s.Family)
}

// Release does nothing.
func (*Stub) Release() {}

var _ Filter = (*Stub)(nil)
