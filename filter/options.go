package filter

import "fmt"

type config struct {
	tile    [2]uint32
	label   string
	divisor float32
	bias    float32
	hasDiv  bool
}

// Option configures a filter at construction.
type Option func(*config)

// WithTile sets the work-group (tile) size. The kernel's @workgroup_size
// must match. Default: the size the kernel declares.
func WithTile(width, height uint32) Option {
	return func(c *config) {
		c.tile = [2]uint32{width, height}
	}
}

// WithDivisor sets the value linear filters divide the weighted sum by.
// Default: the mask sum for Lowpass (1 if the sum is not positive), 1 for
// every other linear filter.
func WithDivisor(div float32) Option {
	return func(c *config) {
		c.divisor = div
		c.hasDiv = true
	}
}

// WithBias sets the value linear filters add after dividing. Default 0.
func WithBias(bias float32) Option {
	return func(c *config) {
		c.bias = bias
	}
}

// WithLabel sets the label of the filter's device objects. Default: the
// entry point name.
func WithLabel(label string) Option {
	return func(c *config) {
		c.label = label
	}
}

func newConfig(entryPoint string, opts []Option) (config, error) {
	c := config{label: entryPoint}
	for _, opt := range opts {
		opt(&c)
	}
	if (c.tile[0] == 0) != (c.tile[1] == 0) {
		return c, fmt.Errorf("%w: tile %dx%d", ErrInvalidConfig, c.tile[0], c.tile[1])
	}
	return c, nil
}
