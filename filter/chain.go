package filter

import (
	"fmt"

	"github.com/gogpu/gpufilter/gpucore"
)

// Chain runs filters in order on one queue. Each filter reads the image
// the previous one wrote.
type Chain struct {
	filters []Filter
}

// NewChain returns a chain of filters. The chain takes ownership: Release
// releases every filter.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Append adds filters to the end of the chain.
func (c *Chain) Append(filters ...Filter) {
	c.filters = append(c.filters, filters...)
}

// Len returns the number of filters.
func (c *Chain) Len() int { return len(c.filters) }

// Filter enqueues every filter and stops at the first failure. The error
// names the failing step and wraps its cause.
func (c *Chain) Filter(q gpucore.Queue) error {
	for i, f := range c.filters {
		if err := f.Filter(q); err != nil {
			return fmt.Errorf("filter: chain step %d: %w", i, err)
		}
	}
	return nil
}

// Run is Filter followed by a wait for the queue to drain.
func (c *Chain) Run(q gpucore.Queue) error {
	if err := c.Filter(q); err != nil {
		return err
	}
	return q.WaitIdle()
}

// Release releases every filter, last first.
func (c *Chain) Release() {
	for i := len(c.filters) - 1; i >= 0; i-- {
		c.filters[i].Release()
	}
}

var _ Filter = (*Chain)(nil)
