package filter

import "errors"

// Error taxonomy. Construction fails with ErrCompile or ErrAllocation and
// returns no filter; Filter fails with ErrBind, ErrEnqueue or
// ErrUnimplemented and leaves the filter usable.
var (
	// ErrCompile is returned when the kernel source does not compile, lacks
	// the requested compute entry point, or disagrees with the family's
	// argument layout.
	ErrCompile = errors.New("filter: kernel compilation failed")

	// ErrAllocation is returned when an auxiliary device buffer cannot be
	// created or initialised.
	ErrAllocation = errors.New("filter: device allocation failed")

	// ErrBind is returned when one or more kernel arguments could not be
	// bound. The error is a *BindError listing every argument.
	ErrBind = errors.New("filter: argument binding failed")

	// ErrEnqueue is returned when the launch is rejected by the queue.
	ErrEnqueue = errors.New("filter: enqueue failed")

	// ErrUnimplemented is returned by the Filter method of stub filters.
	ErrUnimplemented = errors.New("filter: not implemented")

	// ErrNotCompiled is returned when Filter is called on a filter that was
	// never successfully constructed.
	ErrNotCompiled = errors.New("filter: not compiled")

	// ErrReleased is returned when Filter is called after Release.
	ErrReleased = errors.New("filter: released")

	// ErrInvalidConfig is returned for capability combinations and options
	// no kernel family accepts.
	ErrInvalidConfig = errors.New("filter: invalid configuration")
)
