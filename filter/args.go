package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gpufilter/gpucore"
)

// ArgKind identifies the role of a kernel argument.
type ArgKind int

// Argument roles.
const (
	ArgSource ArgKind = iota
	ArgMask
	ArgScratch
	ArgOffsets
	ArgParams
	ArgDestination
)

var argKindNames = [...]string{"source", "mask", "scratch", "offsets", "params", "destination"}

func (k ArgKind) String() string {
	if k < 0 || int(k) >= len(argKindNames) {
		return fmt.Sprintf("arg(%d)", int(k))
	}
	return argKindNames[k]
}

// Arg is one positional kernel argument: binding index Binding of group 0.
type Arg struct {
	Binding uint32
	Kind    ArgKind
	Name    string
	Type    gpucore.BindingType
}

func (a Arg) String() string {
	return fmt.Sprintf("%d:%s", a.Binding, a.Name)
}

// Layout is the positional argument order of a kernel family. Binding i
// of group 0 is Layout[i].
type Layout []Arg

// LayoutFor returns the argument order for a capability set:
//
//	source, mask..., scratch, offsets, params, destination   context-bound
//	source, params, destination                              context-free
func LayoutFor(c Capabilities) Layout {
	var l Layout
	add := func(kind ArgKind, name string, typ gpucore.BindingType) {
		l = append(l, Arg{Binding: uint32(len(l)), Kind: kind, Name: name, Type: typ})
	}

	add(ArgSource, "src", gpucore.BindingTypeReadOnlyStorageBuffer)
	if c.Context == ContextBound {
		switch c.Masks {
		case SingleMask:
			add(ArgMask, "mask", gpucore.BindingTypeReadOnlyStorageBuffer)
		case DualMask:
			add(ArgMask, "mask_x", gpucore.BindingTypeReadOnlyStorageBuffer)
			add(ArgMask, "mask_y", gpucore.BindingTypeReadOnlyStorageBuffer)
		}
		add(ArgScratch, "scratch", gpucore.BindingTypeStorageBuffer)
		add(ArgOffsets, "offsets", gpucore.BindingTypeReadOnlyStorageBuffer)
	}
	add(ArgParams, "params", gpucore.BindingTypeUniformBuffer)
	add(ArgDestination, "dst", gpucore.BindingTypeStorageBuffer)
	return l
}

// Find returns the argument bound at index binding.
func (l Layout) Find(binding uint32) (Arg, bool) {
	if int(binding) < len(l) && l[binding].Binding == binding {
		return l[binding], true
	}
	for _, a := range l {
		if a.Binding == binding {
			return a, true
		}
	}
	return Arg{}, false
}

func (l Layout) entries() []gpucore.BindGroupLayoutEntry {
	entries := make([]gpucore.BindGroupLayoutEntry, len(l))
	for i, a := range l {
		entries[i] = gpucore.BindGroupLayoutEntry{Binding: a.Binding, Type: a.Type}
	}
	return entries
}

func (l Layout) String() string {
	names := make([]string, len(l))
	for i, a := range l {
		names[i] = a.Name
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// BindResult is the outcome of binding one argument.
type BindResult struct {
	Arg    Arg
	Buffer gpucore.BufferID
	Size   uint64
	Err    error
}

// OK reports whether the argument was bound.
func (r BindResult) OK() bool { return r.Err == nil }

// BindError reports a Filter call that could not bind its arguments.
// Results holds one entry per argument in layout order, successful ones
// included.
type BindError struct {
	Results []BindResult

	// Group is set when every argument bound but the bind group could not
	// be created from them.
	Group error
}

// Failed returns the results that did not bind.
func (e *BindError) Failed() []BindResult {
	var out []BindResult
	for _, r := range e.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

func (e *BindError) Error() string {
	var b strings.Builder
	b.WriteString(ErrBind.Error())
	for _, r := range e.Failed() {
		fmt.Fprintf(&b, "; %s: %v", r.Arg, r.Err)
	}
	if e.Group != nil {
		fmt.Fprintf(&b, "; bind group: %v", e.Group)
	}
	return b.String()
}

// Unwrap exposes ErrBind and every individual failure to errors.Is.
func (e *BindError) Unwrap() []error {
	errs := []error{ErrBind}
	for _, r := range e.Failed() {
		errs = append(errs, r.Err)
	}
	if e.Group != nil {
		errs = append(errs, e.Group)
	}
	return errs
}

// errBindResults returns a *BindError if any result failed.
func errBindResults(results []BindResult) error {
	for _, r := range results {
		if !r.OK() {
			return &BindError{Results: results}
		}
	}
	return nil
}

var errArgMissing = errors.New("no buffer for argument")
