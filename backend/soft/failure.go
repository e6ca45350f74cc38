package soft

// Op names a device operation that can be made to fail.
type Op int

// Operations accepted by FailNext.
const (
	OpCreateBuffer Op = iota
	OpCreateShaderModule
	OpCreateBindGroupLayout
	OpCreatePipelineLayout
	OpCreateComputePipeline
	OpCreateBindGroup
	OpWriteBuffer
	OpSubmit
)

var opNames = [...]string{
	OpCreateBuffer:          "CreateBuffer",
	OpCreateShaderModule:    "CreateShaderModule",
	OpCreateBindGroupLayout: "CreateBindGroupLayout",
	OpCreatePipelineLayout:  "CreatePipelineLayout",
	OpCreateComputePipeline: "CreateComputePipeline",
	OpCreateBindGroup:       "CreateBindGroup",
	OpWriteBuffer:           "WriteBuffer",
	OpSubmit:                "Submit",
}

func (o Op) String() string {
	if o >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return "Op(?)"
}

// FailNext makes the next n calls of op fail with ErrInjected.
// n <= 0 clears any pending failures for op.
func (d *Device) FailNext(op Op, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n <= 0 {
		delete(d.failures, op)
		return
	}
	d.failures[op] = n
}
