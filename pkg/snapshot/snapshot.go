// Package snapshot turns the register state of a stopped amd64 target into
// one value per slot of a register schema.
package snapshot

import (
	"errors"
	"fmt"

	"github.com/pekd/trace86/pkg/proc/amd64util"
	"github.com/pekd/trace86/pkg/regs"
)

// ErrUnknownRegister is returned when a schema names a register that
// cannot be extracted from the host register state.
var ErrUnknownRegister = errors.New("unknown register")

// field extracts one register from the host state.
type field struct {
	width regs.Width
	get   func(*amd64util.Registers) regs.Value
}

func gpr(get func(*amd64util.PtraceRegs) uint64) field {
	return field{regs.Width64, func(r *amd64util.Registers) regs.Value {
		return regs.Uint64(get(&r.Regs))
	}}
}

func xmm(n int) field {
	return field{regs.Width128, func(r *amd64util.Registers) regs.Value {
		hi, lo := r.Fpregs.Xmm(n)
		return regs.Value{Hi: hi, Lo: lo}
	}}
}

var fields = map[string]field{
	"rax": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Rax }),
	"rbx": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Rbx }),
	"rcx": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Rcx }),
	"rdx": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Rdx }),
	"rsi": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Rsi }),
	"rdi": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Rdi }),
	"rbp": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Rbp }),
	"rsp": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Rsp }),
	"r8":  gpr(func(r *amd64util.PtraceRegs) uint64 { return r.R8 }),
	"r9":  gpr(func(r *amd64util.PtraceRegs) uint64 { return r.R9 }),
	"r10": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.R10 }),
	"r11": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.R11 }),
	"r12": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.R12 }),
	"r13": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.R13 }),
	"r14": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.R14 }),
	"r15": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.R15 }),
	"rip": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Rip }),
	"rfl": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Eflags }),
	"fs":  gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Fs_base }),
	"gs":  gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Gs_base }),

	"orig_rax": gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Orig_rax }),
	"cs":       gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Cs }),
	"ss":       gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Ss }),
	"ds":       gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Ds }),
	"es":       gpr(func(r *amd64util.PtraceRegs) uint64 { return r.Es }),

	"mxcsr": {regs.Width32, func(r *amd64util.Registers) regs.Value {
		return regs.Uint64(uint64(r.Fpregs.Mxcsr))
	}},
}

func init() {
	for i := 0; i < amd64util.NumXmm; i++ {
		fields[fmt.Sprintf("xmm%d", i)] = xmm(i)
	}
}

// Encoder extracts the registers of a schema, in schema order.
type Encoder struct {
	schema *regs.Schema
	get    []func(*amd64util.Registers) regs.Value
}

// NewEncoder binds every slot of schema to the host register it names.
// Unknown names and widths that differ from the host register are
// rejected here, never while tracing.
func NewEncoder(schema *regs.Schema) (*Encoder, error) {
	e := &Encoder{schema: schema, get: make([]func(*amd64util.Registers) regs.Value, schema.Len())}
	for i := 0; i < schema.Len(); i++ {
		slot := schema.Slot(i)
		f, ok := fields[slot.Name]
		if !ok {
			return nil, fmt.Errorf("slot %d: %w %q", i, ErrUnknownRegister, slot.Name)
		}
		if f.width != slot.Width {
			return nil, fmt.Errorf("slot %d: register %s is %d bits wide, not %d: %w", i, slot.Name, f.width, slot.Width, regs.ErrUnsupportedWidth)
		}
		e.get[i] = f.get
	}
	return e, nil
}

// Schema returns the schema the encoder was built for.
func (e *Encoder) Schema() *regs.Schema {
	return e.schema
}

// Encode returns one value per schema slot.
func (e *Encoder) Encode(r *amd64util.Registers) []regs.Value {
	values := make([]regs.Value, len(e.get))
	for i, get := range e.get {
		values[i] = get(r)
	}
	return values
}
