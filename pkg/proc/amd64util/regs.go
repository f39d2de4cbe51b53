package amd64util

import (
	"encoding/binary"
	"fmt"
)

// PtraceRegs is the struct used by the linux kernel to return the
// general purpose registers for AMD64 CPUs (user_regs_struct in
// /usr/include/x86_64-linux-gnu/sys/user.h). Field names match
// golang.org/x/sys/unix.PtraceRegs so the two convert into each other.
type PtraceRegs struct {
	R15      uint64
	R14      uint64
	R13      uint64
	R12      uint64
	Rbp      uint64
	Rbx      uint64
	R11      uint64
	R10      uint64
	R9       uint64
	R8       uint64
	Rax      uint64
	Rcx      uint64
	Rdx      uint64
	Rsi      uint64
	Rdi      uint64
	Orig_rax uint64
	Rip      uint64
	Cs       uint64
	Eflags   uint64
	Rsp      uint64
	Ss       uint64
	Fs_base  uint64
	Gs_base  uint64
	Ds       uint64
	Es       uint64
	Fs       uint64
	Gs       uint64
}

// PtraceFpRegs tracks user_fpregs_struct in /usr/include/x86_64-linux-gnu/sys/user.h
type PtraceFpRegs struct {
	Cwd      uint16
	Swd      uint16
	Ftw      uint16
	Fop      uint16
	Rip      uint64
	Rdp      uint64
	Mxcsr    uint32
	MxcrMask uint32
	StSpace  [32]uint32
	XmmSpace [256]byte
	Padding  [24]uint32
}

// NumXmm is the number of SSE registers in the XMM space.
const NumXmm = 16

// Xmm returns the high and low 64 bits of XMM register n. The XMM space is
// stored in memory order, little endian.
func (fp *PtraceFpRegs) Xmm(n int) (hi, lo uint64) {
	b := fp.XmmSpace[n*16 : n*16+16]
	return binary.LittleEndian.Uint64(b[8:]), binary.LittleEndian.Uint64(b[:8])
}

// SetXmm stores hi and lo into XMM register n.
func (fp *PtraceFpRegs) SetXmm(n int, hi, lo uint64) {
	b := fp.XmmSpace[n*16 : n*16+16]
	binary.LittleEndian.PutUint64(b[:8], lo)
	binary.LittleEndian.PutUint64(b[8:], hi)
}

// Registers is the register state of a stopped thread, as read through
// PTRACE_GETREGS and PTRACE_GETFPREGS.
type Registers struct {
	Regs   PtraceRegs
	Fpregs PtraceFpRegs
}

// PC returns the instruction pointer.
func (r *Registers) PC() uint64 {
	return r.Regs.Rip
}

// SP returns the stack pointer.
func (r *Registers) SP() uint64 {
	return r.Regs.Rsp
}

func (r *Registers) String() string {
	return fmt.Sprintf("rip=%#x rsp=%#x rax=%#x", r.Regs.Rip, r.Regs.Rsp, r.Regs.Rax)
}
