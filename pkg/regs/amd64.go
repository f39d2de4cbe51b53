package regs

// amd64Slots is the register table captured on linux/amd64: the general
// purpose registers, rip, rflags, the fs/gs bases, mxcsr and the sixteen
// SSE registers.
var amd64Slots = []Slot{
	{"rax", Width64},
	{"rbx", Width64},
	{"rcx", Width64},
	{"rdx", Width64},
	{"rsi", Width64},
	{"rdi", Width64},
	{"rbp", Width64},
	{"rsp", Width64},
	{"r8", Width64},
	{"r9", Width64},
	{"r10", Width64},
	{"r11", Width64},
	{"r12", Width64},
	{"r13", Width64},
	{"r14", Width64},
	{"r15", Width64},
	{"rip", Width64},
	{"rfl", Width64},
	{"fs", Width64},
	{"gs", Width64},
	{"mxcsr", Width32},
	{"xmm0", Width128},
	{"xmm1", Width128},
	{"xmm2", Width128},
	{"xmm3", Width128},
	{"xmm4", Width128},
	{"xmm5", Width128},
	{"xmm6", Width128},
	{"xmm7", Width128},
	{"xmm8", Width128},
	{"xmm9", Width128},
	{"xmm10", Width128},
	{"xmm11", Width128},
	{"xmm12", Width128},
	{"xmm13", Width128},
	{"xmm14", Width128},
	{"xmm15", Width128},
}

// AMD64 returns the default amd64 register schema.
func AMD64() *Schema {
	return MustSchema(amd64Slots...)
}
