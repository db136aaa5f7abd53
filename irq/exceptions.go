package irq

// exceptionNames is the fixed CPU exception vector -> mnemonic table
// (Intel SDM vol. 3, chapter 6), used only for panic messages and /sys/
// kmsg diagnostics: nothing in this kernel dispatches on the name, only
// the vector.
var exceptionNames = [32]string{
	0:  "Divide Error",
	1:  "Debug",
	2:  "NMI Interrupt",
	3:  "Breakpoint",
	4:  "Overflow",
	5:  "BOUND Range Exceeded",
	6:  "Invalid Opcode",
	7:  "Device Not Available",
	8:  "Double Fault",
	9:  "Coprocessor Segment Overrun",
	10: "Invalid TSS",
	11: "Segment Not Present",
	12: "Stack-Segment Fault",
	13: "General Protection",
	14: "Page Fault",
	15: "Reserved",
	16: "x87 FPU Error",
	17: "Alignment Check",
	18: "Machine Check",
	19: "SIMD Floating-Point",
	20: "Virtualization",
}

// ExceptionPageFault is the CPU exception vector the vmm page fault handler
// is wired to (spec.md §4.2, §4.5).
const ExceptionPageFault = 14

// ExceptionName returns the mnemonic for a CPU exception vector, or
// "Unknown" for anything outside the architecturally defined 0-31 range or
// a reserved slot within it that has no assigned name.
func ExceptionName(vector int) string {
	if vector < 0 || vector >= len(exceptionNames) || exceptionNames[vector] == "" {
		return "Unknown"
	}
	return exceptionNames[vector]
}
