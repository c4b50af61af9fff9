package vm

import "fmt"

// FaultKind identifies the terminal error condition that ended a Step call.
// All faults are synchronous and terminal for the step in which they arise;
// nothing is retried inside the core, and the host decides whether to
// resume, reset, or halt.
type FaultKind int

const (
	// FaultIllegalInstruction: unknown opcode, an unused (funct3, funct7)
	// combination, or a shift-immediate whose upper 7 bits aren't 0000000
	// or 0100000.
	FaultIllegalInstruction FaultKind = iota
	// FaultMisaligned: JAL/JALR/a taken branch produced a target not
	// aligned to 4.
	FaultMisaligned
	// FaultAccess: a load/store address lies outside both regions, or an
	// access straddles a region boundary.
	FaultAccess
	// FaultWriteProtect: a store targeted the ROM region.
	FaultWriteProtect
	// FaultEnvironmentCall: ECALL was executed.
	FaultEnvironmentCall
	// FaultBreakpoint: EBREAK was executed.
	FaultBreakpoint
	// FaultCycleLimit: Step's MaxCycles budget was exhausted. Not part of
	// spec.md's fault taxonomy (MaxCycles is a host-convenience addition),
	// kept distinct from FaultAccess so a host branching on Kind doesn't
	// have to string-match the message to tell "out of budget" from
	// "bad memory access".
	FaultCycleLimit
)

func (k FaultKind) String() string {
	switch k {
	case FaultIllegalInstruction:
		return "illegal-instruction"
	case FaultMisaligned:
		return "instruction-address-misaligned"
	case FaultAccess:
		return "access-fault"
	case FaultWriteProtect:
		return "write-protect-fault"
	case FaultEnvironmentCall:
		return "environment-call"
	case FaultBreakpoint:
		return "breakpoint"
	case FaultCycleLimit:
		return "cycle-limit-exceeded"
	default:
		return "unknown-fault"
	}
}

// Fault is the error type every faulting Step reports. Host code extracts
// it with errors.As to branch on Kind without parsing message text.
type Fault struct {
	Kind    FaultKind
	Address uint32 // PC (or faulting memory address, for access faults)
	msg     string
}

func (f *Fault) Error() string {
	return f.msg
}

func newFault(kind FaultKind, address uint32, format string, args ...interface{}) *Fault {
	return &Fault{Kind: kind, Address: address, msg: fmt.Sprintf(format, args...)}
}
