package vm

import (
	"fmt"
	"io"
)

// StackPointerRegister is x2, the register the standard RISC-V calling
// convention reserves for the stack pointer. The core ISA has no dedicated
// SP register — this is purely a software convention the stack tracer
// assumes when asked to watch "the stack".
const StackPointerRegister = 2

// StackMove is one recorded change to the stack-pointer register.
type StackMove struct {
	Cycle   uint64
	Address uint32
	OldSP   uint32
	NewSP   uint32
}

// StackTrace records every change to x2, letting a host tool flag stack
// growth/shrink patterns (e.g. a guard against the stack growing into the
// data segment) without the core itself knowing what "stack" means.
type StackTrace struct {
	Enabled bool
	Writer  io.Writer

	moves []StackMove
}

// NewStackTrace creates a stack-pointer tracer that reports to writer.
func NewStackTrace(writer io.Writer) *StackTrace {
	return &StackTrace{Enabled: true, Writer: writer}
}

// RecordSPMove appends a stack-pointer change if it actually moved.
func (st *StackTrace) RecordSPMove(cycle uint64, addr uint32, oldSP, newSP uint32) {
	if oldSP == newSP {
		return
	}
	st.moves = append(st.moves, StackMove{Cycle: cycle, Address: addr, OldSP: oldSP, NewSP: newSP})
}

// Moves returns the recorded stack-pointer history, oldest first.
func (st *StackTrace) Moves() []StackMove {
	return st.moves
}

// WriteText renders the stack trace as one line per SP change.
func (st *StackTrace) WriteText(w io.Writer) error {
	for _, m := range st.moves {
		delta := int64(m.NewSP) - int64(m.OldSP)
		if _, err := fmt.Fprintf(w, "%6d  pc=0x%08X  sp: 0x%08X -> 0x%08X (%+d)\n", m.Cycle, m.Address, m.OldSP, m.NewSP, delta); err != nil {
			return err
		}
	}
	return nil
}

// Watch wires the tracer into vm's diagnostics pipeline by observing x2
// writes directly; call once after enabling StackTrace on the VM.
func (st *StackTrace) Watch(vm *VM) {
	vm.RegisterTrace = NewRegisterTrace(st.Writer)
	vm.RegisterTrace.Filter = map[string]bool{registerName(StackPointerRegister): true}
}
