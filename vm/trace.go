package vm

import (
	"fmt"
	"io"
)

// TraceEntry is one recorded step of an execution trace.
type TraceEntry struct {
	Sequence        uint64
	Address         uint32
	Opcode          uint32
	RegisterChanges map[string]uint32
}

// ExecutionTrace records a bounded history of executed instructions and the
// register writes each one produced, for post-mortem inspection by the
// debugger or a host tool.
type ExecutionTrace struct {
	Enabled    bool
	Writer     io.Writer
	FilterRegs map[string]bool // empty/nil = track all
	MaxEntries int

	entries []TraceEntry
	last    [NumRegisters]uint32
}

// NewExecutionTrace creates a trace that reports to writer with a default
// capacity.
func NewExecutionTrace(writer io.Writer) *ExecutionTrace {
	return &ExecutionTrace{Enabled: true, Writer: writer, MaxEntries: 100_000}
}

// SetFilterRegisters restricts recorded register changes to the named
// registers (e.g. "x1", "x2"); an empty slice tracks everything.
func (t *ExecutionTrace) SetFilterRegisters(regs []string) {
	t.FilterRegs = make(map[string]bool, len(regs))
	for _, r := range regs {
		t.FilterRegs[r] = true
	}
}

// Record appends one trace entry describing the instruction executed on
// cycle, diffing rf against the trace's last-seen register snapshot.
func (t *ExecutionTrace) Record(cycle uint64, addr uint32, opcode uint32, rf *RegisterFile) {
	if len(t.entries) >= t.MaxEntries {
		return
	}
	snap := rf.Snapshot()
	changes := make(map[string]uint32)
	for i := 1; i < NumRegisters; i++ {
		if snap[i] == t.last[i] {
			continue
		}
		name := registerName(i)
		if len(t.FilterRegs) == 0 || t.FilterRegs[name] {
			changes[name] = snap[i]
		}
	}
	t.last = snap
	t.entries = append(t.entries, TraceEntry{Sequence: cycle, Address: addr, Opcode: opcode, RegisterChanges: changes})
}

// Entries returns the recorded trace, oldest first.
func (t *ExecutionTrace) Entries() []TraceEntry {
	return t.entries
}

// WriteText renders the trace as one line per instruction.
func (t *ExecutionTrace) WriteText(w io.Writer) error {
	for _, e := range t.entries {
		if _, err := fmt.Fprintf(w, "%6d  pc=0x%08X  word=0x%08X  %v\n", e.Sequence, e.Address, e.Opcode, e.RegisterChanges); err != nil {
			return err
		}
	}
	return nil
}
