package vm

import (
	"fmt"
	"io"
)

// RegisterWrite is one recorded change of a register's value.
type RegisterWrite struct {
	Cycle    uint64
	Address  uint32
	Register string
	OldValue uint32
	NewValue uint32
}

// RegisterTrace records every register write, independent of
// ExecutionTrace's per-instruction diffing — useful when only a subset of
// registers matters (e.g. watching x5 across an entire run).
type RegisterTrace struct {
	Enabled bool
	Writer  io.Writer
	Filter  map[string]bool // empty/nil = track all

	writes []RegisterWrite
}

// NewRegisterTrace creates a register trace that reports to writer.
func NewRegisterTrace(writer io.Writer) *RegisterTrace {
	return &RegisterTrace{Enabled: true, Writer: writer}
}

// RecordWrite appends a write if reg passes the filter.
func (rt *RegisterTrace) RecordWrite(cycle uint64, addr uint32, reg string, oldValue, newValue uint32) {
	if len(rt.Filter) > 0 && !rt.Filter[reg] {
		return
	}
	rt.writes = append(rt.writes, RegisterWrite{Cycle: cycle, Address: addr, Register: reg, OldValue: oldValue, NewValue: newValue})
}

// Writes returns the recorded register writes, oldest first.
func (rt *RegisterTrace) Writes() []RegisterWrite {
	return rt.writes
}

// WriteText renders the register trace as one line per write.
func (rt *RegisterTrace) WriteText(w io.Writer) error {
	for _, rw := range rt.writes {
		if _, err := fmt.Fprintf(w, "%6d  pc=0x%08X  %s: 0x%08X -> 0x%08X\n", rw.Cycle, rw.Address, rw.Register, rw.OldValue, rw.NewValue); err != nil {
			return err
		}
	}
	return nil
}
