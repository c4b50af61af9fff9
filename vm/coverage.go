package vm

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// CoverageEntry records execution counts for one instruction address.
type CoverageEntry struct {
	Address        uint32
	ExecutionCount uint64
	FirstExecution uint64
	LastExecution  uint64
}

// CodeCoverage tracks which ROM addresses have been executed, the way a
// guest-program coverage tool would instrument a real target.
type CodeCoverage struct {
	Enabled bool
	Writer  io.Writer

	executed map[uint32]*CoverageEntry
}

// NewCodeCoverage creates a coverage tracker that reports to writer.
func NewCodeCoverage(writer io.Writer) *CodeCoverage {
	return &CodeCoverage{Enabled: true, Writer: writer, executed: make(map[uint32]*CoverageEntry)}
}

// RecordExecution notes that the instruction at addr executed on the given
// cycle.
func (c *CodeCoverage) RecordExecution(addr uint32, cycle uint64) {
	e, ok := c.executed[addr]
	if !ok {
		e = &CoverageEntry{Address: addr, FirstExecution: cycle}
		c.executed[addr] = e
	}
	e.ExecutionCount++
	e.LastExecution = cycle
}

// Entries returns coverage entries sorted by address.
func (c *CodeCoverage) Entries() []*CoverageEntry {
	out := make([]*CoverageEntry, 0, len(c.executed))
	for _, e := range c.executed {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// WriteText renders a human-readable coverage report.
func (c *CodeCoverage) WriteText(w io.Writer) error {
	for _, e := range c.Entries() {
		if _, err := fmt.Fprintf(w, "0x%08X  %8d hits  [cycle %d .. %d]\n", e.Address, e.ExecutionCount, e.FirstExecution, e.LastExecution); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON renders coverage entries as JSON.
func (c *CodeCoverage) WriteJSON(w io.Writer) error {
	return json.NewEncoder(w).Encode(c.Entries())
}
