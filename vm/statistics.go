package vm

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// PerformanceStatistics tracks coarse execution statistics across a run.
type PerformanceStatistics struct {
	Enabled bool

	TotalInstructions uint64
	TotalCycles       uint64
	InstructionCounts map[string]uint64

	BranchCount      uint64
	BranchTakenCount uint64

	MemoryReads  uint64
	MemoryWrites uint64
}

// NewPerformanceStatistics creates an empty, enabled statistics tracker.
func NewPerformanceStatistics() *PerformanceStatistics {
	return &PerformanceStatistics{Enabled: true, InstructionCounts: make(map[string]uint64)}
}

// RecordInstruction tallies one executed instruction by mnemonic and counts
// branches, loads and stores. Whether a branch was taken is not recorded
// here; see RecordBranchTaken.
func (s *PerformanceStatistics) RecordInstruction(inst *Instruction, cycle uint64) {
	s.TotalInstructions++
	s.TotalCycles = cycle
	s.InstructionCounts[inst.Mnemonic()]++

	switch inst.Opcode {
	case OpBranch:
		s.BranchCount++
	case OpLoad:
		s.MemoryReads++
	case OpStore:
		s.MemoryWrites++
	}
}

// RecordBranchTaken notes that the most recently counted branch was taken.
// Called by the host (not the executor) once it observes the PC jumped, so
// statistics stay decoupled from instruction execution.
func (s *PerformanceStatistics) RecordBranchTaken() {
	s.BranchTakenCount++
}

type instructionStatLine struct {
	Mnemonic string
	Count    uint64
}

func (s *PerformanceStatistics) sortedCounts() []instructionStatLine {
	out := make([]instructionStatLine, 0, len(s.InstructionCounts))
	for m, c := range s.InstructionCounts {
		out = append(out, instructionStatLine{Mnemonic: m, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// WriteText renders a human-readable statistics summary.
func (s *PerformanceStatistics) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "instructions: %d   cycles: %d   branches: %d (%d taken)   mem reads: %d   mem writes: %d\n",
		s.TotalInstructions, s.TotalCycles, s.BranchCount, s.BranchTakenCount, s.MemoryReads, s.MemoryWrites); err != nil {
		return err
	}
	for _, line := range s.sortedCounts() {
		if _, err := fmt.Fprintf(w, "  %-8s %d\n", line.Mnemonic, line.Count); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON renders the statistics summary as JSON.
func (s *PerformanceStatistics) WriteJSON(w io.Writer) error {
	return json.NewEncoder(w).Encode(struct {
		TotalInstructions uint64                `json:"total_instructions"`
		TotalCycles       uint64                `json:"total_cycles"`
		BranchCount       uint64                `json:"branch_count"`
		BranchTakenCount  uint64                `json:"branch_taken_count"`
		MemoryReads       uint64                `json:"memory_reads"`
		MemoryWrites      uint64                `json:"memory_writes"`
		InstructionCounts []instructionStatLine `json:"instruction_counts"`
	}{
		TotalInstructions: s.TotalInstructions,
		TotalCycles:       s.TotalCycles,
		BranchCount:       s.BranchCount,
		BranchTakenCount:  s.BranchTakenCount,
		MemoryReads:       s.MemoryReads,
		MemoryWrites:      s.MemoryWrites,
		InstructionCounts: s.sortedCounts(),
	})
}
