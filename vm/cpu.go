package vm

import (
	"fmt"
	"io"
	"math/rand"
	"os"
)

// ExecutionState mirrors the coarse status a host polls between steps.
type ExecutionState int

const (
	StateReady ExecutionState = iota
	StateRunning
	StateHalted
	StateFault
)

// VM wires the register file, program counter, and MCU together and drives
// the fetch-decode-execute loop. Each VM instance uniquely owns its
// register file, PC, and MCU; there is no shared state between instances
// and no internal concurrency — Step is synchronous and single-threaded.
type VM struct {
	Registers *RegisterFile
	PC        ProgramCounter
	MCU       *MCU

	Cycles uint64
	State  ExecutionState

	MaxCycles uint64
	LastFault *Fault

	OutputWriter io.Writer // destination for host-visible diagnostic output

	// Diagnostics (opt-in; nil unless enabled by the host).
	Trace         *ExecutionTrace
	Coverage      *CodeCoverage
	Statistics    *PerformanceStatistics
	StackTrace    *StackTrace
	RegisterTrace *RegisterTrace

	// pcWritten records whether the instruction just executed assigned PC
	// itself (taken branch, JAL, JALR). Step consults it once per
	// instruction and resets it before the next Execute call.
	pcWritten bool

	rng *rand.Rand
}

// NewVM constructs a VM with the given reset policy. ResetZero (the CLI
// default) zeroes all registers and RAM for reproducible runs; ResetRandom
// seeds non-zero registers and RAM with arbitrary values, matching the
// original interpreter's behavior of deliberately exposing uninitialized
// reads in guest programs.
func NewVM(policy ResetPolicy) *VM {
	rng := rand.New(rand.NewSource(1)) //nolint:gosec // not used for anything security-sensitive
	return &VM{
		Registers:    newRegisterFile(policy, rng),
		MCU:          newMCU(policy, rng),
		State:        StateReady,
		MaxCycles:    DefaultMaxCycles,
		OutputWriter: os.Stdout,
		rng:          rng,
	}
}

// LoadROM copies a program image into the ROM region starting at address 0.
func (vm *VM) LoadROM(data []byte) error {
	return vm.MCU.LoadROM(data)
}

// Step performs exactly one architectural step: fetch a word at PC, decode
// it, execute it, and (unless the instruction itself assigned PC) advance PC
// by 4. Faults surface immediately; the host decides whether to resume.
func (vm *VM) Step() error {
	if vm.State == StateFault {
		return fmt.Errorf("VM is halted on a prior fault: %w", vm.LastFault)
	}
	if vm.MaxCycles > 0 && vm.Cycles >= vm.MaxCycles {
		f := newFault(FaultCycleLimit, vm.PC.Get(), "cycle limit of %d exceeded", vm.MaxCycles)
		return vm.fail(f)
	}

	pcBefore := vm.PC.Get()

	word, err := vm.MCU.Read(pcBefore, 4)
	if err != nil {
		return vm.fail(err)
	}

	inst, err := Decode(word)
	if err != nil {
		if f, ok := err.(*Fault); ok {
			f.Address = pcBefore
		}
		return vm.fail(err)
	}

	var regsBefore [NumRegisters]uint32
	if (vm.RegisterTrace != nil && vm.RegisterTrace.Enabled) || (vm.StackTrace != nil && vm.StackTrace.Enabled) {
		regsBefore = vm.Registers.Snapshot()
	}

	vm.pcWritten = false
	vm.State = StateRunning

	if err := vm.Execute(inst); err != nil {
		return vm.fail(err)
	}

	if !vm.pcWritten {
		vm.PC.Advance(4)
	}
	vm.Cycles++
	vm.State = StateReady

	vm.recordDiagnostics(pcBefore, inst, regsBefore)

	return nil
}

// Resume clears a prior fault so the host can continue stepping. It is the
// host's responsibility to decide this is safe: for FaultEnvironmentCall and
// FaultBreakpoint that's normal (the VM itself has no syscall/trap handling
// to run), for the other fault kinds the host typically inspects state
// first. PC and registers are left exactly as the faulting step committed
// them — see the core error-handling design on partial commits.
func (vm *VM) Resume() {
	vm.State = StateReady
	vm.LastFault = nil
}

func (vm *VM) fail(err error) error {
	if f, ok := err.(*Fault); ok {
		vm.LastFault = f
	}
	vm.State = StateFault
	return err
}

func (vm *VM) recordDiagnostics(pc uint32, inst *Instruction, regsBefore [NumRegisters]uint32) {
	if vm.Coverage != nil && vm.Coverage.Enabled {
		vm.Coverage.RecordExecution(pc, vm.Cycles)
	}
	if vm.Trace != nil && vm.Trace.Enabled {
		vm.Trace.Record(vm.Cycles, pc, inst.Raw, vm.Registers)
	}
	if vm.RegisterTrace != nil && vm.RegisterTrace.Enabled {
		after := vm.Registers.Snapshot()
		for i := 0; i < NumRegisters; i++ {
			if after[i] != regsBefore[i] {
				vm.RegisterTrace.RecordWrite(vm.Cycles, pc, registerName(i), regsBefore[i], after[i])
			}
		}
	}
	if vm.StackTrace != nil && vm.StackTrace.Enabled {
		before := regsBefore[StackPointerRegister]
		after := vm.Registers.Read(StackPointerRegister)
		vm.StackTrace.RecordSPMove(vm.Cycles, pc, before, after)
	}
	if vm.Statistics != nil && vm.Statistics.Enabled {
		vm.Statistics.RecordInstruction(inst, vm.Cycles)
	}
}

func registerName(i int) string {
	if i == 0 {
		return "x0"
	}
	return fmt.Sprintf("x%d", i)
}
