package service

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lookbusy1344/rv32i-emulator/debugger"
	"github.com/lookbusy1344/rv32i-emulator/loader"
	"github.com/lookbusy1344/rv32i-emulator/vm"
)

const (
	maxDisassemblyCount = 1000 // Maximum number of instructions to disassemble
	maxStackCount       = 1000 // Maximum number of stack entries to return
	maxStackOffset      = 100000
	stepsBeforeYield    = 1000 // Yield every N steps during execution
)

var serviceLog *log.Logger

func init() {
	if os.Getenv("RV32I_EMULATOR_DEBUG") != "" {
		logPath := filepath.Join(os.TempDir(), "rv32i-emulator-service-debug.log")
		f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) // #nosec G304 -- fixed filename in temp dir
		if err != nil {
			serviceLog = log.New(os.Stderr, "SERVICE: ", log.Ltime|log.Lmicroseconds|log.Lshortfile)
		} else {
			serviceLog = log.New(f, "SERVICE: ", log.Ltime|log.Lmicroseconds|log.Lshortfile)
		}
	} else {
		serviceLog = log.New(io.Discard, "", 0)
	}
}

// DebuggerService provides a thread-safe interface to debugger functionality.
// The API server drives it; the TUI and GUI use debugger.Debugger directly.
//
// Lock ordering: the service's own sync.RWMutex (s.mu) protects all field
// access, including access to the debugger. Debugger methods with their own
// internal state (like ShouldBreak) are only ever called while holding s.mu,
// never the reverse.
type DebuggerService struct {
	mu              sync.RWMutex
	vm              *vm.VM
	resetPolicy     vm.ResetPolicy
	debugger        *debugger.Debugger
	symbols         map[string]uint32
	sourceMapByAddr map[uint32]string
	entryPoint      uint32
	outputWriter    *EventEmittingWriter
	onStateChanged  func(ExecutionState)
	traceBuffer     bytes.Buffer
}

// SetStateChangedCallback wires a callback invoked whenever execution state
// transitions (e.g. for the API's WebSocket broadcaster to push state
// updates to subscribers).
func (s *DebuggerService) SetStateChangedCallback(callback func(ExecutionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChanged = callback
}

func (s *DebuggerService) notifyStateChangedLocked() {
	if s.onStateChanged != nil {
		s.onStateChanged(VMStateToExecution(s.vm.State))
	}
}

// NewDebuggerService creates a new debugger service wrapping machine.
func NewDebuggerService(machine *vm.VM) *DebuggerService {
	return &DebuggerService{
		vm:              machine,
		resetPolicy:     vm.ResetZero,
		debugger:        debugger.NewDebugger(machine),
		symbols:         make(map[string]uint32),
		sourceMapByAddr: make(map[uint32]string),
	}
}

// GetVM returns the underlying VM (for testing).
func (s *DebuggerService) GetVM() *vm.VM {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vm
}

// SetOutputCallback wires a callback that receives guest program output as
// it's written, for a host (e.g. the API's WebSocket broadcaster) to forward
// to subscribers.
func (s *DebuggerService) SetOutputCallback(onOutput func(string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outputWriter = NewEventEmittingWriter(onOutput)
	s.vm.OutputWriter = s.outputWriter
}

// LoadROM loads a program image from disk and resets execution to entry.
// format is "flat" for a raw instruction stream or "hex" for Intel HEX.
func (s *DebuggerService) LoadROM(path string, format string, entryPoint uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch format {
	case "hex":
		err = loader.LoadIntelHex(s.vm, path)
	default:
		err = loader.LoadFlatBinary(s.vm, path)
	}
	if err != nil {
		return err
	}

	s.entryPoint = entryPoint
	s.vm.PC.Set(entryPoint)
	s.vm.Resume()
	s.debugger.Running = false

	return nil
}

// LoadSymbols installs a label-to-address table for expression/backtrace
// resolution. There is no assembler in front of this VM, so symbols come
// from an external map (e.g. a linker map file) rather than a parsed program.
func (s *DebuggerService) LoadSymbols(symbols map[string]uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.symbols = symbols
	s.debugger.LoadSymbols(symbols)
}

// LoadSourceMap installs an address-to-disassembly-line table for debugger
// display (the `list`/TUI source panel).
func (s *DebuggerService) LoadSourceMap(sourceMap map[uint32]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sourceMapByAddr = sourceMap
	s.debugger.LoadSourceMap(sourceMap)
}

// GetRegisterState returns current register state (thread-safe).
func (s *DebuggerService) GetRegisterState() RegisterState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return RegisterState{
		Registers: s.vm.Registers.Snapshot(),
		PC:        s.vm.PC.Get(),
		Cycles:    s.vm.Cycles,
		State:     VMStateToExecution(s.vm.State),
	}
}

// Step executes a single instruction.
func (s *DebuggerService) Step() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.vm.Step()
	s.notifyStateChangedLocked()
	return err
}

// Continue marks the debugger as running with no step mode. It executes no
// instructions itself; RunUntilHalt does the stepping.
func (s *DebuggerService) Continue() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.debugger.Running = true
	s.debugger.StepMode = debugger.StepNone
	return nil
}

// Pause pauses execution.
func (s *DebuggerService) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugger.Running = false
	s.notifyStateChangedLocked()
}

// Reset discards the VM's architectural state and returns it to a pristine
// machine built with s.resetPolicy, which NewDebuggerService sets to
// vm.ResetZero whatever policy the wrapped VM was created with. ROM contents, breakpoints, and
// watchpoints are cleared along with it: there is no way to "keep the
// program but reset registers" short of reloading the ROM image.
func (s *DebuggerService) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vm = vm.NewVM(s.resetPolicy)
	s.debugger = debugger.NewDebugger(s.vm)
	s.entryPoint = 0
	s.symbols = make(map[string]uint32)
	s.sourceMapByAddr = make(map[uint32]string)
	s.notifyStateChangedLocked()

	return nil
}

// ResetToEntryPoint resets PC to the last-loaded entry point and clears a
// prior fault, without reloading or erasing memory.
func (s *DebuggerService) ResetToEntryPoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vm.PC.Set(s.entryPoint)
	s.vm.Resume()
	s.debugger.Running = false
	return nil
}

// GetExecutionState returns current execution state.
func (s *DebuggerService) GetExecutionState() ExecutionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return VMStateToExecution(s.vm.State)
}

// AddBreakpoint adds a breakpoint at the specified address.
func (s *DebuggerService) AddBreakpoint(address uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.debugger.Breakpoints.AddBreakpoint(address, false, "")
	return nil
}

// RemoveBreakpoint removes a breakpoint.
func (s *DebuggerService) RemoveBreakpoint(address uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debugger.Breakpoints.DeleteBreakpointAt(address)
}

// GetBreakpoints returns all breakpoints.
func (s *DebuggerService) GetBreakpoints() []BreakpointInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bps := s.debugger.Breakpoints.GetAllBreakpoints()
	result := make([]BreakpointInfo, len(bps))
	for i, bp := range bps {
		result[i] = BreakpointInfo{
			Address:   bp.Address,
			Enabled:   bp.Enabled,
			Condition: bp.Condition,
		}
	}
	return result
}

// ClearAllBreakpoints removes all breakpoints.
func (s *DebuggerService) ClearAllBreakpoints() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugger.Breakpoints.Clear()
}

// GetMemory returns memory contents for a region. Unmapped or unreadable
// bytes read as 0 so a memory view can show partial results at region
// boundaries instead of failing outright.
func (s *DebuggerService) GetMemory(address uint32, size uint32) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	serviceLog.Printf("GetMemory: address=0x%08X, size=%d", address, size)
	data := make([]byte, size)
	for i := uint32(0); i < size; i++ {
		word, err := s.vm.MCU.Read(address+i, 1)
		if err != nil {
			continue
		}
		data[i] = byte(word)
	}
	return data
}

// GetSourceLine returns the source/disassembly line for an address.
func (s *DebuggerService) GetSourceLine(address uint32) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourceMapByAddr[address]
}

// GetSourceMapByAddr returns the address-to-line lookup.
func (s *DebuggerService) GetSourceMapByAddr() map[uint32]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[uint32]string, len(s.sourceMapByAddr))
	for addr, line := range s.sourceMapByAddr {
		result[addr] = line
	}
	return result
}

// GetSymbols returns all symbols.
func (s *DebuggerService) GetSymbols() map[string]uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make(map[string]uint32, len(s.symbols))
	for k, v := range s.symbols {
		symbols[k] = v
	}
	return symbols
}

// GetSymbolForAddress resolves an address to a symbol name.
func (s *DebuggerService) GetSymbolForAddress(addr uint32) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getSymbolForAddressUnsafe(addr)
}

func (s *DebuggerService) getSymbolForAddressUnsafe(addr uint32) string {
	for name, symbolAddr := range s.symbols {
		if symbolAddr == addr {
			return name
		}
	}
	return ""
}

// RunUntilHalt runs the program until a fault, breakpoint, or explicit pause.
// If execution was already paused before this was called (e.g. a race with
// Pause), it returns immediately.
func (s *DebuggerService) RunUntilHalt() error {
	serviceLog.Println("RunUntilHalt() called")
	s.mu.Lock()
	if !s.debugger.Running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	stepCount := 0

	for {
		s.mu.Lock()
		if !s.debugger.Running {
			s.mu.Unlock()
			break
		}

		if shouldBreak, _ := s.debugger.ShouldBreak(); shouldBreak {
			serviceLog.Println("Breakpoint hit")
			s.debugger.Running = false
			s.notifyStateChangedLocked()
			s.mu.Unlock()
			break
		}

		err := s.vm.Step()
		if err != nil {
			s.debugger.Running = false
			fault, isFault := err.(*vm.Fault)
			s.notifyStateChangedLocked()
			s.mu.Unlock()
			if isFault && (fault.Kind == vm.FaultEnvironmentCall || fault.Kind == vm.FaultBreakpoint) {
				return nil
			}
			return err
		}
		s.mu.Unlock()

		stepCount++
		if stepCount >= stepsBeforeYield {
			stepCount = 0
			time.Sleep(1 * time.Millisecond)
		}
	}

	serviceLog.Println("RunUntilHalt() completed")
	return nil
}

// IsRunning returns whether execution is in progress.
func (s *DebuggerService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.debugger.Running
}

// SetRunning sets the running state synchronously, for async execution
// methods to flip before launching their goroutine.
func (s *DebuggerService) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debugger.Running = running
}

// GetOutput returns captured program output, clearing the buffer.
func (s *DebuggerService) GetOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outputWriter == nil {
		return ""
	}
	return s.outputWriter.GetBufferAndClear()
}

// GetDisassembly returns raw instruction words starting at address. Returns
// an empty slice on invalid input or truncates early on a memory fault.
func (s *DebuggerService) GetDisassembly(startAddr uint32, count int) []DisassemblyLine {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if count <= 0 || count > maxDisassemblyCount {
		return []DisassemblyLine{}
	}
	if startAddr&0x3 != 0 {
		return []DisassemblyLine{}
	}

	lines := make([]DisassemblyLine, 0, count)
	addr := startAddr

	for i := 0; i < count; i++ {
		opcode, err := s.vm.MCU.Read(addr, 4)
		if err != nil {
			break
		}

		lines = append(lines, DisassemblyLine{
			Address: addr,
			Opcode:  opcode,
			Symbol:  s.getSymbolForAddressUnsafe(addr),
		})
		addr += 4
	}

	return lines
}

// GetStack returns stack contents from sp+offset (offset in words).
func (s *DebuggerService) GetStack(offset int, count int) []StackEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if count <= 0 || count > maxStackCount {
		return []StackEntry{}
	}
	if offset < -maxStackOffset || offset > maxStackOffset {
		return []StackEntry{}
	}

	sp := s.vm.Registers.Read(vm.StackPointerRegister)

	offsetBytes := int64(offset) * 4
	newAddr := int64(sp) + offsetBytes
	if newAddr < 0 || newAddr > 0xFFFFFFFF {
		return []StackEntry{}
	}
	startAddr := uint32(newAddr)

	entries := make([]StackEntry, 0, count)
	for i := 0; i < count; i++ {
		nextAddr := int64(startAddr) + int64(i)*4
		if nextAddr < 0 || nextAddr > 0xFFFFFFFF {
			break
		}
		addr := uint32(nextAddr)

		value, err := s.vm.MCU.Read(addr, 4)
		if err != nil {
			break
		}

		entries = append(entries, StackEntry{
			Address: addr,
			Value:   value,
			Symbol:  s.getSymbolForAddressUnsafe(value),
		})
	}

	return entries
}

// StepOver executes one instruction, stepping over function calls.
func (s *DebuggerService) StepOver() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.debugger.SetStepOver()

	for s.debugger.Running {
		if s.debugger.StepMode != debugger.StepSingle {
			if shouldBreak, _ := s.debugger.ShouldBreak(); shouldBreak {
				s.debugger.Running = false
				break
			}
		}

		if err := s.vm.Step(); err != nil {
			s.debugger.Running = false
			return err
		}

		if s.debugger.StepMode == debugger.StepSingle {
			if shouldBreak, _ := s.debugger.ShouldBreak(); shouldBreak {
				s.debugger.Running = false
				break
			}
		}
	}

	return nil
}

// StepOut puts the debugger into step-out mode and returns without executing
// any instruction. A return from the current function is not detected; a
// following run stops only at a breakpoint, watchpoint or fault.
func (s *DebuggerService) StepOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.debugger.SetStepOut()
	return nil
}

// AddWatchpoint adds a watchpoint at the specified address.
func (s *DebuggerService) AddWatchpoint(address uint32, watchType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wpType debugger.WatchType
	switch watchType {
	case "read":
		wpType = debugger.WatchRead
	case "write":
		wpType = debugger.WatchWrite
	case "readwrite":
		wpType = debugger.WatchReadWrite
	default:
		return fmt.Errorf("invalid watchpoint type: %s", watchType)
	}

	expression := fmt.Sprintf("[0x%08X]", address)
	wp := s.debugger.Watchpoints.AddWatchpoint(wpType, expression, address, false, 0)
	return s.debugger.Watchpoints.InitializeWatchpoint(wp.ID, s.vm)
}

// RemoveWatchpoint removes a watchpoint by ID.
func (s *DebuggerService) RemoveWatchpoint(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debugger.Watchpoints.DeleteWatchpoint(id)
}

// GetWatchpoints returns all watchpoints.
func (s *DebuggerService) GetWatchpoints() []WatchpointInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wps := s.debugger.Watchpoints.GetAllWatchpoints()
	result := make([]WatchpointInfo, len(wps))
	for i, wp := range wps {
		var wpType string
		switch wp.Type {
		case debugger.WatchRead:
			wpType = "read"
		case debugger.WatchWrite:
			wpType = "write"
		case debugger.WatchReadWrite:
			wpType = "readwrite"
		}

		result[i] = WatchpointInfo{
			ID:      wp.ID,
			Address: wp.Address,
			Type:    wpType,
			Enabled: wp.Enabled,
		}
	}
	return result
}

// ExecuteCommand executes a debugger command and returns its output.
func (s *DebuggerService) ExecuteCommand(command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.debugger.ExecuteCommand(command)
	output := s.debugger.GetOutput()
	return output, err
}

// EvaluateExpression evaluates an expression and returns the result.
func (s *DebuggerService) EvaluateExpression(expr string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debugger.Evaluator.EvaluateExpression(expr, s.vm, s.symbols)
}

// EnableExecutionTrace enables execution tracing.
func (s *DebuggerService) EnableExecutionTrace() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vm.Trace == nil {
		s.vm.Trace = vm.NewExecutionTrace(&s.traceBuffer)
	}
	s.vm.Trace.Enabled = true
	return nil
}

// DisableExecutionTrace disables execution tracing.
func (s *DebuggerService) DisableExecutionTrace() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vm.Trace != nil {
		s.vm.Trace.Enabled = false
	}
}

// GetExecutionTraceData returns the recorded trace entries, or an error if
// tracing was never enabled.
func (s *DebuggerService) GetExecutionTraceData() ([]vm.TraceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vm.Trace == nil {
		return nil, fmt.Errorf("execution trace not enabled")
	}
	return s.vm.Trace.Entries(), nil
}

// ClearExecutionTrace discards recorded trace entries by installing a fresh
// trace in place of the current one, preserving the enabled/disabled state.
func (s *DebuggerService) ClearExecutionTrace() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vm.Trace == nil {
		return
	}
	enabled := s.vm.Trace.Enabled
	s.traceBuffer.Reset()
	s.vm.Trace = vm.NewExecutionTrace(&s.traceBuffer)
	s.vm.Trace.Enabled = enabled
}

// EnableStatistics enables performance statistics collection.
func (s *DebuggerService) EnableStatistics() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vm.Statistics == nil {
		s.vm.Statistics = vm.NewPerformanceStatistics()
	}
	s.vm.Statistics.Enabled = true
	return nil
}

// DisableStatistics disables performance statistics collection.
func (s *DebuggerService) DisableStatistics() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vm.Statistics != nil {
		s.vm.Statistics.Enabled = false
	}
}

// GetStatistics returns performance statistics, or an error if statistics
// collection was never enabled.
func (s *DebuggerService) GetStatistics() (*vm.PerformanceStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vm.Statistics == nil {
		return nil, fmt.Errorf("statistics not enabled")
	}
	return s.vm.Statistics, nil
}
