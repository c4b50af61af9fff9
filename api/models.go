package api

import (
	"time"

	"github.com/lookbusy1344/rv32i-emulator/service"
	"github.com/lookbusy1344/rv32i-emulator/vm"
)

// SessionCreateRequest represents a request to create a new session
type SessionCreateRequest struct {
	Randomize bool `json:"randomize,omitempty"` // Use ResetRandom instead of ResetZero
}

// SessionCreateResponse represents the response from creating a session
type SessionCreateResponse struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStatusResponse represents the current status of a session
type SessionStatusResponse struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	PC        uint32 `json:"pc"`
	Cycles    uint64 `json:"cycles"`
	Error     string `json:"error,omitempty"`
}

// LoadROMRequest represents a request to load a program image
type LoadROMRequest struct {
	Path       string `json:"path"`       // Path to the program image on disk
	Format     string `json:"format"`     // "flat" or "hex"
	EntryPoint uint32 `json:"entryPoint"` // Initial PC value
}

// LoadROMResponse represents the response from loading a program
type LoadROMResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RegistersResponse represents the current register state
type RegistersResponse struct {
	Registers [vm.NumRegisters]uint32 `json:"registers"`
	PC        uint32                  `json:"pc"`
	Cycles    uint64                  `json:"cycles"`
	State     string                  `json:"state"`
}

// MemoryRequest represents a request for memory data
type MemoryRequest struct {
	Address uint32 `json:"address"`
	Length  uint32 `json:"length"`
}

// MemoryResponse represents memory data
type MemoryResponse struct {
	Address uint32 `json:"address"`
	Data    []byte `json:"data"`
	Length  uint32 `json:"length"`
}

// DisassemblyRequest represents a request for disassembly
type DisassemblyRequest struct {
	Address uint32 `json:"address"`
	Count   uint32 `json:"count"`
}

// DisassemblyResponse represents disassembled instructions
type DisassemblyResponse struct {
	Instructions []InstructionInfo `json:"instructions"`
}

// InstructionInfo represents a single raw instruction word at an address
type InstructionInfo struct {
	Address     uint32 `json:"address"`
	MachineCode uint32 `json:"machineCode"`
	Symbol      string `json:"symbol,omitempty"`
}

// BreakpointRequest represents a request to add/remove a breakpoint
type BreakpointRequest struct {
	Address uint32 `json:"address"`
}

// BreakpointsResponse represents a list of breakpoints
type BreakpointsResponse struct {
	Breakpoints []uint32 `json:"breakpoints"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// SuccessResponse represents a simple success response
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Event represents a WebSocket event
type Event struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// StateEvent represents a state change event
type StateEvent struct {
	State     string                  `json:"state"`
	PC        uint32                  `json:"pc"`
	Registers [vm.NumRegisters]uint32 `json:"registers"`
	Cycles    uint64                  `json:"cycles"`
}

// OutputEvent represents console output
type OutputEvent struct {
	Stream  string `json:"stream"`  // "stdout" or "stderr"
	Content string `json:"content"` // Output content
}

// ExecutionEvent represents execution events like breakpoints and faults
type ExecutionEvent struct {
	Event   string `json:"event"` // "breakpoint_hit", "fault", "ecall"
	Address uint32 `json:"address,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
	Message string `json:"message,omitempty"`
}

// ToRegisterResponse converts service.RegisterState to API response
func ToRegisterResponse(regs *service.RegisterState) *RegistersResponse {
	return &RegistersResponse{
		Registers: regs.Registers,
		PC:        regs.PC,
		Cycles:    regs.Cycles,
		State:     string(regs.State),
	}
}

// ToInstructionInfo converts service.DisassemblyLine to API response
func ToInstructionInfo(line *service.DisassemblyLine) InstructionInfo {
	return InstructionInfo{
		Address:     line.Address,
		MachineCode: line.Opcode,
		Symbol:      line.Symbol,
	}
}

// WatchpointRequest represents a request to add a watchpoint
type WatchpointRequest struct {
	Address uint32 `json:"address"`
	Type    string `json:"type,omitempty"` // "read", "write", or "readwrite"
}

// WatchpointResponse represents a single created watchpoint
type WatchpointResponse struct {
	ID      int    `json:"id"`
	Address uint32 `json:"address"`
	Type    string `json:"type"`
}

// WatchpointsResponse represents a list of watchpoints
type WatchpointsResponse struct {
	Watchpoints []service.WatchpointInfo `json:"watchpoints"`
}

// TraceEntryInfo represents a single recorded execution trace entry
type TraceEntryInfo struct {
	Sequence        uint64            `json:"sequence"`
	Address         uint32            `json:"address"`
	Opcode          uint32            `json:"opcode"`
	RegisterChanges map[string]uint32 `json:"registerChanges"`
}

// TraceDataResponse represents a batch of execution trace entries
type TraceDataResponse struct {
	Entries []TraceEntryInfo `json:"entries"`
	Count   int              `json:"count"`
}

// StatisticsResponse represents performance statistics for a session
type StatisticsResponse struct {
	TotalInstructions uint64            `json:"totalInstructions"`
	TotalCycles       uint64            `json:"totalCycles"`
	InstructionCounts map[string]uint64 `json:"instructionCounts"`
	BranchCount       uint64            `json:"branchCount"`
	BranchTakenCount  uint64            `json:"branchTakenCount"`
	MemoryReads       uint64            `json:"memoryReads"`
	MemoryWrites      uint64            `json:"memoryWrites"`
}

// ExecutionConfig holds execution-related configuration
type ExecutionConfig struct {
	MaxCycles      uint64 `json:"maxCycles"`
	EnableTrace    bool   `json:"enableTrace"`
	EnableMemTrace bool   `json:"enableMemTrace"`
	EnableStats    bool   `json:"enableStats"`
}

// DebuggerConfig holds debugger-related configuration
type DebuggerConfig struct {
	HistorySize    int  `json:"historySize"`
	AutoSaveBreaks bool `json:"autoSaveBreaks"`
	ShowSource     bool `json:"showSource"`
	ShowRegisters  bool `json:"showRegisters"`
}

// DisplayConfig holds display-related configuration
type DisplayConfig struct {
	ColorOutput   bool   `json:"colorOutput"`
	BytesPerLine  int    `json:"bytesPerLine"`
	DisasmContext int    `json:"disasmContext"`
	NumberFormat  string `json:"numberFormat"`
}

// TraceConfig holds execution-trace output configuration
type TraceConfig struct {
	OutputFile string `json:"outputFile"`
	FilterRegs string `json:"filterRegs"`
	MaxEntries int    `json:"maxEntries"`
}

// StatisticsConfig holds statistics output configuration
type StatisticsConfig struct {
	OutputFile string `json:"outputFile"`
	Format     string `json:"format"`
}

// ConfigResponse represents the server's current configuration
type ConfigResponse struct {
	Execution  ExecutionConfig  `json:"execution"`
	Debugger   DebuggerConfig   `json:"debugger"`
	Display    DisplayConfig    `json:"display"`
	Trace      TraceConfig      `json:"trace"`
	Statistics StatisticsConfig `json:"statistics"`
}

// ExampleInfo describes a single example program available to load
type ExampleInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ExamplesResponse represents a list of available example programs
type ExamplesResponse struct {
	Examples []ExampleInfo `json:"examples"`
	Count    int           `json:"count"`
}

// ExampleContentResponse represents the raw bytes of an example program
type ExampleContentResponse struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
	Size    int64  `json:"size"`
}
