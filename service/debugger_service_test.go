package service_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lookbusy1344/rv32i-emulator/service"
	"github.com/lookbusy1344/rv32i-emulator/vm"
)

func wordsToBytes(words ...uint32) []byte {
	out := make([]byte, 0, len(words)*4)
	for _, w := range words {
		out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return out
}

func addi(rd, rs1 int, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | uint32(rs1)<<15 | uint32(vm.Funct3AddSub)<<12 | uint32(rd)<<7 | uint32(vm.OpOpImm)
}

func ecall() uint32 {
	return uint32(vm.OpSystem)
}

func writeROM(t *testing.T, words ...uint32) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.bin")
	if err := os.WriteFile(path, wordsToBytes(words...), 0600); err != nil {
		t.Fatalf("failed to write test ROM: %v", err)
	}
	return path
}

func TestNewDebuggerService(t *testing.T) {
	machine := vm.NewVM(vm.ResetZero)
	svc := service.NewDebuggerService(machine)

	if svc == nil {
		t.Fatal("expected service instance, got nil")
	}
	if svc.GetVM() != machine {
		t.Error("service VM mismatch")
	}
}

func TestDebuggerService_LoadROM(t *testing.T) {
	machine := vm.NewVM(vm.ResetZero)
	svc := service.NewDebuggerService(machine)

	path := writeROM(t, addi(1, 0, 42), addi(2, 0, 100), ecall())

	if err := svc.LoadROM(path, "flat", 0); err != nil {
		t.Fatalf("LoadROM failed: %v", err)
	}

	state := svc.GetRegisterState()
	if state.PC != 0 {
		t.Errorf("expected PC=0, got 0x%08X", state.PC)
	}
}

func TestDebuggerService_StepAndRegisterState(t *testing.T) {
	machine := vm.NewVM(vm.ResetZero)
	svc := service.NewDebuggerService(machine)

	path := writeROM(t, addi(1, 0, 42), addi(2, 0, 100), ecall())
	if err := svc.LoadROM(path, "flat", 0); err != nil {
		t.Fatalf("LoadROM failed: %v", err)
	}

	if err := svc.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	state := svc.GetRegisterState()
	if state.Registers[1] != 42 {
		t.Errorf("expected x1=42, got %d", state.Registers[1])
	}
	if state.PC != 4 {
		t.Errorf("expected PC=4, got 0x%08X", state.PC)
	}
}

func TestDebuggerService_RunUntilHalt(t *testing.T) {
	machine := vm.NewVM(vm.ResetZero)
	svc := service.NewDebuggerService(machine)

	path := writeROM(t, addi(1, 0, 42), addi(2, 0, 100), ecall())
	if err := svc.LoadROM(path, "flat", 0); err != nil {
		t.Fatalf("LoadROM failed: %v", err)
	}

	svc.SetRunning(true)
	if err := svc.RunUntilHalt(); err != nil {
		t.Fatalf("RunUntilHalt failed: %v", err)
	}

	state := svc.GetRegisterState()
	if state.Registers[1] != 42 || state.Registers[2] != 100 {
		t.Errorf("unexpected final registers: x1=%d x2=%d", state.Registers[1], state.Registers[2])
	}
	if svc.IsRunning() {
		t.Error("expected execution to have stopped at ECALL")
	}
}

func TestDebuggerService_Breakpoints(t *testing.T) {
	machine := vm.NewVM(vm.ResetZero)
	svc := service.NewDebuggerService(machine)

	if err := svc.AddBreakpoint(0x10); err != nil {
		t.Fatalf("AddBreakpoint failed: %v", err)
	}

	bps := svc.GetBreakpoints()
	if len(bps) != 1 || bps[0].Address != 0x10 {
		t.Fatalf("expected one breakpoint at 0x10, got %+v", bps)
	}

	if err := svc.RemoveBreakpoint(0x10); err != nil {
		t.Fatalf("RemoveBreakpoint failed: %v", err)
	}
	if len(svc.GetBreakpoints()) != 0 {
		t.Error("expected no breakpoints after removal")
	}
}

func TestDebuggerService_Reset(t *testing.T) {
	machine := vm.NewVM(vm.ResetZero)
	svc := service.NewDebuggerService(machine)

	path := writeROM(t, addi(1, 0, 42), ecall())
	if err := svc.LoadROM(path, "flat", 0); err != nil {
		t.Fatalf("LoadROM failed: %v", err)
	}
	if err := svc.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	if err := svc.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	state := svc.GetRegisterState()
	if state.Registers[1] != 0 || state.PC != 0 {
		t.Errorf("expected clean state after reset, got x1=%d pc=0x%08X", state.Registers[1], state.PC)
	}
}

func TestDebuggerService_Symbols(t *testing.T) {
	machine := vm.NewVM(vm.ResetZero)
	svc := service.NewDebuggerService(machine)

	svc.LoadSymbols(map[string]uint32{"_start": 0x0, "loop": 0x10})

	if got := svc.GetSymbolForAddress(0x10); got != "loop" {
		t.Errorf("expected symbol 'loop' at 0x10, got %q", got)
	}
	if got := svc.GetSymbolForAddress(0x20); got != "" {
		t.Errorf("expected no symbol at 0x20, got %q", got)
	}
}

func TestDebuggerService_Statistics(t *testing.T) {
	machine := vm.NewVM(vm.ResetZero)
	svc := service.NewDebuggerService(machine)

	if _, err := svc.GetStatistics(); err == nil {
		t.Error("expected error before statistics enabled")
	}

	svc.EnableStatistics()
	stats, err := svc.GetStatistics()
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if !stats.Enabled {
		t.Error("expected statistics to be enabled")
	}
}
