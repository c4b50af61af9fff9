package vm

import "testing"

func TestZeroRegisterAlwaysReadsZero(t *testing.T) {
	rf := newRegisterFile(ResetZero, nil)
	rf.Write(0, 0xDEADBEEF)
	if got := rf.Read(0); got != 0 {
		t.Errorf("x0 = 0x%X after write, want 0", got)
	}
}

func TestRegisterWriteMasksTo32Bits(t *testing.T) {
	rf := newRegisterFile(ResetZero, nil)
	rf.Write(5, 0xFFFFFFFF)
	if got := rf.Read(5); got != 0xFFFFFFFF {
		t.Errorf("x5 = 0x%X, want 0xFFFFFFFF", got)
	}
}

func TestReadCheckedRejectsOutOfRange(t *testing.T) {
	rf := newRegisterFile(ResetZero, nil)
	if _, err := rf.ReadChecked(32); err == nil {
		t.Error("expected error reading register 32")
	}
	if _, err := rf.ReadChecked(-1); err == nil {
		t.Error("expected error reading register -1")
	}
	if _, err := rf.ReadChecked(31); err != nil {
		t.Errorf("unexpected error reading register 31: %v", err)
	}
}

func TestWriteCheckedRejectsOutOfRange(t *testing.T) {
	rf := newRegisterFile(ResetZero, nil)
	if err := rf.WriteChecked(32, 1); err == nil {
		t.Error("expected error writing register 32")
	}
}

func TestProgramCounterWrapsOnAdvance(t *testing.T) {
	var pc ProgramCounter
	pc.Set(0xFFFFFFFE)
	pc.Advance(4)
	if got := pc.Get(); got != 2 {
		t.Errorf("PC after wrap = 0x%X, want 0x2", got)
	}
}
