package vm

import "testing"

func newTestVM(t *testing.T) *VM {
	t.Helper()
	return NewVM(ResetZero)
}

func loadWordAt(t *testing.T, vm *VM, addr uint32, word uint32) {
	t.Helper()
	if err := vm.MCU.Write(addr, word, 4); err != nil {
		// ROM is read-only; tests that need ROM code use LoadROM directly.
		t.Fatalf("failed priming memory at 0x%X: %v", addr, err)
	}
}

// TestLUI covers spec scenario 1.
func TestLUI(t *testing.T) {
	vm := newTestVM(t)
	if err := vm.LoadROM(wordsToBytes(encodeU(OpLUI, 1, 0x12345))); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := vm.Registers.Read(1); got != 0x12345000 {
		t.Errorf("x1 = 0x%X, want 0x12345000", got)
	}
	if got := vm.PC.Get(); got != 4 {
		t.Errorf("PC = 0x%X, want 4", got)
	}
}

// TestADDINegativeOne covers spec scenario 2.
func TestADDINegativeOne(t *testing.T) {
	vm := newTestVM(t)
	if err := vm.LoadROM(wordsToBytes(encodeI(OpOpImm, 1, Funct3AddSub, 0, -1))); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := vm.Registers.Read(1); got != 0xFFFFFFFF {
		t.Errorf("x1 = 0x%X, want 0xFFFFFFFF", got)
	}
}

// TestADDWraps covers spec scenario 3: ADD x3, x1, x2 wraps modulo 2^32.
func TestADDWraps(t *testing.T) {
	vm := newTestVM(t)
	vm.Registers.Write(1, 0xFFFFFFFE)
	vm.Registers.Write(2, 5)
	if err := vm.LoadROM(wordsToBytes(encodeR(OpOp, 3, Funct3AddSub, 1, 2, Funct7Base))); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := vm.Registers.Read(3); got != 3 {
		t.Errorf("x3 = %d, want 3", got)
	}
}

// TestSLTvsSLTU covers spec scenario 4.
func TestSLTvsSLTU(t *testing.T) {
	vm := newTestVM(t)
	vm.Registers.Write(1, 0xFFFFFFFF) // -1 signed
	vm.Registers.Write(2, 1)

	if err := vm.LoadROM(wordsToBytes(encodeR(OpOp, 5, Funct3SLT, 1, 2, Funct7Base))); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := vm.Registers.Read(5); got != 1 {
		t.Errorf("SLT x5 = %d, want 1", got)
	}

	vm2 := newTestVM(t)
	vm2.Registers.Write(1, 0xFFFFFFFF)
	vm2.Registers.Write(2, 1)
	if err := vm2.LoadROM(wordsToBytes(encodeR(OpOp, 5, Funct3SLTU, 1, 2, Funct7Base))); err != nil {
		t.Fatal(err)
	}
	if err := vm2.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := vm2.Registers.Read(5); got != 0 {
		t.Errorf("SLTU x5 = %d, want 0", got)
	}
}

// TestBEQTaken covers spec scenario 5.
func TestBEQTaken(t *testing.T) {
	vm := newTestVM(t)
	vm.PC.Set(0x100)
	word := encodeB(Funct3BEQ, 0, 0, 8)
	if err := vm.LoadROM(append(make([]byte, 0x100), wordsToBytes(word)...)); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := vm.PC.Get(); got != 0x108 {
		t.Errorf("PC = 0x%X, want 0x108", got)
	}
}

// TestJAL covers spec scenario 6.
func TestJAL(t *testing.T) {
	vm := newTestVM(t)
	vm.PC.Set(0x200)
	word := encodeJ(1, -4)
	if err := vm.LoadROM(append(make([]byte, 0x200), wordsToBytes(word)...)); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := vm.Registers.Read(1); got != 0x204 {
		t.Errorf("x1 = 0x%X, want 0x204", got)
	}
	if got := vm.PC.Get(); got != 0x1FC {
		t.Errorf("PC = 0x%X, want 0x1FC", got)
	}
}

// TestSWLWRoundTrip covers spec scenario 7.
func TestSWLWRoundTrip(t *testing.T) {
	vm := newTestVM(t)
	vm.Registers.Write(1, RAMStart+0x10) // base address
	vm.Registers.Write(2, 0xDEADBEEF)    // value to store

	swWord := encodeS(OpStore, Funct3SW, 1, 2, 0)
	lwWord := encodeI(OpLoad, 7, Funct3LW, 1, 0)

	if err := vm.LoadROM(wordsToBytes(swWord, lwWord)); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := vm.Step(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := vm.Registers.Read(7); got != 0xDEADBEEF {
		t.Errorf("x7 = 0x%X, want 0xDEADBEEF", got)
	}
}

// TestLBvsLBU covers spec scenario 8.
func TestLBvsLBU(t *testing.T) {
	vm := newTestVM(t)
	if err := vm.MCU.Write(RAMStart, 0xFF, 1); err != nil {
		t.Fatal(err)
	}
	vm.Registers.Write(1, RAMStart)

	lbWord := encodeI(OpLoad, 2, Funct3LB, 1, 0)
	if err := vm.LoadROM(wordsToBytes(lbWord)); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if got := vm.Registers.Read(2); got != 0xFFFFFFFF {
		t.Errorf("LB result = 0x%X, want 0xFFFFFFFF", got)
	}

	vm2 := newTestVM(t)
	if err := vm2.MCU.Write(RAMStart, 0xFF, 1); err != nil {
		t.Fatal(err)
	}
	vm2.Registers.Write(1, RAMStart)
	lbuWord := encodeI(OpLoad, 2, Funct3LBU, 1, 0)
	if err := vm2.LoadROM(wordsToBytes(lbuWord)); err != nil {
		t.Fatal(err)
	}
	if err := vm2.Step(); err != nil {
		t.Fatal(err)
	}
	if got := vm2.Registers.Read(2); got != 0x000000FF {
		t.Errorf("LBU result = 0x%X, want 0xFF", got)
	}
}

// TestSRAIvsSRLI covers spec scenario 9.
func TestSRAIvsSRLI(t *testing.T) {
	vm := newTestVM(t)
	vm.Registers.Write(2, 0x80000000)
	sraiWord := uint32(Funct7Alt)<<25 | 4<<20 | 2<<15 | Funct3SRLSRA<<12 | 1<<7 | OpOpImm
	if err := vm.LoadROM(wordsToBytes(sraiWord)); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if got := vm.Registers.Read(1); got != 0xF8000000 {
		t.Errorf("SRAI result = 0x%X, want 0xF8000000", got)
	}

	vm2 := newTestVM(t)
	vm2.Registers.Write(2, 0x80000000)
	srliWord := uint32(Funct7Base)<<25 | 4<<20 | 2<<15 | Funct3SRLSRA<<12 | 1<<7 | OpOpImm
	if err := vm2.LoadROM(wordsToBytes(srliWord)); err != nil {
		t.Fatal(err)
	}
	if err := vm2.Step(); err != nil {
		t.Fatal(err)
	}
	if got := vm2.Registers.Read(1); got != 0x08000000 {
		t.Errorf("SRLI result = 0x%X, want 0x08000000", got)
	}
}

// TestStoreToROMIsWriteProtectFault covers spec scenario 10.
func TestStoreToROMIsWriteProtectFault(t *testing.T) {
	vm := newTestVM(t)
	vm.Registers.Write(1, ROMStart)
	vm.Registers.Write(2, 0x11111111)
	swWord := encodeS(OpStore, Funct3SW, 1, 2, 0)
	if err := vm.LoadROM(wordsToBytes(swWord)); err != nil {
		t.Fatal(err)
	}
	err := vm.Step()
	if err == nil {
		t.Fatal("expected write-protect fault")
	}
	var f *Fault
	if !asFault(err, &f) || f.Kind != FaultWriteProtect {
		t.Fatalf("expected FaultWriteProtect, got %v", err)
	}
	v, _ := vm.MCU.Read(ROMStart, 4)
	if v != swWord {
		t.Errorf("ROM contents changed after failed write: got 0x%X", v)
	}
}

func TestJALRAliasingRdAndRs1(t *testing.T) {
	vm := newTestVM(t)
	vm.PC.Set(0x1000)
	vm.Registers.Write(1, 0x2000)
	// JALR x1, x1, 4  -- rd and rs1 alias; link value must use the
	// pre-jump PC, not the new x1.
	word := encodeI(OpJALR, 1, 0, 1, 4)
	if err := vm.LoadROM(append(make([]byte, 0x1000), wordsToBytes(word)...)); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := vm.Registers.Read(1); got != 0x1004 {
		t.Errorf("x1 (link) = 0x%X, want 0x1004", got)
	}
	if got := vm.PC.Get(); got != 0x2004 {
		t.Errorf("PC = 0x%X, want 0x2004", got)
	}
}

func TestJALMisalignedTargetCommitsLinkThenFaults(t *testing.T) {
	vm := newTestVM(t)
	vm.PC.Set(0x1000)
	// JAL x1, 2 -- target 0x1002 is misaligned.
	word := encodeJ(1, 2)
	if err := vm.LoadROM(append(make([]byte, 0x1000), wordsToBytes(word)...)); err != nil {
		t.Fatal(err)
	}
	err := vm.Step()
	if err == nil {
		t.Fatal("expected instruction-address-misaligned fault")
	}
	var f *Fault
	if !asFault(err, &f) || f.Kind != FaultMisaligned {
		t.Fatalf("expected FaultMisaligned, got %v", err)
	}
	// The link register write logically precedes the misalignment check
	// and must still be committed.
	if got := vm.Registers.Read(1); got != 0x1004 {
		t.Errorf("x1 (link) after misaligned jump = 0x%X, want 0x1004", got)
	}
}

func TestSLLIRejectsNonZeroUpper7(t *testing.T) {
	vm := newTestVM(t)
	vm.Registers.Write(1, 1)
	// SLLI with upper7 = 0100000 (invalid for SLLI) must be illegal.
	word := uint32(Funct7Alt)<<25 | 1<<20 | 1<<15 | Funct3SLL<<12 | 2<<7 | OpOpImm
	if err := vm.LoadROM(wordsToBytes(word)); err != nil {
		t.Fatal(err)
	}
	err := vm.Step()
	var f *Fault
	if !asFault(err, &f) || f.Kind != FaultIllegalInstruction {
		t.Fatalf("expected FaultIllegalInstruction, got %v", err)
	}
}

func TestUnconditionalBranchDoesNotDoubleAdvancePC(t *testing.T) {
	vm := newTestVM(t)
	vm.PC.Set(0x100)
	word := encodeB(Funct3BEQ, 0, 0, 4) // branch to 0x104, aligned
	if err := vm.LoadROM(append(make([]byte, 0x100), wordsToBytes(word)...)); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if got := vm.PC.Get(); got != 0x104 {
		t.Errorf("PC = 0x%X, want 0x104 (not 0x108)", got)
	}
}

func TestWriteToZeroRegisterIsDropped(t *testing.T) {
	vm := newTestVM(t)
	word := encodeI(OpOpImm, 0, Funct3AddSub, 0, 5) // ADDI x0, x0, 5
	if err := vm.LoadROM(wordsToBytes(word)); err != nil {
		t.Fatal(err)
	}
	if err := vm.Step(); err != nil {
		t.Fatal(err)
	}
	if got := vm.Registers.Read(0); got != 0 {
		t.Errorf("x0 = %d, want 0", got)
	}
}

// wordsToBytes little-endian-encodes a sequence of 32-bit words for loading
// into ROM as a flat program image.
func wordsToBytes(words ...uint32) []byte {
	out := make([]byte, 0, len(words)*4)
	for _, w := range words {
		out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return out
}
