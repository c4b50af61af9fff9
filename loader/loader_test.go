package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lookbusy1344/rv32i-emulator/vm"
)

func TestLoadFlatBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "program.bin")
	image := []byte{0x13, 0x00, 0x00, 0x00} // ADDI x0, x0, 0 (NOP)
	if err := writeFile(path, image); err != nil {
		t.Fatal(err)
	}

	machine := vm.NewVM(vm.ResetZero)
	if err := LoadFlatBinary(machine, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	word, err := machine.MCU.Read(vm.ROMStart, 4)
	if err != nil {
		t.Fatalf("unexpected error reading ROM: %v", err)
	}
	if word != 0x00000013 {
		t.Errorf("ROM word = 0x%X, want 0x00000013", word)
	}
}

func TestLoadFlatBinaryMissingFile(t *testing.T) {
	machine := vm.NewVM(vm.ResetZero)
	if err := LoadFlatBinary(machine, "/nonexistent/path.bin"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadIntelHex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "program.hex")
	// One data record: address 0, 4 bytes 13 00 00 00, then EOF record.
	contents := ":0400000013000000E9\n:00000001FF\n"
	if err := writeFile(path, []byte(contents)); err != nil {
		t.Fatal(err)
	}

	machine := vm.NewVM(vm.ResetZero)
	if err := LoadIntelHex(machine, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	word, err := machine.MCU.Read(vm.ROMStart, 4)
	if err != nil {
		t.Fatalf("unexpected error reading ROM: %v", err)
	}
	if word != 0x00000013 {
		t.Errorf("ROM word = 0x%X, want 0x00000013", word)
	}
}

func TestLoadIntelHexBadChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.hex")
	contents := ":0400000013000000FF\n:00000001FF\n"
	if err := writeFile(path, []byte(contents)); err != nil {
		t.Fatal(err)
	}

	machine := vm.NewVM(vm.ResetZero)
	if err := LoadIntelHex(machine, path); err == nil {
		t.Error("expected checksum error")
	}
}

func TestLoadIntelHexMissingEOF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noeof.hex")
	contents := ":0400000013000000E9\n"
	if err := writeFile(path, []byte(contents)); err != nil {
		t.Fatal(err)
	}

	machine := vm.NewVM(vm.ResetZero)
	if err := LoadIntelHex(machine, path); err == nil {
		t.Error("expected missing-EOF error")
	}
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
