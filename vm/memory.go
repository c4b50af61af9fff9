package vm

import "math/rand"

// region is a fixed-size byte array with a permission bit for writes.
// Reads are always permitted within bounds; ROM additionally rejects
// writes with a write-protect fault.
type region struct {
	start     uint32
	data      []byte
	writable  bool
}

func newRegion(start uint32, size uint32, writable bool) *region {
	return &region{start: start, data: make([]byte, size), writable: writable}
}

func (r *region) contains(addr uint32, length uint32) bool {
	if addr < r.start {
		return false
	}
	end := r.start + uint32(len(r.data))
	return addr >= r.start && addr+length <= end && addr+length >= addr
}

// readAt composes length bytes starting at addr, little-endian: the byte at
// addr is least significant.
func (r *region) readAt(addr uint32, length uint32) uint32 {
	off := addr - r.start
	var v uint32
	for i := uint32(0); i < length; i++ {
		v |= uint32(r.data[off+i]) << (8 * i)
	}
	return v
}

func (r *region) writeAt(addr uint32, value uint32, length uint32) {
	off := addr - r.start
	for i := uint32(0); i < length; i++ {
		r.data[off+i] = byte(value >> (8 * i))
	}
}

func (r *region) seed(rng *rand.Rand) {
	rng.Read(r.data)
}

// MCU is the memory control unit: an address-region dispatcher in front of
// ROM and RAM. It is the only component instructions go through to touch
// memory.
type MCU struct {
	rom *region
	ram *region
}

func newMCU(policy ResetPolicy, rng *rand.Rand) *MCU {
	m := &MCU{
		rom: newRegion(ROMStart, ROMSize, false),
		ram: newRegion(RAMStart, RAMSize, true),
	}
	if policy == ResetRandom {
		m.ram.seed(rng)
		// ROM is seeded by LoadROM, not randomized: its contents are the
		// program image, not architectural state.
	}
	return m
}

// regionFor returns the region containing [addr, addr+length), or nil if the
// access does not stay within a single region (including addresses not
// mapped at all).
func (m *MCU) regionFor(addr uint32, length uint32) *region {
	if m.rom.contains(addr, length) {
		return m.rom
	}
	if m.ram.contains(addr, length) {
		return m.ram
	}
	return nil
}

// Read performs a little-endian load of length bytes (1, 2, or 4) from addr.
func (m *MCU) Read(addr uint32, length uint32) (uint32, error) {
	r := m.regionFor(addr, length)
	if r == nil {
		return 0, newFault(FaultAccess, addr, "memory access fault: [0x%08X, 0x%08X) is not mapped or straddles a region boundary", addr, addr+length)
	}
	return r.readAt(addr, length), nil
}

// Write performs a little-endian store of the low 8*length bits of value to
// addr. Writes that land in ROM fail with a write-protect fault.
func (m *MCU) Write(addr uint32, value uint32, length uint32) error {
	r := m.regionFor(addr, length)
	if r == nil {
		return newFault(FaultAccess, addr, "memory access fault: [0x%08X, 0x%08X) is not mapped or straddles a region boundary", addr, addr+length)
	}
	if !r.writable {
		return newFault(FaultWriteProtect, addr, "write-protect fault: address 0x%08X is read-only", addr)
	}
	r.writeAt(addr, value, length)
	return nil
}

// LoadROM copies data into the start of the ROM region. Bytes beyond len(data)
// up to ROMSize are set to zero, replacing any earlier image; data longer
// than ROMSize is rejected.
func (m *MCU) LoadROM(data []byte) error {
	if uint32(len(data)) > ROMSize {
		return newFault(FaultAccess, ROMStart, "program image of %d bytes exceeds ROM capacity of %d bytes", len(data), ROMSize)
	}
	copy(m.rom.data, data)
	for i := len(data); i < len(m.rom.data); i++ {
		m.rom.data[i] = 0
	}
	return nil
}
