package vm

// Format identifies which of the six RV32I instruction encodings a decoded
// word uses.
type Format int

const (
	FormatR Format = iota
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
)

// Instruction is a decoded instruction word tagged by Format. Decode fills
// the fixed-position fields (Rd, Funct3, Rs1, Rs2, Funct7) for every format;
// Format tells which of them are meaningful. It also keeps the raw word
// (needed at execute time to distinguish SLLI/SRLI/SRAI and FENCE/FENCE.TSO,
// which overlap the I-format encoding but depend on upper bits the I-format
// fields alone don't capture). It is ephemeral: built by Decode inside Step
// and discarded after Execute returns.
type Instruction struct {
	Raw    uint32
	Format Format
	Opcode uint32

	Rd     int
	Funct3 uint32
	Rs1    int
	Rs2    int
	Funct7 uint32

	// Imm is already sign-extended (or, for U-format, shifted into place)
	// per format; see decodeImmediate.
	Imm uint32
}

// Decode classifies the low 7 bits of word into one of the eleven base
// RV32I opcodes and assembles the format-specific record, including
// immediate sign-extension. Decoding is a pure function of word: it
// consults no CPU state.
func Decode(word uint32) (*Instruction, error) {
	opcode := extractBits(word, 0, 6)

	inst := &Instruction{
		Raw:    word,
		Opcode: opcode,
		Rd:     int(extractBits(word, 7, 11)),
		Funct3: extractBits(word, 12, 14),
		Rs1:    int(extractBits(word, 15, 19)),
		Rs2:    int(extractBits(word, 20, 24)),
		Funct7: extractBits(word, 25, 31),
	}

	switch opcode {
	case OpLUI, OpAUIPC:
		inst.Format = FormatU
		inst.Imm = decodeUImmediate(word)

	case OpJAL:
		inst.Format = FormatJ
		inst.Imm = decodeJImmediate(word)

	case OpJALR, OpLoad, OpOpImm, OpMiscMem, OpSystem:
		inst.Format = FormatI
		inst.Imm = decodeIImmediate(word)

	case OpBranch:
		inst.Format = FormatB
		inst.Imm = decodeBImmediate(word)

	case OpStore:
		inst.Format = FormatS
		inst.Imm = decodeSImmediate(word)

	case OpOp:
		inst.Format = FormatR

	default:
		return nil, newFault(FaultIllegalInstruction, 0, "illegal instruction: unrecognized opcode 0b%07b (word 0x%08X)", opcode, word)
	}

	return inst, nil
}

// decodeIImmediate assembles the 12-bit I-format immediate: imm[11:0] =
// word[31:20], sign-extended from bit 11.
func decodeIImmediate(word uint32) uint32 {
	imm := extractBits(word, 20, 31)
	return signExtend(imm, 12)
}

// decodeSImmediate assembles the 12-bit S-format immediate from the two
// split fields word[31:25] and word[11:7], sign-extended from bit 11.
func decodeSImmediate(word uint32) uint32 {
	imm := extractBits(word, 25, 31)<<5 | extractBits(word, 7, 11)
	return signExtend(imm, 12)
}

// decodeBImmediate assembles the 13-bit B-format immediate (bit 0 is always
// 0) from four split fields, sign-extended from bit 12.
func decodeBImmediate(word uint32) uint32 {
	imm := extractBits(word, 31, 31)<<12 |
		extractBits(word, 7, 7)<<11 |
		extractBits(word, 25, 30)<<5 |
		extractBits(word, 8, 11)<<1
	return signExtend(imm, 13)
}

// decodeUImmediate assembles the U-format immediate: imm[31:12] =
// word[31:12], with the low 12 bits zero. No sign-extension is needed; the
// field already occupies the top 20 bits.
func decodeUImmediate(word uint32) uint32 {
	return word & 0xFFFFF000
}

// decodeJImmediate assembles the 21-bit J-format immediate (bit 0 is always
// 0) from four split fields, sign-extended from bit 20.
func decodeJImmediate(word uint32) uint32 {
	imm := extractBits(word, 31, 31)<<20 |
		extractBits(word, 12, 19)<<12 |
		extractBits(word, 20, 20)<<11 |
		extractBits(word, 21, 30)<<1
	return signExtend(imm, 21)
}

// shiftKind distinguishes logical from arithmetic shift-immediate encodings,
// inspected from the raw word at execute time as the Design Notes specify:
// bits [31:25] overlap the I-format immediate field and must be checked
// directly rather than folded into Imm.
type shiftKind int

const (
	shiftIllegal shiftKind = iota
	shiftLogical
	shiftArithmetic
)

func (inst *Instruction) shiftImmKind() shiftKind {
	switch extractBits(inst.Raw, 25, 31) {
	case Funct7Base:
		return shiftLogical
	case Funct7Alt:
		return shiftArithmetic
	default:
		return shiftIllegal
	}
}

func (inst *Instruction) shamt() uint32 {
	return extractBits(inst.Raw, 20, 24)
}

// fenceKind reports whether a decoded MISC_MEM instruction is an ordinary
// FENCE or a FENCE.TSO, distinguished by word[31:28].
func (inst *Instruction) fenceKind() uint32 {
	return extractBits(inst.Raw, 28, 31)
}

// Mnemonic returns a short opcode name for diagnostics (statistics, trace,
// disassembly panes). It is not exhaustive over every funct3/funct7
// combination — unrecognized combinations fall back to the opcode name,
// since Execute will have already turned them into an illegal-instruction
// fault before any diagnostic code sees them.
func (inst *Instruction) Mnemonic() string {
	switch inst.Opcode {
	case OpLUI:
		return "LUI"
	case OpAUIPC:
		return "AUIPC"
	case OpJAL:
		return "JAL"
	case OpJALR:
		return "JALR"
	case OpBranch:
		names := map[uint32]string{Funct3BEQ: "BEQ", Funct3BNE: "BNE", Funct3BLT: "BLT", Funct3BGE: "BGE", Funct3BLTU: "BLTU", Funct3BGEU: "BGEU"}
		if n, ok := names[inst.Funct3]; ok {
			return n
		}
		return "BRANCH"
	case OpLoad:
		names := map[uint32]string{Funct3LB: "LB", Funct3LH: "LH", Funct3LW: "LW", Funct3LBU: "LBU", Funct3LHU: "LHU"}
		if n, ok := names[inst.Funct3]; ok {
			return n
		}
		return "LOAD"
	case OpStore:
		names := map[uint32]string{Funct3SB: "SB", Funct3SH: "SH", Funct3SW: "SW"}
		if n, ok := names[inst.Funct3]; ok {
			return n
		}
		return "STORE"
	case OpOpImm:
		return opImmMnemonic(inst)
	case OpOp:
		return opMnemonic(inst)
	case OpMiscMem:
		if inst.fenceKind() == FenceTSO {
			return "FENCE.TSO"
		}
		return "FENCE"
	case OpSystem:
		switch inst.Imm {
		case SystemImmECALL:
			return "ECALL"
		case SystemImmEBREAK:
			return "EBREAK"
		default:
			return "SYSTEM"
		}
	default:
		return "UNKNOWN"
	}
}

func opImmMnemonic(inst *Instruction) string {
	switch inst.Funct3 {
	case Funct3AddSub:
		return "ADDI"
	case Funct3SLT:
		return "SLTI"
	case Funct3SLTU:
		return "SLTIU"
	case Funct3XOR:
		return "XORI"
	case Funct3OR:
		return "ORI"
	case Funct3AND:
		return "ANDI"
	case Funct3SLL:
		return "SLLI"
	case Funct3SRLSRA:
		if inst.shiftImmKind() == shiftArithmetic {
			return "SRAI"
		}
		return "SRLI"
	default:
		return "OP_IMM"
	}
}

func opMnemonic(inst *Instruction) string {
	switch {
	case inst.Funct3 == Funct3AddSub && inst.Funct7 == Funct7Alt:
		return "SUB"
	case inst.Funct3 == Funct3AddSub:
		return "ADD"
	case inst.Funct3 == Funct3SLL:
		return "SLL"
	case inst.Funct3 == Funct3SLT:
		return "SLT"
	case inst.Funct3 == Funct3SLTU:
		return "SLTU"
	case inst.Funct3 == Funct3XOR:
		return "XOR"
	case inst.Funct3 == Funct3SRLSRA && inst.Funct7 == Funct7Alt:
		return "SRA"
	case inst.Funct3 == Funct3SRLSRA:
		return "SRL"
	case inst.Funct3 == Funct3OR:
		return "OR"
	case inst.Funct3 == Funct3AND:
		return "AND"
	default:
		return "OP"
	}
}
