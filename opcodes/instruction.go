// Package opcodes defines the VM's instruction set and 32-bit instruction
// encoding (spec.md §6.1, §6.2). The bit layouts are load-bearing and are
// reproduced exactly as specified rather than reinvented.
package opcodes

import "fmt"

// Instruction is a decoded 32-bit instruction word. Rather than re-mask a
// raw uint32 on every field access (as mruby's GETARG_* macros do against
// the packed word), the VM stores the already-split fields; Pack/Unpack
// below still model the exact bit layout so round-tripping to/through a
// textual or binary irep format is faithful to spec.md §6.1.
type Instruction struct {
	Op Opcode
	A  int32
	B  int32
	C  int32
	// Bx/SBx/Ax overlay B/C for the wider encodings; callers read the
	// field matching the opcode's documented shape (see each opcode's
	// doc comment in opcodes.go).
}

// Field widths from spec.md §6.1.
const (
	opBits  = 7
	aBits   = 9
	bBits9  = 9
	cBits   = 7
	bxBits  = 16
	axBits  = 25
)

const (
	maxA  = 1<<aBits - 1
	maxBx = 1<<bxBits - 1
	maxAx = 1<<axBits - 1
	// CallMaxArgs is CALL_MAXARGS from spec.md §6.1: outgoing calls with
	// more than 126 arguments pack them into a single array at R[A+1]
	// and set C to this sentinel.
	CallMaxArgs = 127
)

// NewABC builds an "OP A B C" instruction (sends, arithmetic, array/hash
// ops). Panics if a field does not fit — this is a compiler/assembler
// contract violation, not a runtime condition.
func NewABC(op Opcode, a, b, c int32) Instruction {
	mustFit(a, aBits, "A")
	mustFit(b, bBits9, "B")
	mustFit(c, cBits, "C")
	return Instruction{Op: op, A: a, B: b, C: c}
}

// NewABx builds an "OP A Bx" instruction (literal loads, symbol ops).
func NewABx(op Opcode, a, bx int32) Instruction {
	mustFit(a, aBits, "A")
	if bx < 0 || bx > maxBx {
		panic(fmt.Sprintf("opcodes: Bx %d out of range", bx))
	}
	return Instruction{Op: op, A: a, B: bx}
}

// NewAsBx builds an "OP A sBx" instruction (jumps). sBx is signed.
func NewAsBx(op Opcode, a, sbx int32) Instruction {
	mustFit(a, aBits, "A")
	half := int32(1) << (bxBits - 1)
	if sbx < -half || sbx >= half {
		panic(fmt.Sprintf("opcodes: sBx %d out of range", sbx))
	}
	return Instruction{Op: op, A: a, B: sbx}
}

// NewAx builds an "OP Ax" instruction (ENTER).
func NewAx(op Opcode, ax int32) Instruction {
	if ax < 0 || ax > maxAx {
		panic(fmt.Sprintf("opcodes: Ax %d out of range", ax))
	}
	return Instruction{Op: op, A: ax}
}

// NewAbc2 builds the LAMBDA "OP A b c" shape: A is the destination
// register, b (14 bits) is the nested-irep relative index, c (2 bits) is
// the capture/strict flag word — packed as a 16-bit field per the
// original "(b:c = 14:2)" comment spec.md §4.7 preserves.
func NewAbc2(op Opcode, a, b, c int32) Instruction {
	mustFit(a, aBits, "A")
	if b < 0 || b > (1<<14-1) {
		panic(fmt.Sprintf("opcodes: LAMBDA b %d out of range", b))
	}
	if c < 0 || c > 3 {
		panic(fmt.Sprintf("opcodes: LAMBDA c %d out of range", c))
	}
	return Instruction{Op: op, A: a, B: b, C: c}
}

func mustFit(v int32, bits int, name string) {
	if v < 0 || v > (1<<uint(bits)-1) {
		panic(fmt.Sprintf("opcodes: %s=%d does not fit %d bits", name, v, bits))
	}
}

// Bx returns the unsigned 16-bit operand for ABx-shaped instructions.
func (i Instruction) Bx() int32 { return i.B }

// SBx returns the signed 16-bit operand for AsBx-shaped instructions.
func (i Instruction) SBx() int32 { return i.B }

// Ax returns the 25-bit operand for ENTER.
func (i Instruction) Ax() int32 { return i.A }

// LambdaB returns the 14-bit nested-irep index for LAMBDA.
func (i Instruction) LambdaB() int32 { return i.B }

// LambdaC returns the 2-bit flag word for LAMBDA.
func (i Instruction) LambdaC() int32 { return i.C }

// Pack encodes the instruction into the fixed 32-bit word layout from
// spec.md §6.1: opcode in the low 7 bits, then the shape-specific fields
// (A, then B/Bx, then C) at ascending bit positions above it.
func (i Instruction) Pack() uint32 {
	w := uint32(i.Op)
	switch shapeOf(i.Op) {
	case shapeABC:
		w |= uint32(i.A) << opBits
		w |= uint32(i.B) << (opBits + aBits)
		w |= uint32(i.C) << (opBits + aBits + bBits9)
	case shapeABx, shapeAsBx:
		w |= uint32(i.A) << opBits
		w |= (uint32(i.B) & maxBx) << (opBits + aBits)
	case shapeAx:
		w |= (uint32(i.A) & maxAx) << opBits
	case shapeAbc2:
		w |= uint32(i.A) << opBits
		w |= (uint32(i.B) & (1<<14 - 1)) << (opBits + aBits)
		w |= (uint32(i.C) & 0x3) << (opBits + aBits + 14)
	}
	return w
}

// Unpack decodes a packed 32-bit word back into an Instruction, given the
// shape implied by its opcode.
func Unpack(w uint32) Instruction {
	op := Opcode(w & (1<<opBits - 1))
	switch shapeOf(op) {
	case shapeABC:
		a := int32((w >> opBits) & maxA)
		b := int32((w >> (opBits + aBits)) & ((1 << bBits9) - 1))
		c := int32((w >> (opBits + aBits + bBits9)) & ((1 << cBits) - 1))
		return Instruction{Op: op, A: a, B: b, C: c}
	case shapeABx:
		a := int32((w >> opBits) & maxA)
		bx := int32((w >> (opBits + aBits)) & maxBx)
		return Instruction{Op: op, A: a, B: bx}
	case shapeAsBx:
		a := int32((w >> opBits) & maxA)
		raw := int32((w >> (opBits + aBits)) & maxBx)
		half := int32(1) << (bxBits - 1)
		if raw >= half {
			raw -= 1 << bxBits
		}
		return Instruction{Op: op, A: a, B: raw}
	case shapeAx:
		ax := int32((w >> opBits) & maxAx)
		return Instruction{Op: op, A: ax}
	case shapeAbc2:
		a := int32((w >> opBits) & maxA)
		b := int32((w >> (opBits + aBits)) & (1<<14 - 1))
		c := int32((w >> (opBits + aBits + 14)) & 0x3)
		return Instruction{Op: op, A: a, B: b, C: c}
	}
	return Instruction{Op: op}
}

func (i Instruction) String() string {
	switch shapeOf(i.Op) {
	case shapeABC:
		return fmt.Sprintf("%s %d %d %d", i.Op, i.A, i.B, i.C)
	case shapeABx, shapeAsBx:
		return fmt.Sprintf("%s %d %d", i.Op, i.A, i.B)
	case shapeAx:
		return fmt.Sprintf("%s %d", i.Op, i.A)
	case shapeAbc2:
		return fmt.Sprintf("%s %d %d %d", i.Op, i.A, i.B, i.C)
	default:
		return i.Op.String()
	}
}

// EnterSpec is the decoded packed ENTER word (spec.md §4.3): 5:5:1:5:5:1:1
// bit groups, high bits first, for m1:o:r:m2:k:kd:b.
type EnterSpec struct {
	M1 int32
	O  int32
	R  bool
	M2 int32
	K  int32
	KD bool
	B  bool
}

// PackEnter packs an EnterSpec into the 23-bit (well inside Ax's 25 bits)
// ENTER operand, high bits first: m1(5) o(5) r(1) m2(5) k(5) kd(1) b(1).
func PackEnter(s EnterSpec) int32 {
	v := int32(0)
	v |= (s.M1 & 0x1f) << 18
	v |= (s.O & 0x1f) << 13
	v |= boolBit(s.R) << 12
	v |= (s.M2 & 0x1f) << 7
	v |= (s.K & 0x1f) << 2
	v |= boolBit(s.KD) << 1
	v |= boolBit(s.B)
	return v
}

// DecodeEnter unpacks the ENTER instruction's Ax operand.
func DecodeEnter(ax int32) EnterSpec {
	return EnterSpec{
		M1: (ax >> 18) & 0x1f,
		O:  (ax >> 13) & 0x1f,
		R:  (ax>>12)&0x1 != 0,
		M2: (ax >> 7) & 0x1f,
		K:  (ax >> 2) & 0x1f,
		KD: (ax>>1)&0x1 != 0,
		B:  ax&0x1 != 0,
	}
}

func boolBit(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// ArgArySpec is the decoded Bx operand of ARGARY (spec.md §C, grounded on
// original_source/src/vm.c): m1:6, r:1, m2:5, lv:4, high bits first.
type ArgArySpec struct {
	M1 int32
	R  bool
	M2 int32
	LV int32
}

func DecodeArgAry(bx int32) ArgArySpec {
	return ArgArySpec{
		M1: (bx >> 10) & 0x3f,
		R:  (bx>>9)&0x1 != 0,
		M2: (bx >> 4) & 0x1f,
		LV: bx & 0xf,
	}
}

func PackArgAry(s ArgArySpec) int32 {
	v := int32(0)
	v |= (s.M1 & 0x3f) << 10
	v |= boolBit(s.R) << 9
	v |= (s.M2 & 0x1f) << 4
	v |= s.LV & 0xf
	return v
}
