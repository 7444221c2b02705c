// Package asm implements the thinnest possible textual irep format: just
// enough to drive the seed tests in spec.md §8 from the command line.
// Loading/parsing real compiled bytecode files is out of scope (spec.md
// §1); this is an assembler for hand-written test programs, grounded on
// the teacher's cmd/hey demo pattern of feeding a tiny source format
// straight into the VM without a surrounding framework.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/opcodes"
	"github.com/ashel/mrvm/values"
)

var mnemonics = map[string]opcodes.Opcode{
	"NOP": opcodes.OP_NOP, "MOVE": opcodes.OP_MOVE, "LOADL": opcodes.OP_LOADL,
	"LOADI": opcodes.OP_LOADI, "LOADSYM": opcodes.OP_LOADSYM, "LOADNIL": opcodes.OP_LOADNIL,
	"LOADSELF": opcodes.OP_LOADSELF, "LOADT": opcodes.OP_LOADT, "LOADF": opcodes.OP_LOADF,

	"GETGLOBAL": opcodes.OP_GETGLOBAL, "SETGLOBAL": opcodes.OP_SETGLOBAL,
	"GETSPECIAL": opcodes.OP_GETSPECIAL, "SETSPECIAL": opcodes.OP_SETSPECIAL,
	"GETIV": opcodes.OP_GETIV, "SETIV": opcodes.OP_SETIV,
	"GETCV": opcodes.OP_GETCV, "SETCV": opcodes.OP_SETCV,
	"GETCONST": opcodes.OP_GETCONST, "SETCONST": opcodes.OP_SETCONST,
	"GETMCNST": opcodes.OP_GETMCNST, "SETMCNST": opcodes.OP_SETMCNST,
	"GETUPVAR": opcodes.OP_GETUPVAR, "SETUPVAR": opcodes.OP_SETUPVAR,

	"JMP": opcodes.OP_JMP, "JMPIF": opcodes.OP_JMPIF, "JMPNOT": opcodes.OP_JMPNOT,

	"ONERR": opcodes.OP_ONERR, "RESCUE": opcodes.OP_RESCUE, "POPERR": opcodes.OP_POPERR,
	"RAISE": opcodes.OP_RAISE, "EPUSH": opcodes.OP_EPUSH, "EPOP": opcodes.OP_EPOP,

	"SEND": opcodes.OP_SEND, "FSEND": opcodes.OP_FSEND, "VSEND": opcodes.OP_VSEND,
	"CALL": opcodes.OP_CALL, "SUPER": opcodes.OP_SUPER, "ARGARY": opcodes.OP_ARGARY,
	"ENTER": opcodes.OP_ENTER, "KARG": opcodes.OP_KARG, "KDICT": opcodes.OP_KDICT,
	"RETURN": opcodes.OP_RETURN, "TAILCALL": opcodes.OP_TAILCALL, "BLKPUSH": opcodes.OP_BLKPUSH,

	"ADD": opcodes.OP_ADD, "ADDI": opcodes.OP_ADDI, "SUB": opcodes.OP_SUB, "SUBI": opcodes.OP_SUBI,
	"MUL": opcodes.OP_MUL, "DIV": opcodes.OP_DIV, "EQ": opcodes.OP_EQ,
	"LT": opcodes.OP_LT, "LE": opcodes.OP_LE, "GT": opcodes.OP_GT, "GE": opcodes.OP_GE,

	"ARRAY": opcodes.OP_ARRAY, "ARYCAT": opcodes.OP_ARYCAT, "ARYPUSH": opcodes.OP_ARYPUSH,
	"AREF": opcodes.OP_AREF, "ASET": opcodes.OP_ASET, "APOST": opcodes.OP_APOST,
	"STRING": opcodes.OP_STRING, "STRCAT": opcodes.OP_STRCAT, "HASH": opcodes.OP_HASH,

	"LAMBDA": opcodes.OP_LAMBDA, "RANGE": opcodes.OP_RANGE, "OCLASS": opcodes.OP_OCLASS,
	"CLASS": opcodes.OP_CLASS, "MODULE": opcodes.OP_MODULE, "EXEC": opcodes.OP_EXEC,
	"METHOD": opcodes.OP_METHOD, "SCLASS": opcodes.OP_SCLASS, "TCLASS": opcodes.OP_TCLASS,

	"DEBUG": opcodes.OP_DEBUG, "STOP": opcodes.OP_STOP, "ERR": opcodes.OP_ERR,
}

// wideShape mnemonics take "A Bx"/"A sBx" (two operands); everything else
// not listed here and not ENTER/LAMBDA takes the default three-operand
// "A B C" shape (with trailing operands defaulting to 0).
var wideShape = map[string]bool{
	"LOADL": true, "LOADSYM": true, "GETGLOBAL": true, "SETGLOBAL": true,
	"GETSPECIAL": true, "SETSPECIAL": true, "GETIV": true, "SETIV": true,
	"GETCV": true, "SETCV": true, "GETCONST": true, "SETCONST": true,
	"GETMCNST": true, "SETMCNST": true, "ARGARY": true, "EPUSH": true,
	"STRING": true, "OCLASS": true,
}

// jumpShape mnemonics take the signed "A sBx" shape.
var jumpShape = map[string]bool{
	"JMP": true, "JMPIF": true, "JMPNOT": true, "ONERR": true,
}

// Assemble parses the textual format described in the package doc into a
// runnable Irep registered in table. Syntax, one statement per line:
//
//	.nregs <n>              register count for this irep
//	.sym <name>             append an interned symbol to the symbol pool
//	.lit int <n>             append a Fixnum literal
//	.lit float <f>           append a Float literal
//	.lit str <text>          append a String literal (rest of line, with
//	                         each run of whitespace collapsed to one space)
//	MNEMONIC <a> [<b> [<c>]] an instruction; blank lines and lines
//	                         starting with # are ignored
func Assemble(source string, symbols *values.SymbolTable, table *classdef.IrepTable) (*classdef.Irep, error) {
	ir := &classdef.Irep{NRegs: 3}
	for lineNo, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		head := fields[0]

		switch {
		case head == ".nregs":
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("asm: line %d: bad .nregs: %w", lineNo+1, err)
			}
			ir.NRegs = n

		case head == ".sym":
			ir.Syms = append(ir.Syms, symbols.Intern(fields[1]))

		case head == ".lit":
			lit, err := parseLiteral(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("asm: line %d: %w", lineNo+1, err)
			}
			ir.Pool = append(ir.Pool, lit)

		default:
			inst, err := assembleInst(head, fields[1:])
			if err != nil {
				return nil, fmt.Errorf("asm: line %d: %w", lineNo+1, err)
			}
			ir.Instructions = append(ir.Instructions, inst)
		}
	}
	table.Add(ir)
	return ir, nil
}

func parseLiteral(fields []string) (values.Value, error) {
	if len(fields) == 0 {
		return values.Nil(), fmt.Errorf(".lit needs a type")
	}
	switch fields[0] {
	case "int":
		n, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return values.Nil(), err
		}
		return values.Fixnum(n), nil
	case "float":
		f, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return values.Nil(), err
		}
		return values.Float(f), nil
	case "str":
		return values.Object(values.NewString(strings.Join(fields[1:], " "))), nil
	}
	return values.Nil(), fmt.Errorf("unknown literal type %q", fields[0])
}

func assembleInst(mnemonic string, operands []string) (opcodes.Instruction, error) {
	op, ok := mnemonics[mnemonic]
	if !ok {
		return opcodes.Instruction{}, fmt.Errorf("unknown mnemonic %q", mnemonic)
	}
	nums := make([]int32, len(operands))
	for i, s := range operands {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return opcodes.Instruction{}, fmt.Errorf("bad operand %q: %w", s, err)
		}
		nums[i] = int32(n)
	}
	arg := func(i int) int32 {
		if i < len(nums) {
			return nums[i]
		}
		return 0
	}

	switch mnemonic {
	case "ENTER":
		return opcodes.NewAx(op, arg(0)), nil
	case "LAMBDA":
		return opcodes.NewAbc2(op, arg(0), arg(1), arg(2)), nil
	default:
		if jumpShape[mnemonic] {
			return opcodes.NewAsBx(op, arg(0), arg(1)), nil
		}
		if wideShape[mnemonic] {
			return opcodes.NewABx(op, arg(0), arg(1)), nil
		}
		return opcodes.NewABC(op, arg(0), arg(1), arg(2)), nil
	}
}
