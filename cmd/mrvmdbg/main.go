// Command mrvmdbg is a readline-backed interactive stepper: it loads a
// textual irep assembly file (package asm) and single-steps the dispatch
// loop one instruction at a time, printing register state as it goes —
// the debugging counterpart to the teacher's cmd/hey REPL, built on the
// same chzyer/readline input loop.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ashel/mrvm/asm"
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/config"
	"github.com/ashel/mrvm/values"
	"github.com/ashel/mrvm/vm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: mrvmdbg <file.asm>")
		os.Exit(1)
	}
	src, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	st := vm.NewState(cfg)
	table := classdef.NewIrepTable()
	irep, err := asm.Assemble(string(src), st.Services.Symbols, table)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	proc := classdef.NewBytecodeProc(irep, st.Services.ObjectClass, false)
	st.LoadTop(proc, values.Nil())

	rl, err := readline.New("mrvmdbg> ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer rl.Close()

	fmt.Println("mrvmdbg: step (s), registers (r <n>), continue (c), quit (q)")
	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "q", "quit":
			return
		case "s", "step":
			stepOnce(st)
		case "c", "continue":
			for {
				halted, _, _ := st.Step()
				if halted {
					break
				}
			}
			fmt.Println("halted")
		case "r", "regs":
			if len(fields) < 2 {
				fmt.Println("usage: r <index>")
				continue
			}
			idx, err := strconv.Atoi(fields[1])
			if err != nil {
				fmt.Println(err)
				continue
			}
			fmt.Println(st.RegisterValue(idx).String())
		case "pc":
			fmt.Printf("pc=%d depth=%d\n", st.CurrentPC(), st.Depth())
		default:
			fmt.Println("unknown command")
		}
	}
}

func stepOnce(st *vm.State) {
	halted, val, err := st.Step()
	if err != nil {
		fmt.Printf("exception: %v\n", err)
		return
	}
	if halted {
		fmt.Printf("halted, result=%s\n", val.String())
		return
	}
	fmt.Printf("pc=%d depth=%d\n", st.CurrentPC(), st.Depth())
}
