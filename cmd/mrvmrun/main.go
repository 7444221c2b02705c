// Command mrvmrun assembles a textual irep file (package asm) and runs it
// to completion, printing the result and a profiler report — the
// embedding-surface demo the teacher's cmd/hey provides for its own PHP
// front end, reduced to the VM core's own minimal textual input format.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ashel/mrvm/asm"
	"github.com/ashel/mrvm/classdef"
	"github.com/ashel/mrvm/config"
	"github.com/ashel/mrvm/values"
	"github.com/ashel/mrvm/version"
	"github.com/ashel/mrvm/vm"
)

func main() {
	app := &cli.Command{
		Name:    "mrvmrun",
		Usage:   "run a textual irep assembly file against the VM core",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a YAML config file"},
			&cli.BoolFlag{Name: "profile", Aliases: []string{"p"}, Usage: "print a profiler report after running"},
		},
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.StringArg("file")
			if path == "" {
				return fmt.Errorf("mrvmrun: usage: mrvmrun [--profile] <file.asm>")
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}
			st := vm.NewState(cfg)

			table := classdef.NewIrepTable()
			irep, err := asm.Assemble(string(src), st.Services.Symbols, table)
			if err != nil {
				return err
			}

			proc := classdef.NewBytecodeProc(irep, st.Services.ObjectClass, false)
			result, err := st.Run(proc, values.Nil())
			if err != nil {
				fmt.Fprintf(os.Stderr, "mrvmrun: unhandled exception: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(result.String())

			if cmd.Bool("profile") {
				fmt.Println(st.Profiler.Render())
			}
			return nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mrvmrun: %v\n", err)
		os.Exit(1)
	}
}
