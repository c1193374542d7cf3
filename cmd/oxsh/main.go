// Command oxsh hosts the compile-to-bytecode engine: it wires the bundled
// std module in, compiles the demonstration program (a surface
// lexer/parser is out of scope, per spec.md §1), and either runs it or
// prints its disassembly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"oxs"
)

const defaultStackSize = 1 << 16

func newEngine() (*oxs.Engine, error) {
	e := oxs.New(defaultStackSize)
	if err := e.RegisterModule("std", oxs.StdModule()); err != nil {
		return nil, err
	}
	if err := e.Load(oxs.SampleProgram()); err != nil {
		return nil, err
	}
	return e, nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Compile and run the demonstration module",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			if err := e.RunFn("root::main"); err != nil {
				return err
			}
			os.Exit(int(oxs.GetRegisterValue[int64](e.VM(), oxs.R0)))
			return nil
		},
	}
}

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm",
		Short: "Compile the demonstration module and print its disassembly",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			text, err := e.Disassemble()
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:   "oxsh",
		Short: "oxsh runs and inspects compiled oxs bytecode modules",
	}
	root.AddCommand(newRunCmd(), newDisasmCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
