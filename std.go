package oxs

import (
	"bufio"
	"fmt"
	"os"
)

// stdWriter is buffered the way the teacher's console device buffers
// output, flushed after every call so script output interleaves correctly
// with host-side prints.
var stdWriter = bufio.NewWriter(os.Stdout)

// stdReader is the single owner of stdin, mirroring the teacher's
// consoleIO device which keeps exactly one bufio.Reader on stdin rather
// than letting every call site open its own. There's no interrupt table
// in this system (no privilege levels, no device bus), so reads are
// synchronous instead of routed through a response channel.
var stdReader = bufio.NewReader(os.Stdin)

// StdModule returns the bundled print/IO foreign functions, registered
// under "std" so scripts reach them as std::print / std::printi (§4.5,
// SPEC_FULL.md DOMAIN MODULES).
func StdModule() []*ForeignFunction {
	return []*ForeignFunction{
		NewForeignFunction("print", []Type{StringType()}, VoidType(), func(a *Adapter) error {
			s, err := GetArg[string](a, 0)
			if err != nil {
				return err
			}
			fmt.Fprint(stdWriter, s)
			return stdWriter.Flush()
		}),
		NewForeignFunction("printi", []Type{IntType()}, VoidType(), func(a *Adapter) error {
			v, err := GetArg[int64](a, 0)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdWriter, v)
			return stdWriter.Flush()
		}),
		NewForeignFunction("printf", []Type{FloatType()}, VoidType(), func(a *Adapter) error {
			v, err := GetArg[float32](a, 0)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdWriter, v)
			return stdWriter.Flush()
		}),
		NewForeignFunction("readi", nil, IntType(), func(a *Adapter) error {
			var v int64
			if _, err := fmt.Fscan(stdReader, &v); err != nil {
				return err
			}
			ReturnValue(a, v)
			return nil
		}),
	}
}
