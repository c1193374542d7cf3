package oxs

// Engine is the embedding-facing facade: compile a declaration tree once,
// then run functions against a single VM instance, pushing/popping call
// arguments and return values through the generic stack helpers.
type Engine struct {
	vm       *VM
	compiler *Compiler
	program  *Program
}

// New creates an Engine with a VM backed by a stack of stackSize bytes.
func New(stackSize int) *Engine {
	return &Engine{
		vm:       NewVM(stackSize),
		compiler: NewCompiler(),
	}
}

// VM exposes the underlying VM so callers can use the package-level
// PushStack/PopStack/GetRegisterValue generics directly around a call.
func (e *Engine) VM() *VM { return e.vm }

// RegisterModule registers a bundled host module (e.g. std's print/IO
// functions) so script code can call into it once Load compiles.
func (e *Engine) RegisterModule(path string, functions []*ForeignFunction) error {
	return e.compiler.RegisterForeignModule(path, functions)
}

// Load compiles decls and installs the resulting Program into the VM.
func (e *Engine) Load(decls []Declaration) error {
	program, err := e.compiler.Compile(decls)
	if err != nil {
		return err
	}
	e.program = program
	e.vm.LoadProgram(program)
	return nil
}

// RunFn resolves canonicalName (e.g. "root::main") to its UID and runs it.
func (e *Engine) RunFn(canonicalName string) error {
	if e.program == nil {
		return ErrNoProgram
	}
	uid, err := e.compiler.GetFunctionUID(canonicalName)
	if err != nil {
		return err
	}
	return e.vm.RunFn(uid)
}

// Disassemble renders the loaded program's instruction stream as
// human-readable text. Added beyond the base instruction set to give the
// CLI's `disasm` subcommand something to print (SPEC_FULL.md "Supplemented
// features").
func (e *Engine) Disassemble() (string, error) {
	if e.program == nil {
		return "", ErrNoProgram
	}
	return disassemble(e.program)
}
