package oxs

import "testing"

func compileErr(t *testing.T, decls []Declaration) *CompileError {
	t.Helper()
	c := NewCompiler()
	if err := c.RegisterForeignModule("std", StdModule()); err != nil {
		t.Fatalf("RegisterForeignModule: %v", err)
	}
	_, err := c.Compile(decls)
	if err == nil {
		t.Fatalf("Compile: expected error, got nil")
	}
	ce, ok := err.(*CompileError)
	assert(t, ok, "err = %T, want *CompileError", err)
	return ce
}

func TestCompileRejectsDerefOfSlice(t *testing.T) {
	// A reference to an auto-array (slice) can be taken (e.g. as a function
	// argument) but never dereferenced through DerefExpr.
	takesSlice := fn("takesSlice", VoidType(), []Statement{
		&ExpressionStmt{Expr: &DerefExpr{Expr: &VariableExpr{Name: "xs"}}},
	})
	takesSlice.Args = []Arg{{Name: "xs", Type: ReferenceType(AutoArrayType(IntType()))}}

	ce := compileErr(t, []Declaration{takesSlice, fn("main", VoidType(), nil)})
	assert(t, ce.Kind == ErrCannotDerefSlice, "Kind = %v, want ErrCannotDerefSlice", ce.Kind)
}

func TestCompileRejectsBreakOutsideLoop(t *testing.T) {
	decls := []Declaration{
		fn("main", VoidType(), []Statement{&BreakStmt{}}),
	}
	ce := compileErr(t, decls)
	assert(t, ce.Kind == ErrBreakOutsideLoop, "Kind = %v, want ErrBreakOutsideLoop", ce.Kind)
}

func TestCompileRejectsContinueOutsideLoop(t *testing.T) {
	decls := []Declaration{
		fn("main", VoidType(), []Statement{&ContinueStmt{}}),
	}
	ce := compileErr(t, decls)
	assert(t, ce.Kind == ErrContinueOutsideLoop, "Kind = %v, want ErrContinueOutsideLoop", ce.Kind)
}

func TestCompileRejectsTypeMismatch(t *testing.T) {
	decls := []Declaration{
		fn("main", VoidType(), []Statement{
			&VariableDeclStmt{Name: "x", Type: IntType(), Expr: &BoolLit{Value: true}},
		}),
	}
	ce := compileErr(t, decls)
	assert(t, ce.Kind == ErrTypeMismatch, "Kind = %v, want ErrTypeMismatch", ce.Kind)
}

func TestCompileRejectsArgumentCountMismatch(t *testing.T) {
	callee := fn("helper", VoidType(), nil)
	callee.Args = []Arg{{Name: "a", Type: IntType()}}
	main := fn("main", VoidType(), []Statement{
		&CallStmt{Path: "helper", Args: nil},
	})
	ce := compileErr(t, []Declaration{callee, main})
	assert(t, ce.Kind == ErrArgumentMismatch, "Kind = %v, want ErrArgumentMismatch", ce.Kind)
}

func TestCompileRejectsUnknownFunction(t *testing.T) {
	decls := []Declaration{
		fn("main", VoidType(), []Statement{
			&CallStmt{Path: "does_not_exist", Args: nil},
		}),
	}
	ce := compileErr(t, decls)
	assert(t, ce.Kind == ErrUnknownFunction, "Kind = %v, want ErrUnknownFunction", ce.Kind)
}

// StaticSizeOf and container field layout: a container's total size is the
// prefix sum of its field sizes in declaration order, and each field's
// offset is the sum of the sizes of the fields before it.
func TestContainerFieldLayoutIsPrefixSum(t *testing.T) {
	c := NewCompiler()
	decls := []Declaration{
		&ContainerDecl{Name: "Point", Fields: []Arg{
			{Name: "flag", Type: BoolType()},
			{Name: "x", Type: IntType()},
			{Name: "y", Type: IntType()},
		}},
	}
	if err := c.DeclareRoot(decls); err != nil {
		t.Fatalf("DeclareRoot: %v", err)
	}
	cont, ok := c.findContainer("Point")
	assert(t, ok, "container Point not found")
	sz, err := c.SizeOfType(OtherType("Point"))
	assert(t, err == nil, "SizeOfType: %v", err)
	assert(t, sz == 1+8+8, "Point size = %d, want 17", sz)

	names := cont.MemberNames()
	assert(t, len(names) == 3, "MemberNames = %v", names)

	for i, want := range []uint32{0, 1, 9} {
		off, err := cont.GetMemberOffset(c.SizeOfType, names[i])
		assert(t, err == nil && off == want, "offset(%s) = %d (%v), want %d", names[i], off, err, want)
	}
}

// A program with live jumps (if/while/continue) disassembles and then runs
// to the expected result, which indirectly confirms every forward jump the
// builder backpatches reaches its intended target: a jump left at its
// placeholder target would send execution elsewhere and change the result.
func TestBackpatchedJumpsDecodeCleanly(t *testing.T) {
	decls := []Declaration{
		fn("main", IntType(), []Statement{
			&VariableDeclStmt{Name: "i", Type: AutoType(), Expr: &IntLit{Value: 0}},
			&WhileStmt{
				Cond: &BinaryExpr{Op: BinLt, LHS: &VariableExpr{Name: "i"}, RHS: &IntLit{Value: 3}},
				Body: []Statement{
					&IfStmt{
						Cond: &BinaryExpr{Op: BinEq, LHS: &VariableExpr{Name: "i"}, RHS: &IntLit{Value: 1}},
						Then: []Statement{
							&AssignmentStmt{LHS: &VariableExpr{Name: "i"}, Op: AssignAdd, RHS: &IntLit{Value: 1}},
							&ContinueStmt{},
						},
					},
					&AssignmentStmt{LHS: &VariableExpr{Name: "i"}, Op: AssignAdd, RHS: &IntLit{Value: 1}},
				},
			},
			&ReturnStmt{Expr: &VariableExpr{Name: "i"}},
		}),
	}
	e := mustCompile(t, decls)
	text, err := e.Disassemble()
	assert(t, err == nil, "Disassemble: %v", err)
	assert(t, len(text) > 0, "expected non-empty disassembly")
	if err := e.RunFn("root::main"); err != nil {
		t.Fatalf("RunFn: %v", err)
	}
	got := GetRegisterValue[int64](e.VM(), R0)
	assert(t, got == 3, "R0 = %d, want 3", got)
}
