package oxs

import "testing"

// assert mirrors the teacher's own hand-rolled check helper.
func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

func mustCompile(t *testing.T, decls []Declaration) *Engine {
	t.Helper()
	e := New(1 << 14)
	if err := e.RegisterModule("std", StdModule()); err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}
	if err := e.Load(decls); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return e
}

func fn(name string, ret Type, body []Statement) *FunctionDecl {
	return &FunctionDecl{Name: name, RetType: ret, Body: body}
}

// scenario 1: literal return.
func TestCompileAndRunLiteralReturn(t *testing.T) {
	decls := []Declaration{
		fn("main", IntType(), []Statement{
			&ReturnStmt{Expr: &IntLit{Value: 42}},
		}),
	}
	e := mustCompile(t, decls)
	if err := e.RunFn("root::main"); err != nil {
		t.Fatalf("RunFn: %v", err)
	}
	got := GetRegisterValue[int64](e.VM(), R0)
	assert(t, got == 42, "R0 = %d, want 42", got)
}

// scenario 2: if/elseif/else chain picks the right branch.
func TestCompileAndRunIfElseIfElse(t *testing.T) {
	build := func(x int64) *Engine {
		decls := []Declaration{
			fn("main", IntType(), []Statement{
				&VariableDeclStmt{Name: "x", Type: AutoType(), Expr: &IntLit{Value: x}},
				&IfStmt{
					Cond: &BinaryExpr{Op: BinLt, LHS: &VariableExpr{Name: "x"}, RHS: &IntLit{Value: 0}},
					Then: []Statement{&ReturnStmt{Expr: &IntLit{Value: -1}}},
					ElseIfs: []ElseIf{
						{
							Cond: &BinaryExpr{Op: BinEq, LHS: &VariableExpr{Name: "x"}, RHS: &IntLit{Value: 0}},
							Body: []Statement{&ReturnStmt{Expr: &IntLit{Value: 0}}},
						},
					},
					Else: []Statement{&ReturnStmt{Expr: &IntLit{Value: 1}}},
				},
			}),
		}
		return mustCompile(t, decls)
	}

	cases := []struct {
		x    int64
		want int64
	}{
		{-5, -1},
		{0, 0},
		{7, 1},
	}
	for _, c := range cases {
		e := build(c.x)
		if err := e.RunFn("root::main"); err != nil {
			t.Fatalf("RunFn(x=%d): %v", c.x, err)
		}
		got := GetRegisterValue[int64](e.VM(), R0)
		assert(t, got == c.want, "x=%d: R0 = %d, want %d", c.x, got, c.want)
	}
}

// scenario 3: while loop with break partway through, accumulating a sum.
func TestCompileAndRunWhileBreakAccumulator(t *testing.T) {
	decls := []Declaration{
		fn("main", IntType(), []Statement{
			&VariableDeclStmt{Name: "i", Type: AutoType(), Expr: &IntLit{Value: 0}},
			&VariableDeclStmt{Name: "sum", Type: AutoType(), Expr: &IntLit{Value: 0}},
			&WhileStmt{
				Cond: &BinaryExpr{Op: BinLt, LHS: &VariableExpr{Name: "i"}, RHS: &IntLit{Value: 100}},
				Body: []Statement{
					&IfStmt{
						Cond: &BinaryExpr{Op: BinEq, LHS: &VariableExpr{Name: "i"}, RHS: &IntLit{Value: 5}},
						Then: []Statement{&BreakStmt{}},
					},
					&AssignmentStmt{LHS: &VariableExpr{Name: "sum"}, Op: AssignAdd, RHS: &VariableExpr{Name: "i"}},
					&AssignmentStmt{LHS: &VariableExpr{Name: "i"}, Op: AssignAdd, RHS: &IntLit{Value: 1}},
				},
			},
			&ReturnStmt{Expr: &VariableExpr{Name: "sum"}},
		}),
	}
	e := mustCompile(t, decls)
	if err := e.RunFn("root::main"); err != nil {
		t.Fatalf("RunFn: %v", err)
	}
	// sum of 0..4 == 10
	got := GetRegisterValue[int64](e.VM(), R0)
	assert(t, got == 10, "R0 = %d, want 10", got)
}

// scenario 4/5: foreign call (std::printi) inside a while loop, and a
// container + impl member call.
func TestCompileAndRunForeignCallAndMemberCall(t *testing.T) {
	counter := &ContainerDecl{Name: "Counter", Fields: []Arg{{Name: "value", Type: IntType()}}}
	increment := &FunctionDecl{
		Name:    "increment",
		Args:    []Arg{{Name: "this", Type: ReferenceType(OtherType("Counter"))}, {Name: "by", Type: IntType()}},
		RetType: VoidType(),
		Body: []Statement{
			&AssignmentStmt{
				LHS: &MemberAccessExpr{LHS: &VariableExpr{Name: "this"}, RHS: &VariableExpr{Name: "value"}},
				Op:  AssignAdd,
				RHS: &VariableExpr{Name: "by"},
			},
		},
	}
	implCounter := &ImplDecl{Type: "Counter", For: "Counter", Decls: []Declaration{increment}}

	main := fn("main", IntType(), []Statement{
		&VariableDeclStmt{
			Name: "c", Type: AutoType(),
			Expr: &ContainerInstanceExpr{Name: "Counter", Fields: map[string]Expression{"value": &IntLit{Value: 0}}},
		},
		&VariableDeclStmt{Name: "i", Type: AutoType(), Expr: &IntLit{Value: 0}},
		&WhileStmt{
			Cond: &BinaryExpr{Op: BinLt, LHS: &VariableExpr{Name: "i"}, RHS: &IntLit{Value: 3}},
			Body: []Statement{
				&CallStmt{Path: "std::printi", Args: []Expression{&VariableExpr{Name: "i"}}},
				&ExpressionStmt{Expr: &MemberAccessExpr{
					LHS: &VariableExpr{Name: "c"},
					RHS: &CallExpr{Path: "increment", Args: []Expression{&IntLit{Value: 2}}},
				}},
				&AssignmentStmt{LHS: &VariableExpr{Name: "i"}, Op: AssignAdd, RHS: &IntLit{Value: 1}},
			},
		},
		&ReturnStmt{Expr: &MemberAccessExpr{LHS: &VariableExpr{Name: "c"}, RHS: &VariableExpr{Name: "value"}}},
	})

	e := mustCompile(t, []Declaration{counter, implCounter, main})
	if err := e.RunFn("root::main"); err != nil {
		t.Fatalf("RunFn: %v", err)
	}
	got := GetRegisterValue[int64](e.VM(), R0)
	assert(t, got == 6, "R0 = %d, want 6 (incremented by 2, three times)", got)
}

// scenario 6: the bundled demonstration program runs end to end without
// error, exercising containers, member calls, a while loop ended by its
// condition, and foreign print/printi together.
func TestSampleProgramRuns(t *testing.T) {
	e := New(1 << 14)
	if err := e.RegisterModule("std", StdModule()); err != nil {
		t.Fatalf("RegisterModule: %v", err)
	}
	if err := e.Load(SampleProgram()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.RunFn("root::main"); err != nil {
		t.Fatalf("RunFn: %v", err)
	}
}

func TestDisassembleProducesOutput(t *testing.T) {
	e := mustCompile(t, []Declaration{
		fn("main", IntType(), []Statement{&ReturnStmt{Expr: &IntLit{Value: 1}}}),
	})
	text, err := e.Disassemble()
	assert(t, err == nil, "Disassemble: %v", err)
	assert(t, len(text) > 0, "expected non-empty disassembly")
}

func TestEngineRunFnWithoutLoadFails(t *testing.T) {
	e := New(1 << 10)
	err := e.RunFn("root::main")
	assert(t, err == ErrNoProgram, "err = %v, want ErrNoProgram", err)
}
