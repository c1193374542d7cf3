package oxs

// SampleProgram builds a small demonstration module in lieu of a surface
// lexer/parser (out of scope, per spec.md §1): a Counter container with an
// increment method, and a root::main that loops, printing via the bundled
// std module. Exercises containers, member calls, a while loop, and foreign
// calls end to end — roughly spec.md §8 scenarios 4-6 combined.
func SampleProgram() []Declaration {
	counter := &ContainerDecl{
		Name:   "Counter",
		Fields: []Arg{{Name: "value", Type: IntType()}},
	}

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

	main := &FunctionDecl{
		Name:    "main",
		Args:    nil,
		RetType: VoidType(),
		Body: []Statement{
			&VariableDeclStmt{
				Name: "c",
				Type: AutoType(),
				Expr: &ContainerInstanceExpr{Name: "Counter", Fields: map[string]Expression{
					"value": &IntLit{Value: 0},
				}},
			},
			&VariableDeclStmt{
				Name: "i",
				Type: AutoType(),
				Expr: &IntLit{Value: 0},
			},
			&WhileStmt{
				Cond: &BinaryExpr{Op: BinLt, LHS: &VariableExpr{Name: "i"}, RHS: &IntLit{Value: 5}},
				Body: []Statement{
					&CallStmt{Path: "std::printi", Args: []Expression{&VariableExpr{Name: "i"}}},
					&ExpressionStmt{Expr: &MemberAccessExpr{
						LHS: &VariableExpr{Name: "c"},
						RHS: &CallExpr{Path: "increment", Args: []Expression{&IntLit{Value: 1}}},
					}},
					&AssignmentStmt{LHS: &VariableExpr{Name: "i"}, Op: AssignAdd, RHS: &IntLit{Value: 1}},
				},
			},
			&CallStmt{Path: "std::print", Args: []Expression{&StringLit{Value: "done\n"}}},
		},
	}

	return []Declaration{counter, implCounter, main}
}
