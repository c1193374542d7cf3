package oxs

import (
	"fmt"
	"strings"
)

// Compiler lowers a declaration tree into a Program in two phases: Declare
// populates the module/container/function symbol tables without emitting
// any code, and Compile walks function bodies emitting instructions via the
// Builder (§4.3).
type Compiler struct {
	root        *ModuleContext
	moduleStack []*ModuleContext
	fnStack     []*FunctionContext
	loopStack   []*LoopContext
	uids        *UIDGenerator
	builder     *Builder
	data        *Data
	foreignFns  map[uint64]*ForeignFunction
}

func NewCompiler() *Compiler {
	root := NewModuleContext("root", nil)
	return &Compiler{
		root:        root,
		moduleStack: []*ModuleContext{root},
		uids:        NewUIDGenerator(),
		builder:     NewBuilder(),
		data:        NewData(),
		foreignFns:  make(map[uint64]*ForeignFunction),
	}
}

func (c *Compiler) GetBuilder() *Builder { return c.builder }

func (c *Compiler) currentModule() *ModuleContext { return c.moduleStack[len(c.moduleStack)-1] }
func (c *Compiler) pushModule(m *ModuleContext)    { c.moduleStack = append(c.moduleStack, m) }
func (c *Compiler) popModule()                     { c.moduleStack = c.moduleStack[:len(c.moduleStack)-1] }
func (c *Compiler) fn() *FunctionContext           { return c.fnStack[len(c.fnStack)-1] }
func (c *Compiler) pushFunction(fc *FunctionContext) { c.fnStack = append(c.fnStack, fc) }
func (c *Compiler) popFunction()                   { c.fnStack = c.fnStack[:len(c.fnStack)-1] }

func (c *Compiler) findContainer(name string) (*ContainerDef, bool) {
	if cont, ok := c.currentModule().GetContainer(name); ok {
		return cont, true
	}
	return c.root.GetContainer(name)
}

// resolvePath walks a dotted/double-colon path to the module that owns its
// final segment, per §4.3.5: "root::" starts at the root module, a bare
// leading segment starts at the current module, falling back to root.
// "super::" is reserved and unimplemented, matching the Open Question in
// spec.md §9.
func (c *Compiler) resolvePath(path string) (*ModuleContext, string) {
	segments := strings.Split(path, "::")
	var mod *ModuleContext
	start := 0
	if segments[0] == "root" {
		mod = c.root
		start = 1
	} else {
		mod = c.currentModule()
	}
	for start < len(segments)-1 {
		seg := segments[start]
		if child, ok := mod.GetModule(seg); ok {
			mod = child
		} else if child, ok := c.root.GetModule(seg); ok {
			mod = child
		} else {
			break
		}
		start++
	}
	return mod, segments[len(segments)-1]
}

func (c *Compiler) resolveFunction(path string) (FunctionDef, error) {
	if !strings.Contains(path, "::") {
		if aliasPath, ok := c.currentModule().Imports[path]; ok {
			path = aliasPath
		}
	}
	mod, name := c.resolvePath(path)
	if f, ok := mod.GetFunction(name); ok {
		return f, nil
	}
	return FunctionDef{}, &CompileError{Kind: ErrUnknownFunction, Detail: path}
}

// SizeOfType resolves a type's byte size, consulting the container table
// for Other (§3.1 size rules).
func (c *Compiler) SizeOfType(t Type) (uint32, error) {
	if sz, ok := StaticSizeOf(t); ok {
		return sz, nil
	}
	switch t.Kind {
	case KindOther:
		cont, ok := c.findContainer(t.Name)
		if !ok {
			return 0, &CompileError{Kind: ErrUnknownContainer, Detail: t.Name}
		}
		return cont.GetSize(c.SizeOfType)
	case KindArray:
		elemSz, err := c.SizeOfType(*t.Elem)
		if err != nil {
			return 0, err
		}
		return elemSz * t.Len, nil
	default:
		return 0, &CompileError{Kind: ErrUnknownType}
	}
}

func (c *Compiler) growStack(n uint32) {
	if n == 0 {
		return
	}
	c.builder.PushInstr(IncStack(uint64(n)))
	c.fn().StackSize += int64(n)
}

func (c *Compiler) shrinkStack(n uint32) {
	if n == 0 {
		return
	}
	c.builder.PushInstr(DecStack(uint64(n)))
	c.fn().StackSize -= int64(n)
}

// totalFrameBytes sums StackSize across every context pushed for the
// function currently being compiled (the root context plus any nested
// weak block/loop frames still open) — the exact amount Return must pop.
func (c *Compiler) totalFrameBytes() int64 {
	var total int64
	for _, fc := range c.fnStack {
		total += fc.StackSize
	}
	return total
}

// bytesSinceLoopEntry sums StackSize from the innermost context back up to
// (and including) the nearest loop context — what Break/Continue must pop
// before jumping.
func (c *Compiler) bytesSinceLoopEntry() int64 {
	var total int64
	for i := len(c.fnStack) - 1; i >= 0; i-- {
		fc := c.fnStack[i]
		total += fc.StackSize
		if fc.IsLoop {
			break
		}
	}
	return total
}

// lookupVar resolves a name in the current function context, returning the
// variable's effective offset from the *current* SP: storedOffset -
// fc.StackSize, which stays correct across further pushes/pops in this
// frame and across the rebasing NewWeakFunctionContext performs when
// descending into a block (§4.3 "Stack-slot assignment").
func (c *Compiler) lookupVar(name string) (Type, int64, bool) {
	fc := c.fn()
	loc, ok := fc.GetVarLoc(name)
	if !ok {
		return Type{}, 0, false
	}
	t, _ := fc.GetVarType(name)
	return t, loc.Offset - fc.StackSize, true
}

func (c *Compiler) emitLoadByTypeAR(t Type, addrReg RegID, off int16, dst RegID) {
	switch t.Kind {
	case KindBool:
		c.builder.PushInstr(MovBAR(addrReg, off, dst))
	case KindFloat:
		c.builder.PushInstr(MovFAR(addrReg, off, dst))
	case KindInt:
		c.builder.PushInstr(MovIAR(addrReg, off, dst))
	case KindReference:
		c.builder.PushInstr(MovAAR(addrReg, off, dst))
	}
}

func (c *Compiler) emitStoreByType(t Type, src RegID, addrReg RegID, off int16) {
	switch t.Kind {
	case KindBool:
		c.builder.PushInstr(MovBRA(src, addrReg, off))
	case KindFloat:
		c.builder.PushInstr(MovFRA(src, addrReg, off))
	case KindInt:
		c.builder.PushInstr(MovIRA(src, addrReg, off))
	case KindReference:
		c.builder.PushInstr(MovARA(src, addrReg, off))
	}
}

// ===== Phase 1: declaration pre-pass =====

func (c *Compiler) DeclareRoot(decls []Declaration) error { return c.declareDeclList(decls) }

func (c *Compiler) declareDeclList(decls []Declaration) error {
	for _, d := range decls {
		if err := c.declareDecl(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) declareDecl(d Declaration) error {
	switch decl := d.(type) {
	case *FunctionDecl:
		return c.declareFunction(decl, "")
	case *ModuleDecl:
		return c.declareModule(decl)
	case *ContainerDecl:
		return c.declareContainer(decl)
	case *ImportDecl:
		alias := decl.Alias
		if alias == "" {
			segs := strings.Split(decl.Path, "::")
			alias = segs[len(segs)-1]
		}
		return c.currentModule().AddImport(alias, decl.Path)
	case *ImplDecl:
		return c.declareImpl(decl)
	case *StaticVarDecl:
		return nil
	case *InterfaceDecl:
		return c.declareInterface(decl)
	}
	return nil
}

func (c *Compiler) declareFunctionDef(mod *ModuleContext, name string, args []Arg, ret Type, foreign bool, canonical string) (FunctionDef, error) {
	argSizes := make([]uint32, len(args))
	for i, a := range args {
		sz, err := c.SizeOfType(a.Type)
		if err != nil {
			return FunctionDef{}, err
		}
		argSizes[i] = sz
	}
	offsets := make([]int64, len(argSizes))
	var pos int64
	for i := len(argSizes) - 1; i >= 0; i-- {
		pos -= int64(argSizes[i])
		offsets[i] = pos
	}
	uid := c.uids.GetFunctionUID(canonical)
	return FunctionDef{
		Name: name, UID: uid, RetType: ret, Arguments: args,
		Foreign: foreign, ArgSizes: argSizes, ArgOffsets: offsets,
	}, nil
}

func (c *Compiler) declareFunction(decl *FunctionDecl, containerName string) error {
	mod := c.currentModule()
	canonical := mod.CanonicalName()
	if containerName != "" {
		canonical += "::" + containerName
	}
	canonical += "::" + decl.Name

	def, err := c.declareFunctionDef(mod, decl.Name, decl.Args, decl.RetType, decl.Foreign, canonical)
	if err != nil {
		return err
	}

	if containerName != "" {
		cont, ok := mod.GetContainer(containerName)
		if !ok {
			return &CompileError{Kind: ErrUnknownContainer, Detail: containerName}
		}
		return cont.AddMemberFunction(def)
	}
	return mod.AddFunction(def)
}

func (c *Compiler) declareContainer(decl *ContainerDecl) error {
	mod := c.currentModule()
	cont := NewContainerDef(decl.Name, mod.CanonicalName()+"::"+decl.Name)
	if err := cont.MergeDecl(decl); err != nil {
		return err
	}
	return mod.AddContainer(cont)
}

func (c *Compiler) declareModule(decl *ModuleDecl) error {
	mod := c.currentModule()
	child, err := mod.AddModule(decl.Name)
	if err != nil {
		return err
	}
	c.pushModule(child)
	defer c.popModule()
	return c.declareDeclList(decl.Decls)
}

func (c *Compiler) declareImpl(decl *ImplDecl) error {
	if decl.Type != decl.For {
		// Only Impl(T, T, ...) is lowered, per spec.md §3.2.
		return nil
	}
	mod := c.currentModule()
	if _, ok := mod.GetContainer(decl.Type); !ok {
		return &CompileError{Kind: ErrUnknownContainer, Detail: decl.Type}
	}
	for _, d := range decl.Decls {
		fd, ok := d.(*FunctionDecl)
		if !ok {
			continue
		}
		if err := c.declareFunction(fd, decl.Type); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) declareInterface(decl *InterfaceDecl) error {
	mod := c.currentModule()
	iface := NewInterfaceDef(decl.Name)
	for _, f := range decl.Functions {
		def, err := c.declareFunctionDef(mod, f.Name, f.Args, f.RetType, false, mod.CanonicalName()+"::"+decl.Name+"::"+f.Name)
		if err != nil {
			return err
		}
		iface.AddFunction(def)
	}
	return mod.AddInterface(iface)
}

// RegisterForeignModule declares a host-provided module of foreign
// functions (e.g. the bundled std print/IO module) under path, computing
// each function's argument layout and memoizing its UID so CALL can route
// to the closure at runtime.
func (c *Compiler) RegisterForeignModule(path string, functions []*ForeignFunction) error {
	mod, name := c.resolvePath(path)
	child, err := mod.AddModule(name)
	if err != nil {
		return err
	}
	for _, ff := range functions {
		argSizes := make([]uint32, len(ff.ArgTypes))
		for i, t := range ff.ArgTypes {
			sz, err := c.SizeOfType(t)
			if err != nil {
				return err
			}
			argSizes[i] = sz
		}
		ff.SetArgLayout(argSizes)
		args := make([]Arg, len(ff.ArgTypes))
		for i, t := range ff.ArgTypes {
			args[i] = Arg{Name: fmt.Sprintf("arg%d", i), Type: t}
		}
		uid := c.uids.GetFunctionUID(child.CanonicalName() + "::" + ff.Name)
		def := FunctionDef{
			Name: ff.Name, UID: uid, RetType: ff.RetType, Arguments: args,
			Foreign: true, ArgSizes: argSizes, ArgOffsets: ff.ArgOffsets,
		}
		if err := child.AddFunction(def); err != nil {
			return err
		}
		c.foreignFns[uid] = ff
	}
	return nil
}

// ===== Phase 2: lowering pass =====

func (c *Compiler) CompileRoot(decls []Declaration) error { return c.compileDeclList(decls) }

func (c *Compiler) compileDeclList(decls []Declaration) error {
	for _, d := range decls {
		if err := c.compileDecl(d); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileDecl(d Declaration) error {
	switch decl := d.(type) {
	case *FunctionDecl:
		return c.compileFunctionDecl(decl, "")
	case *ModuleDecl:
		mod, ok := c.currentModule().GetModule(decl.Name)
		if !ok {
			return &CompileError{Kind: ErrUnknownModule, Detail: decl.Name}
		}
		c.pushModule(mod)
		defer c.popModule()
		return c.compileDeclList(decl.Decls)
	case *ImplDecl:
		if decl.Type != decl.For {
			return nil
		}
		for _, id := range decl.Decls {
			fd, ok := id.(*FunctionDecl)
			if !ok {
				continue
			}
			if err := c.compileFunctionDecl(fd, decl.Type); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func (c *Compiler) compileFunctionDecl(decl *FunctionDecl, containerName string) error {
	if decl.Foreign || decl.Body == nil {
		return nil
	}
	mod := c.currentModule()
	canonical := mod.CanonicalName()
	if containerName != "" {
		canonical += "::" + containerName
	}
	canonical += "::" + decl.Name

	var def FunctionDef
	var ok bool
	if containerName != "" {
		cont, _ := mod.GetContainer(containerName)
		def, ok = cont.GetMemberFunction(decl.Name)
	} else {
		def, ok = mod.GetFunction(decl.Name)
	}
	if !ok {
		return &CompileError{Kind: ErrUnknownFunction, Detail: canonical}
	}

	c.builder.PushLabel(canonical)
	fc := NewFunctionContext(&def)
	c.pushFunction(fc)
	defer c.popFunction()

	if err := c.compileStmtList(decl.Body); err != nil {
		return err
	}
	if def.RetType.Kind == KindVoid {
		if err := c.compileReturn(nil); err != nil {
			return err
		}
	}
	c.builder.PushInstr(Halt(1))
	return nil
}

func (c *Compiler) collectFunctionOffsets(mod *ModuleContext, out map[uint64]int, dataLen int) {
	for name, f := range mod.Functions {
		if f.Foreign {
			continue
		}
		canonical := mod.CanonicalName() + "::" + name
		if off, ok := c.builder.GetLabelOffset(canonical); ok {
			out[f.UID] = off + dataLen
		}
	}
	for _, cont := range mod.Containers {
		for name, f := range cont.MemberFunctions {
			canonical := mod.CanonicalName() + "::" + cont.Name + "::" + name
			if off, ok := c.builder.GetLabelOffset(canonical); ok {
				out[f.UID] = off + dataLen
			}
		}
	}
	for _, child := range mod.Modules {
		c.collectFunctionOffsets(child, out, dataLen)
	}
}

// GetProgram performs final program assembly (§4.3.2): prepends the data
// segment, shifts every jump target and function offset by data_len.
func (c *Compiler) GetProgram() (*Program, error) {
	dataLen := c.data.Len()
	c.builder.ShiftJumpTargets(uint64(dataLen))
	code := c.builder.Build(c.data)

	functions := make(map[uint64]int)
	c.collectFunctionOffsets(c.root, functions, dataLen)

	foreignFns := make(map[uint64]*ForeignFunction, len(c.foreignFns))
	for uid, ff := range c.foreignFns {
		foreignFns[uid] = ff
	}

	return &Program{Code: code, DataLen: dataLen, Functions: functions, ForeignFunctions: foreignFns}, nil
}

// Compile runs both phases and assembles the final Program.
func (c *Compiler) Compile(decls []Declaration) (*Program, error) {
	if err := c.DeclareRoot(decls); err != nil {
		return nil, err
	}
	if err := c.CompileRoot(decls); err != nil {
		return nil, err
	}
	return c.GetProgram()
}

// GetFunctionUID exposes the compiler's UID for a canonical function path,
// used by the Engine to resolve run_fn(name) against the compiled Program.
func (c *Compiler) GetFunctionUID(path string) (uint64, error) {
	def, err := c.resolveFunction(path)
	if err != nil {
		return 0, err
	}
	return def.UID, nil
}

// ===== Statement lowering (§4.3.3) =====

func (c *Compiler) compileStmtList(stmts []Statement) error {
	for _, s := range stmts {
		if err := c.compileStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileStmt(s Statement) error {
	switch st := s.(type) {
	case *VariableDeclStmt:
		return c.compileVariableDeclStmt(st)
	case *ExpressionStmt:
		return c.compileDiscardedExpr(st.Expr)
	case *ReturnStmt:
		return c.compileReturn(st.Expr)
	case *IfStmt:
		return c.compileIf(st)
	case *WhileStmt:
		return c.compileWhile(st)
	case *LoopStmt:
		return c.compileWhile(&WhileStmt{Cond: &BoolLit{Value: true}, Body: st.Body})
	case *BreakStmt:
		return c.compileBreak()
	case *ContinueStmt:
		return c.compileContinue()
	case *AssignmentStmt:
		return c.compileAssignment(st)
	case *CallStmt:
		return c.compileDiscardedExpr(&CallExpr{Path: st.Path, Args: st.Args})
	default:
		return &CompileError{Kind: ErrUnsupportedExpression}
	}
}

func (c *Compiler) compileDiscardedExpr(e Expression) error {
	_, t, err := c.compileExpr(e)
	if err != nil {
		return err
	}
	if !t.IsPrimitive() && t.Kind != KindVoid {
		sz, err := c.SizeOfType(t)
		if err != nil {
			return err
		}
		c.shrinkStack(sz)
	}
	return nil
}

func (c *Compiler) compileVariableDeclStmt(stmt *VariableDeclStmt) error {
	reg, exprType, err := c.compileExpr(stmt.Expr)
	if err != nil {
		return err
	}
	declType := stmt.Type
	if declType.Kind == KindAuto {
		declType = exprType
	}
	if !declType.Equal(exprType) {
		return &CompileError{Kind: ErrTypeMismatch, Expected: declType, Got: exprType}
	}
	fc := c.fn()
	sz, err := c.SizeOfType(declType)
	if err != nil {
		return err
	}
	if declType.IsPrimitive() {
		oldSize := fc.StackSize
		c.growStack(sz)
		c.emitStoreByType(declType, reg, SP, int16(-int64(sz)))
		fc.SetStackVar(stmt.Name, declType, oldSize)
	} else {
		fc.SetStackVar(stmt.Name, declType, fc.StackSize-int64(sz))
	}
	return nil
}

func (c *Compiler) compileBlock(stmts []Statement) error {
	parent := c.fn()
	child := NewWeakFunctionContext(parent)
	c.pushFunction(child)
	err := c.compileStmtList(stmts)
	popSize := child.StackSize
	c.popFunction()
	if err != nil {
		return err
	}
	// The block's bytes were counted in the child frame only, so the
	// parent's StackSize stays as it is.
	if popSize > 0 {
		c.builder.PushInstr(DecStack(uint64(popSize)))
	}
	return nil
}

func (c *Compiler) compileIf(stmt *IfStmt) error {
	endTag := c.uids.Generate()

	condReg, condType, err := c.compileExpr(stmt.Cond)
	if err != nil {
		return err
	}
	if condType.Kind != KindBool {
		return &CompileError{Kind: ErrTypeMismatch, Expected: BoolType(), Got: condType}
	}
	nextTag := c.uids.Generate()
	idx := c.builder.PushInstr(JmpF(condReg, 0))
	c.builder.Tag(nextTag, idx)

	if err := c.compileBlock(stmt.Then); err != nil {
		return err
	}
	idx = c.builder.PushInstr(Jmp(0))
	c.builder.Tag(endTag, idx)

	curTag := nextTag
	for _, ei := range stmt.ElseIfs {
		offset := c.builder.GetCurrentOffset()
		c.builder.ResolveTag(curTag, uint64(offset))

		condReg, condType, err := c.compileExpr(ei.Cond)
		if err != nil {
			return err
		}
		if condType.Kind != KindBool {
			return &CompileError{Kind: ErrTypeMismatch, Expected: BoolType(), Got: condType}
		}
		nextTag = c.uids.Generate()
		idx := c.builder.PushInstr(JmpF(condReg, 0))
		c.builder.Tag(nextTag, idx)

		if err := c.compileBlock(ei.Body); err != nil {
			return err
		}
		idx = c.builder.PushInstr(Jmp(0))
		c.builder.Tag(endTag, idx)
		curTag = nextTag
	}

	offset := c.builder.GetCurrentOffset()
	c.builder.ResolveTag(curTag, uint64(offset))
	if stmt.Else != nil {
		if err := c.compileBlock(stmt.Else); err != nil {
			return err
		}
	}

	endOffset := c.builder.GetCurrentOffset()
	c.builder.ResolveTag(endTag, uint64(endOffset))
	return nil
}

func (c *Compiler) compileWhile(stmt *WhileStmt) error {
	startOffset := c.builder.GetCurrentOffset()
	condReg, condType, err := c.compileExpr(stmt.Cond)
	if err != nil {
		return err
	}
	if condType.Kind != KindBool {
		return &CompileError{Kind: ErrTypeMismatch, Expected: BoolType(), Got: condType}
	}
	endTag := c.uids.Generate()
	idx := c.builder.PushInstr(JmpF(condReg, 0))
	c.builder.Tag(endTag, idx)

	c.loopStack = append(c.loopStack, &LoopContext{StartPos: startOffset, EndTag: endTag})

	parent := c.fn()
	child := NewLoopFunctionContext(parent)
	c.pushFunction(child)
	bodyErr := c.compileStmtList(stmt.Body)
	popSize := child.StackSize
	c.popFunction()
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
	if bodyErr != nil {
		return bodyErr
	}
	if popSize > 0 {
		c.builder.PushInstr(DecStack(uint64(popSize)))
	}

	c.builder.PushInstr(Jmp(uint64(startOffset)))
	endOffset := c.builder.GetCurrentOffset()
	c.builder.ResolveTag(endTag, uint64(endOffset))
	return nil
}

func (c *Compiler) compileBreak() error {
	if len(c.loopStack) == 0 {
		return &CompileError{Kind: ErrBreakOutsideLoop}
	}
	loop := c.loopStack[len(c.loopStack)-1]
	if n := c.bytesSinceLoopEntry(); n > 0 {
		c.builder.PushInstr(DecStack(uint64(n)))
	}
	idx := c.builder.PushInstr(Jmp(0))
	c.builder.Tag(loop.EndTag, idx)
	return nil
}

func (c *Compiler) compileContinue() error {
	if len(c.loopStack) == 0 {
		return &CompileError{Kind: ErrContinueOutsideLoop}
	}
	loop := c.loopStack[len(c.loopStack)-1]
	if n := c.bytesSinceLoopEntry(); n > 0 {
		c.builder.PushInstr(DecStack(uint64(n)))
	}
	c.builder.PushInstr(Jmp(uint64(loop.StartPos)))
	return nil
}

func (c *Compiler) compileReturn(expr Expression) error {
	fc := c.fn()
	retType := fc.GetRetType()

	if expr == nil {
		if retType.Kind != KindVoid {
			return &CompileError{Kind: ErrTypeMismatch, Expected: retType, Got: VoidType()}
		}
	} else {
		reg, exprType, err := c.compileExpr(expr)
		if err != nil {
			return err
		}
		if !exprType.Equal(retType) {
			return &CompileError{Kind: ErrTypeMismatch, Expected: retType, Got: exprType}
		}
		if retType.IsPrimitive() {
			c.emitMovByType(retType, reg, R0)
		}
	}

	totalPop := c.totalFrameBytes()
	if retType.Kind != KindVoid && !retType.IsPrimitive() {
		sz, err := c.SizeOfType(retType)
		if err != nil {
			return err
		}
		if totalPop > int64(sz) {
			c.builder.PushInstr(MovNA(SP, int16(-int64(sz)), SP, int16(-totalPop), sz))
		}
		totalPop -= int64(sz)
	}
	if totalPop > 0 {
		c.builder.PushInstr(DecStack(uint64(totalPop)))
	}
	c.builder.PushInstr(Ret())
	return nil
}

func (c *Compiler) emitMovByType(t Type, src, dst RegID) {
	switch t.Kind {
	case KindBool:
		c.builder.PushInstr(MovB(src, dst))
	case KindFloat:
		c.builder.PushInstr(MovF(src, dst))
	case KindInt:
		c.builder.PushInstr(MovI(src, dst))
	case KindReference:
		c.builder.PushInstr(MovA(src, dst))
	}
}

func (c *Compiler) compileAssignment(stmt *AssignmentStmt) error {
	ptrReg, lvalType, err := c.compileLValueAddress(stmt.LHS)
	if err != nil {
		return err
	}
	oldSize := c.fn().StackSize
	c.growStack(8)
	c.builder.PushInstr(MovARA(ptrReg, SP, -8))

	rhsExpr := stmt.RHS
	if stmt.Op != AssignSet {
		var op BinOp
		switch stmt.Op {
		case AssignAdd:
			op = BinAdd
		case AssignSub:
			op = BinSub
		case AssignMul:
			op = BinMul
		case AssignDiv:
			op = BinDiv
		}
		rhsExpr = &BinaryExpr{Op: op, LHS: stmt.LHS, RHS: stmt.RHS}
	}
	reg, rhsType, err := c.compileExpr(rhsExpr)
	if err != nil {
		return err
	}
	if !lvalType.Equal(rhsType) {
		return &CompileError{Kind: ErrTypeMismatch, Expected: lvalType, Got: rhsType}
	}

	reloadReg := c.fn().Registers.GetTempRegister()
	reloadOffset := int16(oldSize - c.fn().StackSize)
	c.builder.PushInstr(MovAAR(SP, reloadOffset, reloadReg))
	c.shrinkStack(8)

	if lvalType.IsPrimitive() {
		c.emitStoreByType(lvalType, reg, reloadReg, 0)
	} else {
		sz, err := c.SizeOfType(lvalType)
		if err != nil {
			return err
		}
		c.builder.PushInstr(MovNA(SP, int16(-int64(sz)), reloadReg, 0, sz))
		c.shrinkStack(sz)
	}
	return nil
}

// ===== Expression lowering (§4.3.4) =====

func (c *Compiler) compileExpr(e Expression) (RegID, Type, error) {
	switch ex := e.(type) {
	case *IntLit:
		reg := c.fn().Registers.GetTempRegister()
		c.builder.PushInstr(LdI(ex.Value, reg))
		return reg, IntType(), nil
	case *FloatLit:
		reg := c.fn().Registers.GetTempRegister()
		c.builder.PushInstr(LdF(ex.Value, reg))
		return reg, FloatType(), nil
	case *BoolLit:
		reg := c.fn().Registers.GetTempRegister()
		c.builder.PushInstr(LdB(ex.Value, reg))
		return reg, BoolType(), nil
	case *StringLit:
		return c.compileStringLit(ex)
	case *VariableExpr:
		return c.compileVariableRead(ex.Name)
	case *RefExpr:
		reg, t, err := c.compileLValueAddress(ex.Expr)
		if err != nil {
			return 0, Type{}, err
		}
		return reg, ReferenceType(t), nil
	case *DerefExpr:
		return c.compileDeref(ex.Expr)
	case *BinaryExpr:
		return c.compileBinary(ex)
	case *UnaryExpr:
		return c.compileUnary(ex)
	case *ContainerInstanceExpr:
		return c.compileContainerInstance(ex)
	case *MemberAccessExpr:
		return c.compileMemberAccess(ex)
	case *CallExpr:
		return c.compileCall(ex)
	default:
		return 0, Type{}, &CompileError{Kind: ErrUnsupportedExpression}
	}
}

func (c *Compiler) compileStringLit(ex *StringLit) (RegID, Type, error) {
	length, addr := c.data.GetStringSlice(ex.Value)
	addrReg := c.fn().Registers.GetTempRegister()
	c.builder.PushInstr(LdA(addr, addrReg))
	lenReg := c.fn().Registers.GetTempRegister()
	c.builder.PushInstr(LdA(uint64(length), lenReg))
	c.growStack(16)
	c.builder.PushInstr(MovARA(lenReg, SP, -16))
	c.builder.PushInstr(MovARA(addrReg, SP, -8))
	return 0, StringType(), nil
}

func (c *Compiler) compileVariableRead(name string) (RegID, Type, error) {
	t, eff, ok := c.lookupVar(name)
	if !ok {
		return 0, Type{}, &CompileError{Kind: ErrUnknownVariable, Detail: name}
	}
	if t.IsPrimitive() {
		dst := c.fn().Registers.GetTempRegister()
		c.emitLoadByTypeAR(t, SP, int16(eff), dst)
		return dst, t, nil
	}
	sz, err := c.SizeOfType(t)
	if err != nil {
		return 0, Type{}, err
	}
	c.growStack(sz)
	c.builder.PushInstr(MovNA(SP, int16(eff-int64(sz)), SP, int16(-int64(sz)), sz))
	return 0, t, nil
}

// compileLValueAddress produces a register holding a tagged stack address
// for e, along with the type stored AT that address (not a Reference to
// it). Chasing through a reference-typed variable dereferences it
// automatically, since member access on `&Container` reads through the
// pointer transparently (§4.3.4 "MemberAccess (rvalue)").
func (c *Compiler) compileLValueAddress(e Expression) (RegID, Type, error) {
	switch ex := e.(type) {
	case *VariableExpr:
		t, eff, ok := c.lookupVar(ex.Name)
		if !ok {
			return 0, Type{}, &CompileError{Kind: ErrUnknownVariable, Detail: ex.Name}
		}
		reg := c.fn().Registers.GetTempRegister()
		c.builder.PushInstr(SubUImm(SP, uint64(-eff), reg))
		if refType, isRef := t.GetRefType(); isRef {
			derefReg := c.fn().Registers.GetTempRegister()
			c.builder.PushInstr(MovAAR(reg, 0, derefReg))
			return derefReg, refType, nil
		}
		return reg, t, nil
	case *MemberAccessExpr:
		baseReg, baseType, err := c.compileLValueAddress(ex.LHS)
		if err != nil {
			return 0, Type{}, err
		}
		contName, ok := baseType.GetContName()
		if !ok {
			return 0, Type{}, &CompileError{Kind: ErrMemberAccessOnNonContainer}
		}
		fieldVar, ok := ex.RHS.(*VariableExpr)
		if !ok {
			return 0, Type{}, &CompileError{Kind: ErrNotAMemberFunction}
		}
		cont, ok := c.findContainer(contName)
		if !ok {
			return 0, Type{}, &CompileError{Kind: ErrUnknownContainer, Detail: contName}
		}
		offset, err := cont.GetMemberOffset(c.SizeOfType, fieldVar.Name)
		if err != nil {
			return 0, Type{}, err
		}
		fieldType, _ := cont.GetMemberType(fieldVar.Name)
		resReg := c.fn().Registers.GetTempRegister()
		c.builder.PushInstr(AddUImm(baseReg, uint64(offset), resReg))
		return resReg, fieldType, nil
	default:
		return 0, Type{}, &CompileError{Kind: ErrCannotDerefNonPointer}
	}
}

func (c *Compiler) compileDeref(e Expression) (RegID, Type, error) {
	reg, t, err := c.compileExpr(e)
	if err != nil {
		return 0, Type{}, err
	}
	elem, ok := t.GetRefType()
	if !ok {
		return 0, Type{}, &CompileError{Kind: ErrCannotDerefNonPointer}
	}
	if elem.Kind == KindAutoArray {
		return 0, Type{}, &CompileError{Kind: ErrCannotDerefSlice}
	}
	dst := c.fn().Registers.GetTempRegister()
	c.emitLoadByTypeAR(elem, reg, 0, dst)
	return dst, elem, nil
}

func (c *Compiler) compileBinary(ex *BinaryExpr) (RegID, Type, error) {
	if ex.Op == BinAnd || ex.Op == BinOr {
		lreg, lt, err := c.compileExpr(ex.LHS)
		if err != nil {
			return 0, Type{}, err
		}
		if lt.Kind != KindBool {
			return 0, Type{}, &CompileError{Kind: ErrTypeMismatch, Expected: BoolType(), Got: lt}
		}
		rreg, rt, err := c.compileExpr(ex.RHS)
		if err != nil {
			return 0, Type{}, err
		}
		if rt.Kind != KindBool {
			return 0, Type{}, &CompileError{Kind: ErrTypeMismatch, Expected: BoolType(), Got: rt}
		}
		dst := c.fn().Registers.GetTempRegister()
		if ex.Op == BinAnd {
			c.builder.PushInstr(And(lreg, rreg, dst))
		} else {
			c.builder.PushInstr(Or(lreg, rreg, dst))
		}
		return dst, BoolType(), nil
	}

	lreg, lt, err := c.compileExpr(ex.LHS)
	if err != nil {
		return 0, Type{}, err
	}
	rreg, rt, err := c.compileExpr(ex.RHS)
	if err != nil {
		return 0, Type{}, err
	}
	if !lt.Equal(rt) || (lt.Kind != KindInt && lt.Kind != KindFloat) {
		return 0, Type{}, &CompileError{Kind: ErrTypeMismatch, Expected: lt, Got: rt}
	}
	isFloat := lt.Kind == KindFloat
	dst := c.fn().Registers.GetTempRegister()
	resultType := lt
	var instr Instruction
	switch ex.Op {
	case BinAdd:
		if isFloat {
			instr = AddF(lreg, rreg, dst)
		} else {
			instr = AddI(lreg, rreg, dst)
		}
	case BinSub:
		if isFloat {
			instr = SubF(lreg, rreg, dst)
		} else {
			instr = SubI(lreg, rreg, dst)
		}
	case BinMul:
		if isFloat {
			instr = MulF(lreg, rreg, dst)
		} else {
			instr = MulI(lreg, rreg, dst)
		}
	case BinDiv:
		if isFloat {
			instr = DivF(lreg, rreg, dst)
		} else {
			instr = DivI(lreg, rreg, dst)
		}
	case BinEq:
		resultType = BoolType()
		if isFloat {
			instr = EqF(lreg, rreg, dst)
		} else {
			instr = EqI(lreg, rreg, dst)
		}
	case BinNeq:
		resultType = BoolType()
		if isFloat {
			instr = NeqF(lreg, rreg, dst)
		} else {
			instr = NeqI(lreg, rreg, dst)
		}
	case BinLt:
		resultType = BoolType()
		if isFloat {
			instr = LtF(lreg, rreg, dst)
		} else {
			instr = LtI(lreg, rreg, dst)
		}
	case BinGt:
		resultType = BoolType()
		if isFloat {
			instr = GtF(lreg, rreg, dst)
		} else {
			instr = GtI(lreg, rreg, dst)
		}
	case BinLteq:
		resultType = BoolType()
		if isFloat {
			instr = LteqF(lreg, rreg, dst)
		} else {
			instr = LteqI(lreg, rreg, dst)
		}
	case BinGteq:
		resultType = BoolType()
		if isFloat {
			instr = GteqF(lreg, rreg, dst)
		} else {
			instr = GteqI(lreg, rreg, dst)
		}
	default:
		return 0, Type{}, &CompileError{Kind: ErrUnsupportedExpression}
	}
	c.builder.PushInstr(instr)
	return dst, resultType, nil
}

func (c *Compiler) compileUnary(ex *UnaryExpr) (RegID, Type, error) {
	reg, t, err := c.compileExpr(ex.Expr)
	if err != nil {
		return 0, Type{}, err
	}
	if ex.Op != UnNot {
		return 0, Type{}, &CompileError{Kind: ErrUnsupportedExpression}
	}
	if t.Kind != KindBool {
		return 0, Type{}, &CompileError{Kind: ErrTypeMismatch, Expected: BoolType(), Got: t}
	}
	dst := c.fn().Registers.GetTempRegister()
	c.builder.PushInstr(Not(reg, dst))
	return dst, BoolType(), nil
}

func (c *Compiler) compileContainerInstance(ex *ContainerInstanceExpr) (RegID, Type, error) {
	cont, ok := c.findContainer(ex.Name)
	if !ok {
		return 0, Type{}, &CompileError{Kind: ErrUnknownContainer, Detail: ex.Name}
	}
	for _, fieldName := range cont.MemberNames() {
		fieldExpr, ok := ex.Fields[fieldName]
		if !ok {
			return 0, Type{}, &CompileError{Kind: ErrArgumentMismatch, Detail: fieldName}
		}
		fieldType, _ := cont.GetMemberType(fieldName)
		reg, gotType, err := c.compileExpr(fieldExpr)
		if err != nil {
			return 0, Type{}, err
		}
		if !fieldType.Equal(gotType) {
			return 0, Type{}, &CompileError{Kind: ErrTypeMismatch, Expected: fieldType, Got: gotType}
		}
		if fieldType.IsPrimitive() {
			sz, err := c.SizeOfType(fieldType)
			if err != nil {
				return 0, Type{}, err
			}
			c.growStack(sz)
			c.emitStoreByType(fieldType, reg, SP, int16(-int64(sz)))
		}
	}
	return 0, OtherType(cont.Name), nil
}

func (c *Compiler) compileMemberAccess(ex *MemberAccessExpr) (RegID, Type, error) {
	if call, ok := ex.RHS.(*CallExpr); ok {
		return c.compileMemberCall(ex.LHS, call)
	}
	addrReg, fieldType, err := c.compileLValueAddress(ex)
	if err != nil {
		return 0, Type{}, err
	}
	if fieldType.IsPrimitive() {
		dst := c.fn().Registers.GetTempRegister()
		c.emitLoadByTypeAR(fieldType, addrReg, 0, dst)
		return dst, fieldType, nil
	}
	sz, err := c.SizeOfType(fieldType)
	if err != nil {
		return 0, Type{}, err
	}
	c.growStack(sz)
	c.builder.PushInstr(MovNA(addrReg, 0, SP, int16(-int64(sz)), sz))
	return 0, fieldType, nil
}

func (c *Compiler) compileMemberCall(receiver Expression, call *CallExpr) (RegID, Type, error) {
	recvReg, recvType, err := c.compileLValueAddress(receiver)
	if err != nil {
		return 0, Type{}, err
	}
	contName, ok := recvType.GetContName()
	if !ok {
		contName = recvType.Name
	}
	cont, ok := c.findContainer(contName)
	if !ok {
		return 0, Type{}, &CompileError{Kind: ErrUnknownContainer, Detail: contName}
	}
	def, ok := cont.GetMemberFunction(call.Path)
	if !ok {
		return 0, Type{}, &CompileError{Kind: ErrNotAMemberFunction, Detail: call.Path}
	}
	if len(call.Args) != len(def.Arguments)-1 {
		return 0, Type{}, &CompileError{Kind: ErrArgumentMismatch, Detail: call.Path}
	}

	c.growStack(8)
	c.builder.PushInstr(MovARA(recvReg, SP, -8))

	for i, argExpr := range call.Args {
		want := def.Arguments[i+1].Type
		reg, got, err := c.compileExpr(argExpr)
		if err != nil {
			return 0, Type{}, err
		}
		if !want.Equal(got) {
			return 0, Type{}, &CompileError{Kind: ErrTypeMismatch, Expected: want, Got: got}
		}
		if want.IsPrimitive() {
			sz, err := c.SizeOfType(want)
			if err != nil {
				return 0, Type{}, err
			}
			c.growStack(sz)
			c.emitStoreByType(want, reg, SP, int16(-int64(sz)))
		}
	}

	c.builder.PushInstr(Call(def.UID))
	return c.postCallResult(def.RetType)
}

func (c *Compiler) compileCall(ex *CallExpr) (RegID, Type, error) {
	def, err := c.resolveFunction(ex.Path)
	if err != nil {
		return 0, Type{}, err
	}
	if len(ex.Args) != len(def.Arguments) {
		return 0, Type{}, &CompileError{Kind: ErrArgumentMismatch, Detail: ex.Path}
	}
	for i, argExpr := range ex.Args {
		want := def.Arguments[i].Type
		reg, got, err := c.compileExpr(argExpr)
		if err != nil {
			return 0, Type{}, err
		}
		if !want.Equal(got) {
			return 0, Type{}, &CompileError{Kind: ErrTypeMismatch, Expected: want, Got: got}
		}
		if want.IsPrimitive() {
			sz, err := c.SizeOfType(want)
			if err != nil {
				return 0, Type{}, err
			}
			c.growStack(sz)
			c.emitStoreByType(want, reg, SP, int16(-int64(sz)))
		}
	}
	c.builder.PushInstr(Call(def.UID))
	return c.postCallResult(def.RetType)
}

func (c *Compiler) postCallResult(retType Type) (RegID, Type, error) {
	if retType.Kind == KindVoid {
		return 0, VoidType(), nil
	}
	if retType.IsPrimitive() {
		c.fn().Registers.ForceTempRegister(R0)
		return R0, retType, nil
	}
	sz, err := c.SizeOfType(retType)
	if err != nil {
		return 0, Type{}, err
	}
	// The callee's own prologue has already ensured ret_size bytes sit on
	// top of the stack; we only need to account for it.
	c.fn().StackSize += int64(sz)
	return 0, retType, nil
}
