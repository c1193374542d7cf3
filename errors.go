package oxs

import "fmt"

// CompileErrorKind enumerates the compiler's error taxonomy.
type CompileErrorKind byte

const (
	ErrUnknown CompileErrorKind = iota
	ErrUnimplemented
	ErrDuplicateFunction
	ErrDuplicateModule
	ErrDuplicateContainer
	ErrDuplicateVariable
	ErrDuplicateMember
	ErrDuplicateImport
	ErrUnknownFunction
	ErrUnknownContainer
	ErrUnknownVariable
	ErrUnknownModule
	ErrUnknownMember
	ErrUnknownType
	ErrUnsupportedExpression
	ErrInvalidModulePath
	ErrAlreadyContainsContainer
	ErrAlreadyContainsModule
	ErrNotAMemberFunction
	ErrArgumentMismatch
	ErrMemberAccessOnNonContainer
	ErrTypeMismatch
	ErrCannotDerefNonPointer
	ErrCannotDerefSlice
	ErrRegisterMapping
	ErrBreakOutsideLoop
	ErrContinueOutsideLoop
)

func (k CompileErrorKind) String() string {
	names := [...]string{
		"Unknown", "Unimplemented", "DuplicateFunction", "DuplicateModule",
		"DuplicateContainer", "DuplicateVariable", "DuplicateMember", "DuplicateImport",
		"UnknownFunction", "UnknownContainer", "UnknownVariable", "UnknownModule",
		"UnknownMember", "UnknownType", "UnsupportedExpression", "InvalidModulePath",
		"AlreadyContainsContainer", "AlreadyContainsModule", "NotAMemberFunction",
		"ArgumentMismatch", "MemberAccessOnNonContainer", "TypeMismatch",
		"CannotDerefNonPointer", "CannotDerefSlice", "RegisterMapping",
		"BreakOutsideLoop", "ContinueOutsideLoop",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// CompileError is a typed compiler error; several variants carry payloads
// (expected/got types, offending names) that a bare sentinel can't hold.
type CompileError struct {
	Kind     CompileErrorKind
	Detail   string
	Expected Type
	Got      Type
}

func (e *CompileError) Error() string {
	switch e.Kind {
	case ErrTypeMismatch:
		return fmt.Sprintf("compile error: type mismatch: expected %s, got %s", e.Expected, e.Got)
	case ErrDuplicateFunction, ErrDuplicateModule, ErrDuplicateContainer,
		ErrDuplicateVariable, ErrDuplicateMember, ErrDuplicateImport,
		ErrUnknownFunction, ErrUnknownContainer, ErrUnknownVariable,
		ErrUnknownModule, ErrUnknownMember, ErrUnknownType, ErrInvalidModulePath:
		return fmt.Sprintf("compile error: %s: %s", e.Kind, e.Detail)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("compile error: %s (%s)", e.Kind, e.Detail)
		}
		return fmt.Sprintf("compile error: %s", e.Kind)
	}
}

// ParseError marks that source parsing failed upstream of this system
// (the lexer/parser is out of scope; we only need to carry the fact along).
type ParseError struct {
	Detail string
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse error: %s", e.Detail) }

// CoreError is the VM runtime error taxonomy, implemented as sentinels
// where no payload is needed and typed values where one is (InvalidOpcode,
// UnimplementedOpcode, Halted).
var (
	ErrNoProgram          = fmt.Errorf("core error: no program loaded")
	ErrStackOverflow      = fmt.Errorf("core error: stack overflow")
	ErrOperatorDeserialize = fmt.Errorf("core error: operator deserialize failed")
	ErrOperatorSerialize  = fmt.Errorf("core error: operator serialize failed")
	ErrEmptyCallStack     = fmt.Errorf("core error: empty call stack")
	ErrUnknownFunctionUID = fmt.Errorf("core error: unknown function uid")
	ErrInvalidStackPointer = fmt.Errorf("core error: invalid stack pointer")
	ErrInvalidRegister    = fmt.Errorf("core error: invalid register")
	ErrNoReturnValue      = fmt.Errorf("core error: no return value")
)

// InvalidOpcodeError carries the offending byte (CoreError::InvalidOpcode(u8)).
type InvalidOpcodeError struct{ Byte byte }

func (e *InvalidOpcodeError) Error() string {
	return fmt.Sprintf("core error: invalid opcode 0x%02x", e.Byte)
}

// UnimplementedOpcodeError carries the decoded opcode (CoreError::UnimplementedOpcode).
type UnimplementedOpcodeError struct{ Op Opcode }

func (e *UnimplementedOpcodeError) Error() string {
	return fmt.Sprintf("core error: unimplemented opcode %s", e.Op)
}

// HaltedError carries the halt code (CoreError::Halted(u8)); code 1 is the
// compiler's synthetic "fell off the end of a function" safety halt and is
// surfaced as ErrNoReturnValue instead, per spec.
type HaltedError struct{ Code byte }

func (e *HaltedError) Error() string {
	return fmt.Sprintf("core error: halted with code %d", e.Code)
}
