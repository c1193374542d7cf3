package oxs

import "fmt"

// Kind tags the variant of a Type.
type Kind byte

const (
	KindVoid Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindAuto
	KindReference
	KindArray
	KindAutoArray
	KindOther
	KindTuple
)

// Type is the tagged union of surface types used by the compiler and VM.
// Reference/Array/AutoArray carry an element type; Array also carries a
// fixed length; Other carries a container name as written (e.g. "Counter"),
// which the compiler looks up in the current module and then in root; the
// name is not canonicalized to a root::... path. Tuple carries its member
// types (reserved, per spec.md §3.1).
type Type struct {
	Kind  Kind
	Elem  *Type
	Len   uint32
	Name  string
	Tuple []Type
}

func VoidType() Type   { return Type{Kind: KindVoid} }
func IntType() Type    { return Type{Kind: KindInt} }
func FloatType() Type  { return Type{Kind: KindFloat} }
func BoolType() Type   { return Type{Kind: KindBool} }
func StringType() Type { return Type{Kind: KindString} }
func AutoType() Type   { return Type{Kind: KindAuto} }

func ReferenceType(elem Type) Type { return Type{Kind: KindReference, Elem: &elem} }
func ArrayType(elem Type, n uint32) Type {
	return Type{Kind: KindArray, Elem: &elem, Len: n}
}
func AutoArrayType(elem Type) Type { return Type{Kind: KindAutoArray, Elem: &elem} }
func OtherType(canonicalName string) Type { return Type{Kind: KindOther, Name: canonicalName} }
func TupleType(members []Type) Type { return Type{Kind: KindTuple, Tuple: members} }

// IsPrimitive reports whether a value of this type fits in a single
// register: Int, Float, Bool, and any Reference except one to a slice.
func (t Type) IsPrimitive() bool {
	switch t.Kind {
	case KindInt, KindFloat, KindBool:
		return true
	case KindReference:
		return t.Elem == nil || t.Elem.Kind != KindAutoArray
	default:
		return false
	}
}

// GetRefType unwraps a Reference(T), reporting ok=false for anything else.
func (t Type) GetRefType() (Type, bool) {
	if t.Kind == KindReference {
		return *t.Elem, true
	}
	return Type{}, false
}

// IsContReference reports whether this is a Reference to a container (Other).
func (t Type) IsContReference() bool {
	elem, ok := t.GetRefType()
	return ok && elem.Kind == KindOther
}

// GetContName returns the container name for Other or
// Reference(Other), reporting ok=false otherwise.
func (t Type) GetContName() (string, bool) {
	if t.Kind == KindOther {
		return t.Name, true
	}
	if elem, ok := t.GetRefType(); ok && elem.Kind == KindOther {
		return elem.Name, true
	}
	return "", false
}

// IsMemberAccess reports whether this type could be the receiver of a
// MemberAccess expression (a container or a reference to one).
func (t Type) IsMemberAccess() bool {
	_, ok := t.GetContName()
	return ok
}

// Equal performs a structural comparison, canonicalizing Other by name.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindOther:
		return t.Name == o.Name
	case KindArray:
		return t.Len == o.Len && t.Elem.Equal(*o.Elem)
	case KindReference, KindAutoArray:
		return t.Elem.Equal(*o.Elem)
	case KindTuple:
		if len(t.Tuple) != len(o.Tuple) {
			return false
		}
		for i := range t.Tuple {
			if !t.Tuple[i].Equal(o.Tuple[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (t Type) String() string {
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindAuto:
		return "auto"
	case KindReference:
		return "&" + t.Elem.String()
	case KindArray:
		return fmt.Sprintf("[%s; %d]", t.Elem, t.Len)
	case KindAutoArray:
		return "[" + t.Elem.String() + "]"
	case KindOther:
		return t.Name
	case KindTuple:
		return "tuple"
	default:
		return "?"
	}
}

// StaticSizeOf computes the byte size of a type that doesn't require
// resolving a container declaration (everything but Other). Array(T,N)
// recurses on T. Callers needing Other's size must go through the
// Compiler's container table (see Compiler.SizeOfType).
func StaticSizeOf(t Type) (uint32, bool) {
	switch t.Kind {
	case KindVoid:
		return 0, true
	case KindBool:
		return 1, true
	case KindFloat:
		return 4, true
	case KindInt:
		return 8, true
	case KindString:
		return 16, true
	case KindAutoArray:
		return 16, true
	case KindReference:
		if t.Elem != nil && t.Elem.Kind == KindAutoArray {
			return 16, true
		}
		return 8, true
	case KindArray:
		elemSize, ok := StaticSizeOf(*t.Elem)
		if !ok {
			return 0, false
		}
		return elemSize * t.Len, true
	default:
		return 0, false
	}
}
