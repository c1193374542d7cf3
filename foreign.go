package oxs

// ForeignClosure is a host-implemented function body invoked by CALL when
// the target UID is registered as foreign.
type ForeignClosure func(a *Adapter) error

// ForeignFunction is the runtime descriptor for a host function reachable
// from scripts: its script-visible signature plus the per-argument stack
// offsets/sizes computed at registration (right-to-left, §4.3.1) and the
// closure that runs when CALL resolves to it.
type ForeignFunction struct {
	Name       string
	ArgTypes   []Type
	ArgOffsets []int64
	ArgSizes   []uint32
	RetType    Type
	Closure    ForeignClosure
}

func NewForeignFunction(name string, argTypes []Type, retType Type, closure ForeignClosure) *ForeignFunction {
	return &ForeignFunction{Name: name, ArgTypes: argTypes, RetType: retType, Closure: closure}
}

// SetArgLayout computes right-to-left stack offsets for each argument: the
// last argument sits nearest SP, since the caller pushed left-to-right.
func (f *ForeignFunction) SetArgLayout(sizes []uint32) {
	f.ArgSizes = sizes
	offsets := make([]int64, len(sizes))
	var pos int64
	for i := len(sizes) - 1; i >= 0; i-- {
		pos -= int64(sizes[i])
		offsets[i] = pos
	}
	f.ArgOffsets = offsets
}

func (f *ForeignFunction) GetArgOffset(index int) int64 { return f.ArgOffsets[index] }

// Adapter is handed to a ForeignClosure, giving it typed access to the
// caller's stack frame, the register file (for primitive returns), and the
// VM's foreign-pointer table.
type Adapter struct {
	vm *VM
	fn *ForeignFunction
}

func NewAdapter(vm *VM, fn *ForeignFunction) *Adapter { return &Adapter{vm: vm, fn: fn} }

// GetArg reads the i'th argument off the caller's frame. String is special:
// the two-word (length, data_addr) descriptor is read first, then the
// pointed-to bytes are decoded as UTF-8.
func GetArg[T any](a *Adapter, index int) (T, error) {
	var zero T
	off := a.fn.GetArgOffset(index)
	addr := a.vm.Reg(SP).Address().WithOffset(int16(off))
	switch any(zero).(type) {
	case int64:
		v, err := a.vm.memGetInt(addr)
		if err != nil {
			return zero, err
		}
		return any(v).(T), nil
	case uint64:
		v, err := a.vm.memGetUint(addr)
		if err != nil {
			return zero, err
		}
		return any(v).(T), nil
	case float32:
		v, err := a.vm.memGetFloat(addr)
		if err != nil {
			return zero, err
		}
		return any(v).(T), nil
	case bool:
		v, err := a.vm.memGetBool(addr)
		if err != nil {
			return zero, err
		}
		return any(v).(T), nil
	case string:
		v, err := a.vm.memGetString(addr)
		if err != nil {
			return zero, err
		}
		return any(v).(T), nil
	default:
		return zero, &CompileError{Kind: ErrUnsupportedExpression, Detail: "unsupported foreign arg type"}
	}
}

// ReturnValue writes a primitive return into R0. Composite returns are
// written directly to the stack by the closure instead (§4.5).
func ReturnValue[T any](a *Adapter, v T) {
	r := a.vm.Reg(R0)
	switch vv := any(v).(type) {
	case int64:
		r.SetInt(vv)
	case uint64:
		r.SetUint(vv)
	case float32:
		r.SetFloat(vv)
	case bool:
		r.SetBool(vv)
	}
}

// InsertForeignPtr stores an opaque host object and returns a Foreign-tagged
// handle for it.
func InsertForeignPtr[T any](a *Adapter, v T) uint64 {
	return a.vm.insertForeignPtr(v)
}

// GetForeignPtr retrieves the object behind handle without removing it.
// The caller is trusted to use the same T it inserted with.
func GetForeignPtr[T any](a *Adapter, handle uint64) (T, bool) {
	var zero T
	item, ok := a.vm.getForeignPtr(handle)
	if !ok {
		return zero, false
	}
	v, ok := item.(T)
	return v, ok
}

// RemoveForeignPtr deletes and returns the object behind handle; the handle
// no longer resolves afterward.
func RemoveForeignPtr[T any](a *Adapter, handle uint64) (T, bool) {
	var zero T
	item, ok := a.vm.removeForeignPtr(handle)
	if !ok {
		return zero, false
	}
	v, ok := item.(T)
	return v, ok
}
