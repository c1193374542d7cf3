package oxs

import "math"

// RegID names a slot in the VM's register file: R0-R15 general purpose
// (R0 reserved for primitive return values by convention), SP the stack
// pointer, IP the instruction pointer.
type RegID byte

const (
	R0 RegID = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	SP RegID = 16
	IP RegID = 17
)

func (r RegID) String() string {
	switch r {
	case SP:
		return "sp"
	case IP:
		return "ip"
	default:
		names := [...]string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
			"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
		if int(r) < len(names) {
			return names[r]
		}
		return "r?"
	}
}

// Register is a tagless 64-bit slot reinterpreted per access, per the
// "union-typed register file" design note: the opcode dictates how it's
// read, so no runtime type tag is stored alongside it.
type Register struct {
	raw uint64
}

func (r *Register) SetInt(v int64)     { r.raw = uint64(v) }
func (r Register) Int() int64          { return int64(r.raw) }
func (r *Register) SetUint(v uint64)   { r.raw = v }
func (r Register) Uint() uint64        { return r.raw }
func (r *Register) SetFloat(v float32) { r.raw = uint64(math.Float32bits(v)) }
func (r Register) Float() float32      { return math.Float32frombits(uint32(r.raw)) }

func (r *Register) SetBool(v bool) {
	if v {
		r.raw = 1
	} else {
		r.raw = 0
	}
}
func (r Register) Bool() bool { return r.raw != 0 }

func (r *Register) SetAddress(a Address) { r.raw = a.Raw() }
func (r Register) Address() Address      { return AddressFromRaw(r.raw) }
