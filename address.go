package oxs

// Segment tags the top 3 bits of a 64-bit address, selecting which memory
// region an instruction operates on.
type Segment byte

const (
	SegmentProgram Segment = iota
	SegmentStack
	SegmentHeap
	SegmentSwap
	SegmentForeign
)

func (s Segment) String() string {
	switch s {
	case SegmentProgram:
		return "program"
	case SegmentStack:
		return "stack"
	case SegmentHeap:
		return "heap"
	case SegmentSwap:
		return "swap"
	case SegmentForeign:
		return "foreign"
	default:
		return "unknown"
	}
}

const addressRealBits = 61
const addressRealMask = (uint64(1) << addressRealBits) - 1

// Address is a tagged 64-bit value: a 3-bit segment in the top bits and a
// signed 61-bit real offset in the low bits. Arithmetic (WithOffset) only
// ever touches the real offset, never the tag.
type Address struct {
	real    int64
	segment Segment
}

func NewAddress(real int64, seg Segment) Address {
	return Address{real: real, segment: seg}
}

// WithOffset returns a new Address with the given signed offset applied to
// the real address only.
func (a Address) WithOffset(offset int16) Address {
	a.real += int64(offset)
	return a
}

func (a Address) Segment() Segment { return a.segment }
func (a Address) Real() int64      { return a.real }

// Raw packs the address into the wire/register form: segment in bits
// 61-63, the real offset's two's-complement form truncated to the low 61
// bits.
func (a Address) Raw() uint64 {
	return uint64(a.segment)<<addressRealBits | (uint64(a.real) & addressRealMask)
}

// AddressFromRaw decodes a packed 64-bit value back into an Address,
// sign-extending the 61-bit real field.
func AddressFromRaw(raw uint64) Address {
	seg := Segment(raw >> addressRealBits)
	real := int64(raw<<3) >> 3
	return Address{real: real, segment: seg}
}
