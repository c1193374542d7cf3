package oxs

// Builder owns the instruction stream being assembled for one compilation
// unit: an ordered instruction list (for size accounting and final
// flattening), a label->instruction index map, and a tag->[instruction index] map used
// to backpatch jump targets once the target position is known.
type Builder struct {
	Instructions []Instruction
	JmpIndices   []int // indices into Instructions holding a jump operand
	Labels       map[string]int
	Tags         map[uint64][]int
}

func NewBuilder() *Builder {
	return &Builder{
		Labels: make(map[string]int),
		Tags:   make(map[uint64][]int),
	}
}

// PushLabel records the current instruction index under name.
func (b *Builder) PushLabel(name string) {
	b.Labels[name] = len(b.Instructions)
}

// Tag marks the instruction at the given index as a backpatch site for tag,
// deduplicating repeated registrations of the same site.
func (b *Builder) Tag(tag uint64, instrIndex int) {
	for _, idx := range b.Tags[tag] {
		if idx == instrIndex {
			return
		}
	}
	b.Tags[tag] = append(b.Tags[tag], instrIndex)
}

func (b *Builder) GetTag(tag uint64) ([]int, bool) {
	idxs, ok := b.Tags[tag]
	return idxs, ok
}

func (b *Builder) GetInstr(index int) *Instruction {
	if index < 0 || index >= len(b.Instructions) {
		return nil
	}
	return &b.Instructions[index]
}

// PushInstr appends instr, returning its index, and records jump sites.
func (b *Builder) PushInstr(instr Instruction) int {
	idx := len(b.Instructions)
	b.Instructions = append(b.Instructions, instr)
	if instr.Op.IsJump() {
		b.JmpIndices = append(b.JmpIndices, idx)
	}
	return idx
}

func (b *Builder) AppendInstrs(instrs []Instruction) {
	for _, i := range instrs {
		b.PushInstr(i)
	}
}

// GetCurrentOffset sums the encoded size of every instruction emitted so
// far — the byte offset (relative to the start of the instruction stream,
// before the data_len shift) the next instruction would land at.
func (b *Builder) GetCurrentOffset() int {
	var off int
	for _, instr := range b.Instructions {
		off += instr.Size()
	}
	return off
}

// GetLabelOffset returns the byte offset of a previously pushed label.
func (b *Builder) GetLabelOffset(name string) (int, bool) {
	idx, ok := b.Labels[name]
	if !ok {
		return 0, false
	}
	var off int
	for _, instr := range b.Instructions[:idx] {
		off += instr.Size()
	}
	return off, true
}

// ResolveTag backpatches every instruction registered under tag with the
// given absolute target.
func (b *Builder) ResolveTag(tag uint64, target uint64) {
	for _, idx := range b.Tags[tag] {
		b.Instructions[idx].PatchJumpTarget(target)
	}
	delete(b.Tags, tag)
}

// Build concatenates the data segment and the instruction stream into the
// final code image.
func (b *Builder) Build(data *Data) []byte {
	out := make([]byte, 0, data.Len()+b.GetCurrentOffset())
	out = append(out, data.Bytes()...)
	for _, instr := range b.Instructions {
		out = append(out, instr.Encode()...)
	}
	return out
}

// ShiftJumpTargets adds shift to every jump instruction's absolute target,
// used once at final program assembly after the data segment length is
// known.
func (b *Builder) ShiftJumpTargets(shift uint64) {
	for _, idx := range b.JmpIndices {
		instr := &b.Instructions[idx]
		off := instr.jumpTargetOffset()
		if off < 0 {
			continue
		}
		cur := decodeU64(instr.Operands[off : off+8])
		instr.PatchJumpTarget(cur + shift)
	}
}

func decodeU64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
