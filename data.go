package oxs

// Data is the compiler's static data segment: raw string-literal bytes,
// deduplicated by content, addressed as byte offsets from the start of the
// eventual code image (before the data_len shift applied during final
// program assembly).
type Data struct {
	bytes   []byte
	strings map[string]uint64
}

func NewData() *Data {
	return &Data{strings: make(map[string]uint64)}
}

// GetStringSlice returns the (length, addr) descriptor for s, appending it
// to the data segment on first use and reusing the existing address for
// repeated literals with identical content.
func (d *Data) GetStringSlice(s string) (length uint32, addr uint64) {
	if addr, ok := d.strings[s]; ok {
		return uint32(len(s)), addr
	}
	addr = uint64(len(d.bytes))
	d.bytes = append(d.bytes, s...)
	d.strings[s] = addr
	return uint32(len(s)), addr
}

func (d *Data) Bytes() []byte { return d.bytes }
func (d *Data) Len() int      { return len(d.bytes) }
