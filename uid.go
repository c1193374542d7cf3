package oxs

import (
	"crypto/rand"
	"encoding/binary"
)

// UIDGenerator hands out 64-bit identifiers unique within a compilation
// unit. Named functions get a stable per-name UID (memoized, not a content
// hash — the same name always maps to the same UID for the lifetime of one
// generator, which is the only stability the compiler ever relies on);
// anonymous tags get a fresh random one each call.
type UIDGenerator struct {
	seen      map[uint64]struct{}
	functions map[string]uint64
}

func NewUIDGenerator() *UIDGenerator {
	return &UIDGenerator{
		seen:      make(map[uint64]struct{}),
		functions: make(map[string]uint64),
	}
}

// Generate returns a fresh random UID, never zero, never previously issued.
func (g *UIDGenerator) Generate() uint64 {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			panic(err)
		}
		uid := binary.LittleEndian.Uint64(buf[:])
		if uid == 0 {
			continue
		}
		if _, dup := g.seen[uid]; dup {
			continue
		}
		g.seen[uid] = struct{}{}
		return uid
	}
}

// GetFunctionUID returns the memoized UID for name, generating one on first
// use.
func (g *UIDGenerator) GetFunctionUID(name string) uint64 {
	if uid, ok := g.functions[name]; ok {
		return uid
	}
	uid := g.Generate()
	g.functions[name] = uid
	return uid
}
