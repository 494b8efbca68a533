package ir

// StringPool deduplicates string literal contents against byte offsets
// already written into a Program's InitData, so that two occurrences of
// the same literal share one copy. Adapted from the teacher's string
// interning table (symbols.go), retargeted from "string -> small integer
// id" to "string -> byte offset into InitData".
type StringPool struct {
	offsets map[string]int
	data    []byte
}

// Intern returns the byte offset at which s's bytes live in the pool's
// backing data, appending a new copy only if s hasn't been interned yet.
// No terminator is appended; callers carry the length separately.
func (p *StringPool) Intern(s string) int {
	if p.offsets == nil {
		p.offsets = make(map[string]int)
	}
	if off, ok := p.offsets[s]; ok {
		return off
	}
	off := len(p.data)
	p.data = append(p.data, s...)
	p.offsets[s] = off
	return off
}

// Data returns the pool's accumulated bytes, suitable for appending to a
// Program's InitData.
func (p *StringPool) Data() []byte { return p.data }

// Len returns the number of bytes interned so far.
func (p *StringPool) Len() int { return len(p.data) }
