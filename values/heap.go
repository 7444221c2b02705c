package values

import "strings"

// String is the heap-backed string object. The VM's STRING/STRCAT
// opcodes delegate concatenation to this type per spec.md §4.7.
type String struct {
	S string
}

func NewString(s string) *String { return &String{S: s} }

func (*String) ObjectKind() ObjectKind { return ObjString }
func (s *String) Inspect() string      { return s.S }

// Array backs ARRAY/ARYCAT/ARYPUSH/AREF/ASET/APOST.
type Array struct {
	Elems []Value
}

func NewArray(elems ...Value) *Array {
	a := &Array{Elems: make([]Value, len(elems))}
	copy(a.Elems, elems)
	return a
}

func (*Array) ObjectKind() ObjectKind { return ObjArray }

func (a *Array) Inspect() string {
	parts := make([]string, len(a.Elems))
	for i, v := range a.Elems {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (a *Array) Push(v Value) { a.Elems = append(a.Elems, v) }

func (a *Array) Get(i int) Value {
	if i < 0 || i >= len(a.Elems) {
		return Nil()
	}
	return a.Elems[i]
}

func (a *Array) Set(i int, v Value) {
	for i >= len(a.Elems) {
		a.Elems = append(a.Elems, Nil())
	}
	a.Elems[i] = v
}

// hashEntry preserves insertion order, matching the observable iteration
// order of a small hash-map-backed associative structure.
type hashEntry struct {
	key Value
	val Value
}

// Hash backs the HASH opcode; library equality (Equal) determines key
// identity, per spec.md §8's "HASH built from pairs, queried by key,
// returns the corresponding value (by library equality)."
type Hash struct {
	entries []hashEntry
}

func NewHash() *Hash { return &Hash{} }

func (*Hash) ObjectKind() ObjectKind { return ObjHash }

func (h *Hash) Inspect() string {
	parts := make([]string, len(h.entries))
	for i, e := range h.entries {
		parts[i] = e.key.String() + " => " + e.val.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (h *Hash) Set(key, val Value) {
	for i := range h.entries {
		if Equal(h.entries[i].key, key) {
			h.entries[i].val = val
			return
		}
	}
	h.entries = append(h.entries, hashEntry{key, val})
}

func (h *Hash) Get(key Value) (Value, bool) {
	for _, e := range h.entries {
		if Equal(e.key, key) {
			return e.val, true
		}
	}
	return Nil(), false
}

func (h *Hash) Len() int { return len(h.entries) }

// Range backs the RANGE opcode.
type Range struct {
	Low, High Value
	Exclusive bool
}

func NewRange(low, high Value, exclusive bool) *Range {
	return &Range{Low: low, High: high, Exclusive: exclusive}
}

func (*Range) ObjectKind() ObjectKind { return ObjRange }

func (r *Range) Inspect() string {
	op := ".."
	if r.Exclusive {
		op = "..."
	}
	return r.Low.String() + op + r.High.String()
}

// Exception is the heap object carried in the current-exception slot and
// raised by RAISE / OP_ERR. ClassName names the raising class (so the
// rescue-matching contract in §6.5 can be a simple string compare in the
// default class service); Message is the user-visible text.
type Exception struct {
	ClassName string
	Message   string
}

func NewException(className, message string) *Exception {
	return &Exception{ClassName: className, Message: message}
}

func (*Exception) ObjectKind() ObjectKind { return ObjException }
func (e *Exception) Inspect() string      { return e.ClassName + ": " + e.Message }
func (e *Exception) Error() string        { return e.Inspect() }
