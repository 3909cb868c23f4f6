package stratum

// ValueKind discriminates the tagged union stored for every key.
type ValueKind uint8

const (
	ValuePut ValueKind = iota
	ValueDelete
)

// Value is a Put(bytes) or a Delete tombstone.
type Value struct {
	Kind ValueKind
	Data []byte
}

// NewPutValue wraps b as a Put value.
func NewPutValue(b []byte) Value { return Value{Kind: ValuePut, Data: b} }

// NewDeleteValue returns the tombstone value.
func NewDeleteValue() Value { return Value{Kind: ValueDelete} }

// IsDelete reports whether v is a tombstone.
func (v Value) IsDelete() bool { return v.Kind == ValueDelete }
