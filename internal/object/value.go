package object

import "fmt"

// Value is any value in the object model
type Value = any

type nullValue struct{}

func (nullValue) String() string { return "null" }

// Null is the null primitive. Undefined is represented by a nil Value.
var Null Value = nullValue{}

// Symbol is a unique, non-string property key
type Symbol struct {
	description string
}

// NewSymbol creates a new unique symbol
func NewSymbol(description string) *Symbol {
	return &Symbol{description: description}
}

// Description returns the symbol's description
func (s *Symbol) Description() string {
	return s.description
}

// String returns the string representation of the symbol
func (s *Symbol) String() string {
	return "Symbol(" + s.description + ")"
}

// Key names a property. Exactly one of name or sym is meaningful.
type Key struct {
	name string
	sym  *Symbol
}

// StringKey creates a string-named key
func StringKey(name string) Key {
	return Key{name: name}
}

// SymbolKey creates a symbol key
func SymbolKey(sym *Symbol) Key {
	return Key{sym: sym}
}

// IsSymbol reports whether the key is a symbol
func (k Key) IsSymbol() bool {
	return k.sym != nil
}

// Name returns the string name of a string key
func (k Key) Name() string {
	return k.name
}

// Symbol returns the symbol of a symbol key
func (k Key) Symbol() *Symbol {
	return k.sym
}

// String returns a printable form of the key
func (k Key) String() string {
	if k.sym != nil {
		return k.sym.String()
	}
	return k.name
}

// Keys converts names to string keys
func Keys(names ...string) []Key {
	keys := make([]Key, len(names))
	for i, name := range names {
		keys[i] = StringKey(name)
	}
	return keys
}

// IsPrimitive reports whether v may cross a boundary unwrapped
func IsPrimitive(v Value) bool {
	switch v.(type) {
	case nil, nullValue, bool, string, *Symbol,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// IsNull reports whether v is the null primitive
func IsNull(v Value) bool {
	_, ok := v.(nullValue)
	return ok
}

// SameValue compares two values: objects by identity, primitives by value
func SameValue(a, b Value) bool {
	ao, aok := a.(Object)
	bo, bok := b.(Object)
	if aok || bok {
		return aok && bok && ao.Identity() == bo.Identity()
	}
	if !IsPrimitive(a) || !IsPrimitive(b) {
		return false
	}
	return a == b
}

// TypeOf returns a short type name for diagnostics
func TypeOf(v Value) string {
	switch v.(type) {
	case nil:
		return "undefined"
	case nullValue:
		return "null"
	case Callable:
		return "function"
	case Object:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
