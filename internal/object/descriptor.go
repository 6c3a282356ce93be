package object

// Descriptor describes one property slot. It is an accessor when Getter or
// Setter is set, a data descriptor otherwise.
type Descriptor struct {
	Value        Value
	Getter       Callable
	Setter       Callable
	Writable     bool
	Enumerable   bool
	Configurable bool
}

// DataDescriptor creates a data property descriptor
func DataDescriptor(value Value, writable, enumerable, configurable bool) Descriptor {
	return Descriptor{
		Value:        value,
		Writable:     writable,
		Enumerable:   enumerable,
		Configurable: configurable,
	}
}

// AccessorDescriptor creates an accessor property descriptor
func AccessorDescriptor(getter, setter Callable, enumerable, configurable bool) Descriptor {
	return Descriptor{
		Getter:       getter,
		Setter:       setter,
		Enumerable:   enumerable,
		Configurable: configurable,
	}
}

// IsAccessor reports whether the descriptor is an accessor
func (d Descriptor) IsAccessor() bool {
	return d.Getter != nil || d.Setter != nil
}

// compatible reports whether next may replace a non-configurable current slot
func compatible(current, next Descriptor) bool {
	if next.Configurable || next.Enumerable != current.Enumerable {
		return false
	}
	if current.IsAccessor() != next.IsAccessor() {
		return false
	}
	if current.IsAccessor() {
		return SameValue(current.Getter, next.Getter) && SameValue(current.Setter, next.Setter)
	}
	if !current.Writable {
		return !next.Writable && SameValue(current.Value, next.Value)
	}
	return true
}
