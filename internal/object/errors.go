package object

import "fmt"

// Thrown is an exception raised by an object operation. Its Value belongs to
// the field of whoever observes the error.
type Thrown struct {
	Value Value
}

// Throw wraps v as an exception
func Throw(v Value) *Thrown {
	return &Thrown{Value: v}
}

// Error returns the exception message
func (t *Thrown) Error() string {
	o, ok := t.Value.(Object)
	if !ok {
		return fmt.Sprintf("uncaught %v", t.Value)
	}

	msg, err := o.Get(StringKey("message"), o)
	if text, isString := msg.(string); err == nil && isString {
		name, _ := o.Get(StringKey("name"), o)
		if kind, isString := name.(string); isString {
			return kind + ": " + text
		}
		return text
	}
	return fmt.Sprintf("uncaught %s (%s)", TypeOf(o), ClassOf(o))
}

// NewError creates an error object of the given kind
func NewError(kind, message string) *Ordinary {
	e := NewOrdinaryWithClass(nil, kind)
	e.PutHidden("name", kind)
	e.PutHidden("message", message)
	return e
}

// TypeError creates a thrown TypeError
func TypeError(format string, args ...any) *Thrown {
	return Throw(NewError("TypeError", fmt.Sprintf(format, args...)))
}
