/*
Package object defines the dynamic object model the membrane operates on.

# Overview

Go has no transparent proxies, so every value that can cross a membrane
boundary is either a primitive or an Object. Object is a small, closed
protocol of operations (get, set, has, delete, define, enumerate, prototype
and extensibility access); Callable and Constructor add invocation.

# Values

  - Primitives: nil (undefined), Null, bool, string, Go numeric types, *Symbol
  - Objects: anything implementing Object (Ordinary, Function, membrane proxies)

Any other Go value is rejected at the boundary.

# Identity

Objects are compared by reference. Each Object exposes an *Identity cell that
is allocated once per object and never shared; the membrane keys its weak
tables on it.

# Errors

An operation that "throws" returns a *Thrown error carrying the thrown value.
Any other error is a host failure and is never treated as a thrown value.
*/
package object
