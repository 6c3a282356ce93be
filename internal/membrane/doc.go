/*
Package membrane isolates object graphs from each other.

Every object belongs to exactly one field, the graph that created it. When a
value crosses from one field to another it is converted: primitives pass
through, objects are replaced by a proxy owned by the destination field, and
proxies that travel back home are unwrapped to their original. Each original
has at most one representation per field, so identity is preserved on both
sides.

Proxies forward through a per-field GraphHandler. Rules set with ModifyRules
customize one field's view of one object (local writes, local deletes, key
filters) and listeners registered on a handler see every proxy before it is
handed out. Revocation works per original, per field and per membrane.

	m := membrane.New(membrane.WithLogger(logger))
	wet, _ := m.GetHandlerByField("wet", true)
	dry, _ := m.GetHandlerByField("dry", true)
	v, err := m.ConvertArgumentToProxy(wet, dry, obj)
*/
package membrane
