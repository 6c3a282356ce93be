// Package dogfood runs the membrane over its own API.
//
// The engine is modelled as a MembraneInternal constructor living in the
// "internal" field. Its only public face is the Membrane constructor, the
// representation of MembraneInternal in the "public" field, whose view is
// restricted by the embedded policy: instances show modifyRules and logger,
// the constructor shows nothing beyond prototype, length and name, and
// ProxyMapping bookkeeping objects are refused outright.
package dogfood
