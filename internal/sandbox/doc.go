/*
Package sandbox runs untrusted JavaScript inside a membrane field.

# Overview

Each Runtime is a goja VM whose global scope only ever holds values of the
sandbox field. Host values are exposed through the membrane, so scripts see
proxies: rules, listeners and revocation apply to everything they touch.
Values flowing back, completion values and arguments to host functions,
are converted into the host field the same way.

  - Execution timeout and context cancellation interrupt the VM
  - require, process, module and exports are removed
  - Console output is captured and stripped of markup
  - Host calls can be rate limited

# Bridge

Sandbox-field objects appear to scripts as dynamic objects; callables become
script functions that can be called or constructed. Objects created by
scripts are adapted to the object model and become originals of the sandbox
field. Both directions keep identity: the same object always maps to the
same counterpart until the runtime is reset. Errors raised on the host side
surface as script exceptions, and script exceptions surface as thrown values.

# Usage Example

	rt, err := sandbox.New(m, sandbox.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Expose("config", cfg); err != nil {
		return err
	}
	result, err := rt.Execute(ctx, "config.name")

A Pool keeps several runtimes bound to the same fields and re-exposes its
globals on every runtime it hands out.
*/
package sandbox
