// Package policy loads exposure policies and compiles them into proxy
// listeners.
//
// A policy names, per field, which targets may be exposed and how much of
// them is visible. Documents are YAML, JSON or TOML, optionally gzip or zstd
// compressed:
//
//	version: 1
//	fields:
//	  sandbox:
//	    freeze: true
//	    rules:
//	      - name: config
//	        class: Config
//	        action: whitelist
//	        allow: [name, version]
//	      - name: secrets
//	        class: "Secret*"
//	        action: deny
//
// Rules are tried in order; the first match wins unless it sets continue.
package policy
