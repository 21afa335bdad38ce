// Package policy provides an optional per-command approval layer attached
// to a request via context. It is deliberately decoupled from the engine so
// using it is entirely opt-in: coordinators running without a Policy in
// their context keep the default "auto" behaviour.
package policy
