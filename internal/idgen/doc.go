// Package idgen wraps the UUID generator so it can be stubbed in tests.
// Callers treat the returned identifiers as opaque strings; the framer in
// particular relies only on them being unpredictable per invocation.
package idgen
