// Package tracing wraps OpenTelemetry so the rest of the code base can emit
// spans through a couple of helper functions (StartSpan, EndSpan) without
// importing the upstream API directly. Instrumentation lives in its own
// package so applications that do not need tracing can leave it
// uninitialised; spans are then no-ops.
package tracing
