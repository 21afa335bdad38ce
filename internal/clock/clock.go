package clock

import "time"

// NowFunc returns the current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// Since reports the elapsed time against NowFunc, so durations recorded in
// execution results stay deterministic under a stubbed clock.
func Since(t time.Time) time.Duration { return NowFunc().Sub(t) }
