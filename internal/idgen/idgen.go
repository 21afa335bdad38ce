package idgen

import "github.com/google/uuid"

// NewFunc produces globally unique identifiers. It is a variable so tests
// can replace it with a deterministic sequence.
var NewFunc = func() string { return uuid.New().String() }

// New returns a fresh identifier.
func New() string { return NewFunc() }

// Short returns the first eight hex characters of a fresh identifier, for
// places where a full UUID would be needlessly long (delimiter tokens).
func Short() string { return NewFunc()[:8] }
