// Package validator screens and normalizes raw synthesizer text before it
// reaches the shell. Synthesizer output is adversarial by assumption: it may
// arrive wrapped in markdown fences, prefixed with narrative, or carrying
// substitution syntax that must never be executed. Validation is an ordered
// pipeline of pure steps; order matters and each step is independently
// testable.
package validator

import (
	"fmt"
	"os/exec"
	"strings"
)

// Verdict is the transient, per-request outcome of validation.
type Verdict struct {
	Safe    bool
	Command string // resolved command text, only meaningful when Safe
	Reason  string // rejection reason, only meaningful when !Safe
	Notes   []string
}

// Transform is a pure text rewrite applied before screening.
type Transform struct {
	Name  string
	Apply func(string) string
}

// LookPath resolves an executable name on PATH. Replaceable for tests.
type LookPath func(name string) (string, error)

// Validator holds the transform list, screens and the binary-alternate
// table. Construct with New.
type Validator struct {
	transforms []Transform
	alternates map[string]string
	lookPath   LookPath
}

// Option customises a Validator.
type Option func(*Validator)

// WithLookPath replaces the PATH probe used for binary resolution.
func WithLookPath(fn LookPath) Option {
	return func(v *Validator) {
		if fn != nil {
			v.lookPath = fn
		}
	}
}

// WithAlternate registers an additional binary-alternate mapping.
func WithAlternate(name, alternate string) Option {
	return func(v *Validator) { v.alternates[name] = alternate }
}

// New creates a Validator with the default pipeline.
func New(options ...Option) *Validator {
	v := &Validator{
		transforms: []Transform{
			{Name: "strip-fences", Apply: StripFences},
			{Name: "strip-narrative", Apply: StripNarrative},
		},
		alternates: map[string]string{
			// Common names that are absent on minimal systems where only the
			// versioned alternate is installed.
			"python": "python3",
			"pip":    "pip3",
		},
		lookPath: exec.LookPath,
	}
	for _, option := range options {
		option(v)
	}
	return v
}

// Transforms exposes the normalization steps so each can be exercised on
// its own.
func (v *Validator) Transforms() []Transform { return v.transforms }

// Validate runs the full pipeline. A rejected verdict guarantees that no
// byte of the input will ever be written to the shell.
func (v *Validator) Validate(raw string) *Verdict {
	text := raw
	for _, t := range v.transforms {
		text = t.Apply(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return &Verdict{Safe: false, Reason: "no executable content after normalization"}
	}
	if reason := ScreenInjection(text); reason != "" {
		return &Verdict{Safe: false, Reason: reason}
	}
	if reason := ScreenDangerous(text); reason != "" {
		return &Verdict{Safe: false, Reason: reason}
	}
	resolved, note := v.resolveBinary(text)
	verdict := &Verdict{Safe: true, Command: resolved}
	if note != "" {
		verdict.Notes = append(verdict.Notes, note)
	}
	return verdict
}

// resolveBinary extracts the leading executable token and, when it is
// missing from PATH but a known alternate exists, substitutes the alternate
// transparently.
func (v *Validator) resolveBinary(command string) (string, string) {
	firstLine := command
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}
	fields := strings.Fields(firstLine)
	if len(fields) == 0 {
		return command, ""
	}
	name := fields[0]
	alternate, ok := v.alternates[name]
	if !ok {
		return command, ""
	}
	if _, err := v.lookPath(name); err == nil {
		return command, ""
	}
	if _, err := v.lookPath(alternate); err != nil {
		return command, ""
	}
	resolved := strings.Replace(command, name, alternate, 1)
	return resolved, fmt.Sprintf("substituted %q with %q (not on PATH)", name, alternate)
}
