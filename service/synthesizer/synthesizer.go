// Package synthesizer defines the contract with the external collaborator
// that converts natural-language intent into raw shell command text, plus a
// shipped OpenAI-compatible HTTP implementation. The coordinator treats the
// synthesizer as an opaque text generator behind a bounded timeout.
package synthesizer

import (
	"context"
	"fmt"
	"strings"
)

// Synthesizer converts user intent, optionally enriched with the previous
// attempt's failure context, into raw command text. Implementations must
// honour ctx cancellation; the coordinator maps a timeout to an empty
// response.
type Synthesizer interface {
	Synthesize(ctx context.Context, userIntent string, failure *FailureContext) (string, error)
}

// Func adapts a plain function to the Synthesizer interface.
type Func func(ctx context.Context, userIntent string, failure *FailureContext) (string, error)

// Synthesize implements Synthesizer.
func (f Func) Synthesize(ctx context.Context, userIntent string, failure *FailureContext) (string, error) {
	return f(ctx, userIntent, failure)
}

// FailureContext carries bounded information about a failed attempt into
// the next synthesis call. It is built on failure and discarded on success.
type FailureContext struct {
	ExitCode      int
	Summary       string
	Hint          string
	WorkingDir    string
	OutputExcerpt string // length-capped by the coordinator
}

// Prompt renders the failure context as text appended to the synthesis
// request, giving the collaborator concrete grounds to produce a materially
// different next attempt rather than repeating the failing command.
func (c *FailureContext) Prompt() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("The previous attempt failed")
	if c.ExitCode != 0 {
		fmt.Fprintf(&b, " with exit code %d", c.ExitCode)
	}
	b.WriteString(".\n")
	if c.Summary != "" {
		fmt.Fprintf(&b, "Issue: %s\n", c.Summary)
	}
	if c.Hint != "" {
		fmt.Fprintf(&b, "Hint: %s\n", c.Hint)
	}
	if c.WorkingDir != "" {
		fmt.Fprintf(&b, "Current working directory: %s\n", c.WorkingDir)
	}
	if c.OutputExcerpt != "" {
		fmt.Fprintf(&b, "Output excerpt:\n%s\n", c.OutputExcerpt)
	}
	b.WriteString("Produce a corrected command, not a repetition of the failing one.")
	return b.String()
}
