package policy

import (
	"context"
	"strings"
)

// Execution modes recognised by the coordinator.
const (
	ModeAsk  = "ask"  // ask before every command execution
	ModeAuto = "auto" // execute automatically (default)
	ModeDeny = "deny" // block execution
)

// AskFunc is invoked when Mode==ask, with the resolved command about to be
// executed. Returning true approves the execution. Implementations may
// mutate the policy, for example switching to ModeAuto after the first
// approval.
type AskFunc func(ctx context.Context, command string, p *Policy) bool

// Policy represents approval settings for commands flowing through one
// terminal instance.
//
//   - Mode controls the high-level behaviour (ask / auto / deny).
//   - AllowList, BlockList filter by the command's leading binary name,
//     case-insensitively, regardless of Mode.
//   - Ask is only consulted when Mode==ask.
//
// A nil *Policy means "execute everything automatically" and is therefore
// the zero-cost default.
type Policy struct {
	Mode      string
	AllowList []string // empty => all binaries allowed
	BlockList []string // takes priority over AllowList
	Ask       AskFunc
}

// Config is the declarative, serialisable subset of a Policy (AskFunc
// cannot be persisted).
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// FromConfig converts a stored Config to a runtime Policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:      c.Mode,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// IsAllowed evaluates the allow and block lists against the command's
// leading binary name.
func (p *Policy) IsAllowed(command string) bool {
	if p == nil {
		return true
	}
	binary := leadingBinary(command)

	for _, b := range p.BlockList {
		if binary == strings.ToLower(b) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, a := range p.AllowList {
		if binary == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// Approve applies Mode on top of the list filtering. It reports whether the
// command may be executed and a short reason when it may not.
func (p *Policy) Approve(ctx context.Context, command string) (bool, string) {
	if p == nil {
		return true, ""
	}
	if !p.IsAllowed(command) {
		return false, "blocked by execution policy"
	}
	switch p.Mode {
	case ModeDeny:
		return false, "execution policy denies all commands"
	case ModeAsk:
		if p.Ask != nil && !p.Ask(ctx, command, p) {
			return false, "execution declined by user"
		}
	}
	return true, ""
}

func leadingBinary(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds the policy in ctx.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts the policy, or nil when none is attached.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
