package validator

import (
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ScreenInjection rejects text containing unresolved substitution syntax:
// $(...), backtick substitution, or braced ${...} expansion. The text is
// parsed as bash and its AST walked, which also catches substitutions
// nested inside quotes where a naive scan would miss them. When the text
// does not parse at all, a regex screen decides instead.
func ScreenInjection(text string) string {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	prog, err := parser.Parse(strings.NewReader(text), "")
	if err != nil {
		return regexInjection(text)
	}
	var reason string
	syntax.Walk(prog, func(node syntax.Node) bool {
		if reason != "" {
			return false
		}
		switch n := node.(type) {
		case *syntax.CmdSubst:
			reason = "unresolved command substitution"
		case *syntax.ParamExp:
			// Bare $VAR reads are part of ordinary shell usage; the braced
			// ${...} form is where unsanitized expansion tricks live.
			if !n.Short {
				reason = "unsanitized ${...} parameter expansion"
			}
		}
		return true
	})
	return reason
}

var (
	cmdSubstRe = regexp.MustCompile(`\$\(|` + "`")
	paramExpRe = regexp.MustCompile(`\$\{`)
)

func regexInjection(text string) string {
	if cmdSubstRe.MatchString(text) {
		return "unresolved command substitution"
	}
	if paramExpRe.MatchString(text) {
		return "unsanitized ${...} parameter expansion"
	}
	return ""
}

// denyRule pairs a pattern with its human-readable rejection reason. The
// patterns match against a lowercased, whitespace-collapsed rendition of the
// command, so trivial spacing variants are still caught.
type denyRule struct {
	pattern *regexp.Regexp
	reason  string
}

var denyRules = []denyRule{
	{regexp.MustCompile(`^rm\s+-[a-z]*(rf|fr)[a-z]*\s+/(\s|$|\*)`), "recursive deletion of the filesystem root"},
	{regexp.MustCompile(`\bdd\b.*\bof=/dev/(sd|hd|nvme|vd|xvd)`), "raw write to a block device"},
	{regexp.MustCompile(`^mkfs(\.[a-z0-9]+)?\b`), "filesystem format command"},
	{regexp.MustCompile(`^chmod\s+0{3,4}\s+/(bin|boot|etc|lib|sbin|usr|var)?(\s|$)`), "zeroing permissions on a system directory"},
	{regexp.MustCompile(`:\(\)\{:\|:&\};:`), "fork bomb"},
}

// ScreenDangerous rejects exact and near-exact matches against the fixed
// denylist of destructive operations.
func ScreenDangerous(text string) string {
	collapsed := strings.ToLower(strings.Join(strings.Fields(text), " "))
	folded := strings.ReplaceAll(collapsed, " ", "")
	for _, rule := range denyRules {
		if rule.pattern.MatchString(collapsed) || rule.pattern.MatchString(folded) {
			return "dangerous operation: " + rule.reason
		}
	}
	return ""
}
