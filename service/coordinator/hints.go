package coordinator

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/EricSpencer00/ai-os-sub000/service/framer"
)

// RemediationHint maps an exit-code class to concrete guidance concatenated
// into the next synthesis prompt. The mapping is fixed; anything not in the
// table falls through to the generic hint.
func RemediationHint(exitCode int) string {
	switch exitCode {
	case framer.ExitNotFound:
		return "executable not found; consider a versioned alternate or installing the package"
	case framer.ExitPermission:
		return "permission denied; consider elevated execution"
	default:
		return "non-zero exit; inspect the output excerpt"
	}
}

// similarity returns a 0..1 character-level ratio between two commands.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	matcher := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return matcher.Ratio()
}
