package validator

import "strings"

// languageTags are bare language-name lines that markdown-minded models emit
// around commands; they carry no executable content.
var languageTags = map[string]bool{
	"bash": true, "sh": true, "shell": true, "zsh": true,
	"console": true, "terminal": true, "shellscript": true,
}

// StripFences removes markdown code-fence artifacts: ``` lines with or
// without a language tag, whole-line inline backtick wrapping, and bare
// language-name-only lines.
func StripFences(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		if languageTags[strings.ToLower(trimmed)] {
			continue
		}
		if len(trimmed) > 1 && strings.HasPrefix(trimmed, "`") && strings.HasSuffix(trimmed, "`") {
			line = strings.TrimSuffix(strings.TrimPrefix(trimmed, "`"), "`")
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// narrativeMeta are characters whose presence marks a line as likely
// executable rather than prose.
const narrativeMeta = "|&;<>$=\"'`\\/"

// StripNarrative drops leading prose lines such as "Here is the command:".
// The policy is deliberately conservative: only lines ending in ':' that
// contain no shell metacharacters are discarded, and only ahead of the
// first surviving line. Discarding an executable line is worse than letting
// the shell error safely on leftover noise, so ambiguity resolves toward
// keeping content.
func StripNarrative(text string) string {
	lines := strings.Split(text, "\n")
	start := 0
	for start < len(lines) {
		trimmed := strings.TrimSpace(lines[start])
		if trimmed == "" {
			start++
			continue
		}
		if strings.HasSuffix(trimmed, ":") && !strings.ContainsAny(trimmed, narrativeMeta) {
			start++
			continue
		}
		break
	}
	return strings.Join(lines[start:], "\n")
}
