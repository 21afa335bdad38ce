// Package framer executes exactly one command against a live session and
// extracts an unambiguous result from the continuous pseudo-terminal byte
// stream. Each invocation frames the command between freshly generated
// sentinel tokens, so back-to-back executions never bleed into each other
// even when earlier output is still buffered.
package framer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/EricSpencer00/ai-os-sub000/internal/clock"
	"github.com/EricSpencer00/ai-os-sub000/internal/idgen"
	"github.com/EricSpencer00/ai-os-sub000/service/session"
)

// SentinelExitCode marks a result whose real exit status could not be
// observed (timeout, cancellation). It is always treated as a failure.
const SentinelExitCode = -1

// Well-known exit classes preserved for remediation.
const (
	ExitNotFound   = 127
	ExitPermission = 126
)

const (
	defaultPoll       = 50 * time.Millisecond
	defaultCwdTimeout = 5 * time.Second
)

// Result is the outcome of a single framed execution. Output carries the
// command's interleaved stdout and stderr; a pseudo-terminal merges the two
// streams, so they are not separable here.
type Result struct {
	ExitCode   int
	Output     string
	WorkingDir string
	Duration   time.Duration
	TimedOut   bool
}

// Failed reports whether the execution must be treated as a failure.
func (r *Result) Failed() bool { return r.ExitCode != 0 }

// Framer runs framed commands. The zero value is not usable; call New.
type Framer struct {
	poll       time.Duration
	cwdTimeout time.Duration
}

// Option customises a Framer.
type Option func(*Framer)

// WithPollInterval sets the wait passed to each ReadAvailable call.
func WithPollInterval(d time.Duration) Option {
	return func(f *Framer) {
		if d > 0 {
			f.poll = d
		}
	}
}

// WithCwdTimeout bounds the follow-up working-directory query.
func WithCwdTimeout(d time.Duration) Option {
	return func(f *Framer) {
		if d > 0 {
			f.cwdTimeout = d
		}
	}
}

// New creates a Framer.
func New(options ...Option) *Framer {
	f := &Framer{poll: defaultPoll, cwdTimeout: defaultCwdTimeout}
	for _, option := range options {
		option(f)
	}
	return f
}

// Run executes command on sess and returns a bounded result. When the end
// token never appears before timeout, the result carries SentinelExitCode
// and whatever partial output was captured. The shell process itself is
// left running in either case; only session.Close terminates it.
//
// After the command completes, a second identically framed `pwd` query
// observes the working directory, decoupled from the command's own output.
func (f *Framer) Run(ctx context.Context, sess *session.Session, command string, timeout time.Duration) (*Result, error) {
	started := clock.Now()
	output, code, timedOut, err := f.exec(ctx, sess, command, timeout)
	if err != nil {
		return nil, err
	}
	result := &Result{
		ExitCode: code,
		Output:   output,
		Duration: clock.Since(started),
		TimedOut: timedOut,
	}
	if cwd, cwdCode, _, cwdErr := f.exec(ctx, sess, "pwd", f.cwdTimeout); cwdErr == nil && cwdCode == 0 {
		result.WorkingDir = strings.TrimSpace(cwd)
	}
	return result, nil
}

// exec performs one framed write/poll/parse cycle.
func (f *Framer) exec(ctx context.Context, sess *session.Session, command string, timeout time.Duration) (string, int, bool, error) {
	start := token("AOSB")
	end := token("AOSE")

	// The tokens are written as two adjacent quoted halves, so even with tty
	// echo enabled the reflected script never contains a contiguous token;
	// only the printf output does.
	var script strings.Builder
	script.WriteString(fmt.Sprintf("printf '\\n%%s\\n' %s\n", splitQuote(start)))
	script.WriteString(command)
	script.WriteString("\n")
	script.WriteString(fmt.Sprintf("printf '\\n%%s %%s\\n' %s \"$?\"\n", splitQuote(end)))

	if err := sess.Write([]byte(script.String())); err != nil {
		return "", SentinelExitCode, false, err
	}

	deadline := clock.Now().Add(timeout)
	var buf []byte
	for {
		if ctx.Err() != nil {
			return partialOutput(buf, start), SentinelExitCode, true, nil
		}
		wait := f.poll
		if remaining := deadline.Sub(clock.Now()); remaining <= 0 {
			return partialOutput(buf, start), SentinelExitCode, true, nil
		} else if remaining < wait {
			wait = remaining
		}
		chunk, err := sess.ReadAvailable(wait)
		if err != nil {
			return "", SentinelExitCode, false, err
		}
		buf = append(buf, chunk...)
		if output, code, ok := parse(buf, start, end); ok {
			return output, code, false, nil
		}
	}
}

// token builds an unpredictable per-invocation delimiter. A random suffix is
// mandatory: a timestamp alone could collide with previously buffered output
// of an earlier invocation echoing the same second.
func token(prefix string) string {
	return prefix + "-" + idgen.Short()
}

// splitQuote renders a token as two adjacent single-quoted shell words.
func splitQuote(tok string) string {
	mid := len(tok) / 2
	return "'" + tok[:mid] + "''" + tok[mid:] + "'"
}

// parse locates the framed region inside buf. It returns ok=false until the
// end token and its exit status are fully present.
func parse(buf []byte, start, end string) (string, int, bool) {
	text := normalize(buf)
	si := strings.Index(text, start)
	if si < 0 {
		return "", 0, false
	}
	rest := text[si+len(start):]
	nl := strings.Index(rest, "\n")
	if nl < 0 {
		return "", 0, false
	}
	body := rest[nl+1:]
	ei := strings.Index(body, end)
	if ei < 0 {
		return "", 0, false
	}
	marker := body[ei+len(end):]
	markerEnd := strings.Index(marker, "\n")
	if markerEnd < 0 {
		return "", 0, false
	}
	code, err := strconv.Atoi(strings.TrimSpace(marker[:markerEnd]))
	if err != nil {
		code = SentinelExitCode
	}
	output := body[:ei]
	// Drop the newline the exit-marker printf injected ahead of the token.
	output = strings.TrimSuffix(output, "\n")
	return output, code, true
}

// partialOutput salvages whatever arrived after the start token when the
// end token never showed up.
func partialOutput(buf []byte, start string) string {
	text := normalize(buf)
	if si := strings.Index(text, start); si >= 0 {
		rest := text[si+len(start):]
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			return rest[nl+1:]
		}
		return ""
	}
	return ""
}

// normalize folds the pseudo-terminal's CRLF line endings to plain LF.
func normalize(buf []byte) string {
	return strings.ReplaceAll(string(buf), "\r\n", "\n")
}
