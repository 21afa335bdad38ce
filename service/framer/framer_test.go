package framer

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/EricSpencer00/ai-os-sub000/service/session"
)

const testShell = "/bin/sh"

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	if _, err := os.Stat(testShell); err != nil {
		t.Skipf("%v not available", testShell)
	}
	sess, err := session.Open(testShell, nil)
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	sess := newTestSession(t)
	f := New()
	ctx := context.Background()

	result, err := f.Run(ctx, sess, "printf 'hello'", 10*time.Second)
	assert.Nil(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Output, "hello")
	assert.False(t, result.TimedOut)
	assert.NotEmpty(t, result.WorkingDir)
}

func TestRunExitCodeClasses(t *testing.T) {
	sess := newTestSession(t)
	f := New()
	ctx := context.Background()

	testCases := []struct {
		description string
		command     string
		expect      int
	}{
		{"plain failure", "false", 1},
		{"missing executable", "nonexistent_binary_xyz_81726", ExitNotFound},
	}
	for _, tc := range testCases {
		result, err := f.Run(ctx, sess, tc.command, 10*time.Second)
		if !assert.Nil(t, err, tc.description) {
			continue
		}
		assert.Equal(t, tc.expect, result.ExitCode, tc.description)
		assert.True(t, result.Failed(), tc.description)
	}
}

func TestWorkingDirTracksShellState(t *testing.T) {
	sess := newTestSession(t)
	f := New()
	ctx := context.Background()

	first, err := f.Run(ctx, sess, "cd /tmp", 10*time.Second)
	assert.Nil(t, err)
	assert.Equal(t, 0, first.ExitCode)
	assert.True(t, strings.HasSuffix(first.WorkingDir, "/tmp"), first.WorkingDir)

	// The working directory reported by the framer must equal an
	// independently issued pwd in the same session.
	second, err := f.Run(ctx, sess, "pwd", 10*time.Second)
	assert.Nil(t, err)
	assert.Equal(t, first.WorkingDir, strings.TrimSpace(second.Output))
}

func TestEnvironmentPersistsAcrossRuns(t *testing.T) {
	sess := newTestSession(t)
	f := New()
	ctx := context.Background()

	set, err := f.Run(ctx, sess, "FOO=hello123", 10*time.Second)
	assert.Nil(t, err)
	assert.Equal(t, 0, set.ExitCode)

	read, err := f.Run(ctx, sess, "echo \"FOO is $FOO\"", 10*time.Second)
	assert.Nil(t, err)
	assert.Contains(t, read.Output, "FOO is hello123")
}

func TestBackToBackRunsDoNotInterleave(t *testing.T) {
	sess := newTestSession(t)
	f := New()
	ctx := context.Background()

	one, err := f.Run(ctx, sess, "echo one", 10*time.Second)
	assert.Nil(t, err)
	two, err := f.Run(ctx, sess, "echo two", 10*time.Second)
	assert.Nil(t, err)

	assert.Equal(t, "one", strings.TrimSpace(one.Output))
	assert.Equal(t, "two", strings.TrimSpace(two.Output))
}

func TestTimeoutYieldsSentinelAndKeepsSessionLive(t *testing.T) {
	sess := newTestSession(t)
	f := New()
	ctx := context.Background()

	slow, err := f.Run(ctx, sess, "sleep 2", 300*time.Millisecond)
	assert.Nil(t, err)
	assert.True(t, slow.TimedOut)
	assert.Equal(t, SentinelExitCode, slow.ExitCode)
	assert.True(t, slow.Failed())

	// The shell process is not killed on timeout; once the slow command
	// finishes the session keeps serving framed commands.
	after, err := f.Run(ctx, sess, "echo back", 10*time.Second)
	assert.Nil(t, err)
	assert.Equal(t, 0, after.ExitCode)
	assert.Contains(t, after.Output, "back")
}

func TestContinuousOutputStillTimesOut(t *testing.T) {
	sess := newTestSession(t)
	f := New(WithCwdTimeout(300 * time.Millisecond))
	ctx := context.Background()

	// The command floods the pty without ever emitting the end token; the
	// execution timeout must still fire and surface the sentinel result.
	started := time.Now()
	result, err := f.Run(ctx, sess, "yes", 500*time.Millisecond)
	elapsed := time.Since(started)

	assert.Nil(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, SentinelExitCode, result.ExitCode)
	assert.Less(t, elapsed, 5*time.Second, "Run must return shortly after the timeout")
}

func TestTokenIsUnpredictablePerInvocation(t *testing.T) {
	a := token("AOSB")
	b := token("AOSB")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "AOSB-"))
}

func TestSplitQuoteNeverContainsContiguousToken(t *testing.T) {
	tok := token("AOSE")
	quoted := splitQuote(tok)
	assert.NotContains(t, quoted, tok)
}
