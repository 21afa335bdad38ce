package coordinator

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/EricSpencer00/ai-os-sub000/policy"
	"github.com/EricSpencer00/ai-os-sub000/service/framer"
	"github.com/EricSpencer00/ai-os-sub000/service/session"
	"github.com/EricSpencer00/ai-os-sub000/service/synthesizer"
	"github.com/EricSpencer00/ai-os-sub000/service/transcript"
	"github.com/EricSpencer00/ai-os-sub000/service/validator"
)

const testShell = "/bin/sh"

// scriptedSynth replays canned responses and records the failure context it
// received on each call.
type scriptedSynth struct {
	responses []string
	failures  []*synthesizer.FailureContext
}

func (s *scriptedSynth) Synthesize(_ context.Context, _ string, failure *synthesizer.FailureContext) (string, error) {
	s.failures = append(s.failures, failure)
	if len(s.responses) == 0 {
		return "", nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

func newTestCoordinator(t *testing.T, synth synthesizer.Synthesizer, options ...Option) *Coordinator {
	t.Helper()
	if _, err := os.Stat(testShell); err != nil {
		t.Skipf("%v not available", testShell)
	}
	factory := func() (*session.Session, error) { return session.Open(testShell, nil) }
	sess, err := factory()
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	c := New(synth, validator.New(), framer.New(), sess, factory, options...)
	t.Cleanup(func() {
		if current := c.Session(); current != nil {
			_ = current.Close()
		}
	})
	return c
}

func TestSubmitSuccessFirstAttempt(t *testing.T) {
	synth := &scriptedSynth{responses: []string{"printf 'hello'"}}
	c := newTestCoordinator(t, synth)

	outcome, err := c.Submit(context.Background(), "print hello")
	assert.Nil(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Len(t, outcome.Attempts, 1)
	assert.Equal(t, 1, outcome.Attempts[0].Number)
	assert.Equal(t, 0, outcome.Attempts[0].ExitCode)
	assert.Contains(t, outcome.Attempts[0].Output, "hello")
	assert.NotEmpty(t, outcome.LastCwd)
	assert.Equal(t, StateIdle, c.State())

	// The first failure context of a fresh request is always nil.
	assert.Nil(t, synth.failures[0])
}

func TestSubmitExhaustsRetryBudget(t *testing.T) {
	missing := "nonexistent_binary_xyz_55012"
	synth := &scriptedSynth{responses: []string{missing, missing, missing}}
	c := newTestCoordinator(t, synth)

	outcome, err := c.Submit(context.Background(), "run the tool")
	assert.Nil(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Len(t, outcome.Attempts, DefaultMaxAttempts)
	for i, attempt := range outcome.Attempts {
		assert.Equal(t, i+1, attempt.Number)
		assert.Equal(t, framer.ExitNotFound, attempt.ExitCode)
	}

	// Every retry carried a remediation hint for the 127 class, and the
	// later ones flagged the verbatim repetition.
	assert.Len(t, synth.failures, DefaultMaxAttempts)
	assert.Contains(t, synth.failures[1].Hint, "not found")
	assert.Contains(t, synth.failures[2].Summary, "repeated")
}

func TestSubmitRejectsInjectionWithoutShellWrite(t *testing.T) {
	synth := &scriptedSynth{responses: []string{"$(rm -rf /)"}}
	// No session and no factory: validation must reject before any shell
	// interaction, otherwise this test would panic.
	c := New(synth, validator.New(), framer.New(), nil, nil, WithMaxAttempts(1))

	outcome, err := c.Submit(context.Background(), "clean up")
	assert.Nil(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Len(t, outcome.Attempts, 1)
	assert.True(t, outcome.Attempts[0].Rejected)
	assert.Contains(t, outcome.Attempts[0].Reason, "substitution")
}

func TestSubmitEmptyResponseRetries(t *testing.T) {
	synth := &scriptedSynth{responses: []string{"", "  \n "}}
	c := New(synth, validator.New(), framer.New(), nil, nil, WithMaxAttempts(2))

	outcome, err := c.Submit(context.Background(), "do something")
	assert.Nil(t, err)
	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Len(t, outcome.Attempts, 2)
	for _, attempt := range outcome.Attempts {
		assert.True(t, attempt.Rejected)
		assert.Equal(t, "synthesizer produced no command", attempt.Reason)
	}
	// The synthetic failure context reached the second call.
	assert.NotNil(t, synth.failures[1])
	assert.Contains(t, synth.failures[1].Summary, "no command")
}

func TestAttemptNumberResetsAcrossRequests(t *testing.T) {
	synth := &scriptedSynth{responses: []string{"false", "true", "true"}}
	c := newTestCoordinator(t, synth, WithMaxAttempts(2))

	first, err := c.Submit(context.Background(), "first request")
	assert.Nil(t, err)
	assert.Equal(t, StatusSuccess, first.Status)
	assert.Len(t, first.Attempts, 2)

	second, err := c.Submit(context.Background(), "second request")
	assert.Nil(t, err)
	assert.Equal(t, StatusSuccess, second.Status)
	assert.Equal(t, 1, second.Attempts[0].Number)
	// A new request never inherits failure context from the previous one.
	assert.Nil(t, synth.failures[2])
}

func TestSessionRecreatedAfterDeath(t *testing.T) {
	synth := &scriptedSynth{responses: []string{"exit", "echo recovered"}}
	c := newTestCoordinator(t, synth, WithMaxAttempts(2))
	original := c.Session()

	outcome, err := c.Submit(context.Background(), "terminate the shell")
	assert.Nil(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Len(t, outcome.Attempts, 2)
	assert.True(t, outcome.Attempts[0].Rejected)
	assert.Contains(t, outcome.Attempts[0].Reason, "died")
	assert.Contains(t, outcome.Attempts[1].Output, "recovered")
	assert.NotSame(t, original, c.Session())
}

func TestTranscriptPersisted(t *testing.T) {
	store := transcript.New("mem://localhost/transcripts")
	synth := &scriptedSynth{responses: []string{"printf 'persist me'"}}
	c := newTestCoordinator(t, synth, WithTranscriptStore(store))

	outcome, err := c.Submit(context.Background(), "persist something")
	assert.Nil(t, err)

	record, err := store.Load(context.Background(), outcome.RequestID)
	assert.Nil(t, err)
	assert.Equal(t, string(StatusSuccess), record.Status)
	assert.Len(t, record.Attempts, 1)
	assert.Equal(t, "persist something", record.UserIntent)
}

func TestPolicyRejectionIsRetryable(t *testing.T) {
	synth := &scriptedSynth{responses: []string{"curl http://example.com", "echo allowed"}}
	c := newTestCoordinator(t, synth, WithMaxAttempts(2))

	ctx := policy.WithPolicy(context.Background(), &policy.Policy{BlockList: []string{"curl"}})
	outcome, err := c.Submit(ctx, "fetch a page")
	assert.Nil(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.True(t, outcome.Attempts[0].Rejected)
	assert.Contains(t, outcome.Attempts[0].Reason, "policy")
	assert.Contains(t, outcome.Attempts[1].Output, "allowed")
}

func TestStateReadableDuringSubmit(t *testing.T) {
	synth := &scriptedSynth{responses: []string{"printf 'racing'"}}
	c := newTestCoordinator(t, synth)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = c.State()
			}
		}
	}()

	_, err := c.Submit(context.Background(), "race the state accessor")
	assert.Nil(t, err)
	close(stop)
	wg.Wait()
	assert.Equal(t, StateIdle, c.State())
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))

	// A two-byte rune straddling the cap is dropped whole.
	cut := truncate("héllo", 2)
	assert.Equal(t, "h", cut)
	assert.True(t, utf8.ValidString(cut))

	cut = truncate("日本語", 4)
	assert.Equal(t, "日", cut)
	assert.True(t, utf8.ValidString(cut))
}

func TestRemediationHints(t *testing.T) {
	assert.Contains(t, RemediationHint(framer.ExitNotFound), "not found")
	assert.Contains(t, RemediationHint(framer.ExitPermission), "permission")
	assert.Contains(t, RemediationHint(1), "non-zero")
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("ls -la", "ls -la"))
	assert.Less(t, similarity("ls -la", "find . -type f"), repeatThreshold)
	assert.GreaterOrEqual(t, similarity("pip install requests", "pip install requests "), repeatThreshold)
}

func TestExecutionTimeoutIsRetryableFailure(t *testing.T) {
	synth := &scriptedSynth{responses: []string{"sleep 2", "echo quick"}}
	c := newTestCoordinator(t, synth,
		WithMaxAttempts(2),
		WithExecutionTimeout(300*time.Millisecond),
	)

	outcome, err := c.Submit(context.Background(), "wait a bit")
	assert.Nil(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Len(t, outcome.Attempts, 2)
	assert.Equal(t, framer.SentinelExitCode, outcome.Attempts[0].ExitCode)
	assert.Contains(t, synth.failures[1].Summary, "timeout")
}
