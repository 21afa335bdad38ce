// Package coordinator drives one user request end to end through synthesis,
// validation, execution and evaluation, retrying failed commands with a
// bounded-context failure report. The retry logic is an explicit finite
// state machine over a bounded attempt counter, so termination of every
// request is provable rather than implicit.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/EricSpencer00/ai-os-sub000/internal/clock"
	"github.com/EricSpencer00/ai-os-sub000/internal/idgen"
	"github.com/EricSpencer00/ai-os-sub000/policy"
	"github.com/EricSpencer00/ai-os-sub000/service/framer"
	"github.com/EricSpencer00/ai-os-sub000/service/session"
	"github.com/EricSpencer00/ai-os-sub000/service/synthesizer"
	"github.com/EricSpencer00/ai-os-sub000/service/transcript"
	"github.com/EricSpencer00/ai-os-sub000/service/validator"
	"github.com/EricSpencer00/ai-os-sub000/tracing"
)

// State identifies the coordinator's position in the per-request machine.
type State string

const (
	StateIdle         State = "idle"
	StateSynthesizing State = "synthesizing"
	StateValidating   State = "validating"
	StateExecuting    State = "executing"
	StateEvaluating   State = "evaluating"
	StateRetrying     State = "retrying"
	StateDone         State = "done"
)

// Status is the terminal outcome of a request.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// DefaultMaxAttempts bounds the retry loop when no override is configured.
// The bound is always finite; an unbounded loop would make termination of a
// request unprovable.
const DefaultMaxAttempts = 3

const (
	defaultExecTimeout  = time.Minute
	defaultSynthTimeout = 30 * time.Second
	defaultExcerptCap   = 2000
	// repeatThreshold is the difflib similarity ratio above which a retry is
	// considered a repetition of the failing command.
	repeatThreshold = 0.95
)

// Attempt records one attempt of a request: either an executed command or a
// rejection that never reached the shell.
type Attempt struct {
	Number     int
	Raw        string // verbatim synthesizer output
	Command    string // resolved command text; empty when rejected
	Rejected   bool
	Reason     string
	ExitCode   int
	Output     string
	WorkingDir string
	Duration   time.Duration
}

// Outcome is returned to the caller for every submitted request; a terminal
// failure still carries the complete attempt history, not just the last
// attempt.
type Outcome struct {
	RequestID string
	Status    Status
	Attempts  []Attempt
	LastCwd   string
}

// SessionFactory creates a replacement shell session when the current one
// dies. It is expected to apply its own single-recreate retry policy.
type SessionFactory func() (*session.Session, error)

// Coordinator owns the session descriptor exclusively and processes
// requests serially: a shell has one working directory and one environment,
// so concurrent command issuance against the same session would corrupt
// framing.
type Coordinator struct {
	synth       synthesizer.Synthesizer
	validator   *validator.Validator
	framer      *framer.Framer
	newSession  SessionFactory
	transcripts *transcript.Store

	maxAttempts  int
	execTimeout  time.Duration
	synthTimeout time.Duration
	excerptCap   int

	mu      sync.Mutex // single-flight: serializes Submit
	session *session.Session
	lastCwd string

	stateMu sync.RWMutex // guards state, readable while Submit holds mu
	state   State
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithMaxAttempts overrides the retry budget. Values below one are ignored.
func WithMaxAttempts(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithExecutionTimeout bounds each framed command execution.
func WithExecutionTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.execTimeout = d
		}
	}
}

// WithSynthesizerTimeout bounds each synthesis call.
func WithSynthesizerTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.synthTimeout = d
		}
	}
}

// WithExcerptCap bounds the output excerpt carried in failure context.
func WithExcerptCap(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.excerptCap = n
		}
	}
}

// WithTranscriptStore enables attempt-history persistence.
func WithTranscriptStore(store *transcript.Store) Option {
	return func(c *Coordinator) { c.transcripts = store }
}

// New creates a Coordinator. The supplied session becomes coordinator-owned;
// no other component may touch its descriptor afterwards.
func New(synth synthesizer.Synthesizer, aValidator *validator.Validator, aFramer *framer.Framer, sess *session.Session, factory SessionFactory, options ...Option) *Coordinator {
	c := &Coordinator{
		synth:        synth,
		validator:    aValidator,
		framer:       aFramer,
		session:      sess,
		newSession:   factory,
		maxAttempts:  DefaultMaxAttempts,
		execTimeout:  defaultExecTimeout,
		synthTimeout: defaultSynthTimeout,
		excerptCap:   defaultExcerptCap,
		state:        StateIdle,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// State returns the current machine state.
func (c *Coordinator) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Coordinator) setState(state State) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
}

// Session returns the currently owned session, mostly so the lifecycle
// owner can close it on shutdown.
func (c *Coordinator) Session() *session.Session { return c.session }

// Submit processes one user request and always terminates within the
// configured attempt budget. Per-request failures (timeouts, rejections,
// non-zero exits) are recovered locally by the retry loop; only session
// recreation failures propagate as errors.
func (c *Coordinator) Submit(ctx context.Context, userIntent string) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	startedAt := clock.Now()
	outcome := &Outcome{RequestID: idgen.New(), Status: StatusFailed, LastCwd: c.lastCwd}
	ctx, span := tracing.StartSpan(ctx, "terminal.submit", "SERVER")
	defer func() {
		c.setState(StateIdle)
		span.WithAttributes(map[string]string{
			"request.id":       outcome.RequestID,
			"request.status":   string(outcome.Status),
			"request.attempts": fmt.Sprintf("%d", len(outcome.Attempts)),
		})
		tracing.EndSpan(span, nil)
		c.persist(outcome, userIntent, startedAt)
	}()

	var failure *synthesizer.FailureContext
	var prevCommand string

	for number := 1; number <= c.maxAttempts; number++ {
		attempt := Attempt{Number: number, ExitCode: framer.SentinelExitCode}

		raw, err := c.synthesize(ctx, userIntent, failure)
		if err != nil && !isTimeout(err) {
			log.Printf("synthesizer error (attempt %d): %v", number, err)
		}
		if strings.TrimSpace(raw) == "" {
			attempt.Rejected = true
			attempt.Reason = "synthesizer produced no command"
			outcome.Attempts = append(outcome.Attempts, attempt)
			failure = &synthesizer.FailureContext{
				Summary:    attempt.Reason,
				Hint:       "respond with exactly one executable shell command",
				WorkingDir: c.lastCwd,
			}
			c.setState(StateRetrying)
			continue
		}
		attempt.Raw = raw

		c.setState(StateValidating)
		verdict := c.validator.Validate(raw)
		if !verdict.Safe {
			// Not a shell execution: nothing was written to the session. It
			// still consumes an attempt so the loop terminates.
			log.Printf("validation failure (attempt %d): %s", number, verdict.Reason)
			attempt.Rejected = true
			attempt.Reason = verdict.Reason
			outcome.Attempts = append(outcome.Attempts, attempt)
			failure = &synthesizer.FailureContext{
				Summary:    "command rejected before execution: " + verdict.Reason,
				Hint:       "produce a plain command without substitution syntax or destructive operations",
				WorkingDir: c.lastCwd,
			}
			c.setState(StateRetrying)
			continue
		}
		attempt.Command = verdict.Command
		for _, note := range verdict.Notes {
			log.Printf("validator: %s", note)
		}

		if allowed, reason := policy.FromContext(ctx).Approve(ctx, verdict.Command); !allowed {
			log.Printf("policy rejection (attempt %d): %s", number, reason)
			attempt.Rejected = true
			attempt.Reason = reason
			outcome.Attempts = append(outcome.Attempts, attempt)
			failure = &synthesizer.FailureContext{
				Summary:    "command rejected by execution policy: " + reason,
				WorkingDir: c.lastCwd,
			}
			c.setState(StateRetrying)
			continue
		}

		result, err := c.execute(ctx, verdict.Command)
		if err != nil {
			if !errors.Is(err, session.ErrSessionDead) {
				return nil, err
			}
			if err := c.recreateSession(); err != nil {
				return nil, err
			}
			attempt.Rejected = true
			attempt.Reason = "shell session died during execution"
			outcome.Attempts = append(outcome.Attempts, attempt)
			failure = &synthesizer.FailureContext{
				Summary:    "the shell session died and was recreated; previous shell state is gone",
				WorkingDir: c.lastCwd,
			}
			c.setState(StateRetrying)
			continue
		}

		c.setState(StateEvaluating)
		attempt.ExitCode = result.ExitCode
		attempt.Output = result.Output
		attempt.WorkingDir = result.WorkingDir
		attempt.Duration = result.Duration
		outcome.Attempts = append(outcome.Attempts, attempt)
		if result.WorkingDir != "" {
			c.lastCwd = result.WorkingDir
			outcome.LastCwd = result.WorkingDir
		}

		if !result.Failed() {
			outcome.Status = StatusSuccess
			c.setState(StateDone)
			return outcome, nil
		}

		failure = c.buildFailure(result, verdict.Command, prevCommand)
		prevCommand = verdict.Command
		c.setState(StateRetrying)
	}

	c.setState(StateDone)
	return outcome, nil
}

func (c *Coordinator) synthesize(ctx context.Context, userIntent string, failure *synthesizer.FailureContext) (string, error) {
	c.setState(StateSynthesizing)
	ctx, cancel := context.WithTimeout(ctx, c.synthTimeout)
	defer cancel()
	ctx, span := tracing.StartSpan(ctx, "terminal.synthesize", "CLIENT")
	raw, err := c.synth.Synthesize(ctx, userIntent, failure)
	tracing.EndSpan(span, err)
	if isTimeout(err) {
		// A synthesizer timeout is indistinguishable from an empty response
		// as far as the retry machine is concerned.
		return "", err
	}
	return raw, err
}

func (c *Coordinator) execute(ctx context.Context, command string) (*framer.Result, error) {
	c.setState(StateExecuting)
	ctx, span := tracing.StartSpan(ctx, "terminal.execute", "INTERNAL")
	result, err := c.framer.Run(ctx, c.session, command, c.execTimeout)
	if result != nil {
		span.WithAttributes(map[string]string{
			"command.exitCode": fmt.Sprintf("%d", result.ExitCode),
			"command.timedOut": fmt.Sprintf("%t", result.TimedOut),
		})
	}
	tracing.EndSpan(span, err)
	return result, err
}

// recreateSession replaces a dead session before the request is retried.
func (c *Coordinator) recreateSession() error {
	log.Printf("shell session died, recreating")
	if c.session != nil {
		_ = c.session.Close()
	}
	sess, err := c.newSession()
	if err != nil {
		return fmt.Errorf("failed to recreate shell session: %w", err)
	}
	c.session = sess
	return nil
}

// buildFailure condenses an execution result into bounded context for the
// next synthesis call.
func (c *Coordinator) buildFailure(result *framer.Result, command, prevCommand string) *synthesizer.FailureContext {
	summary := "command exited non-zero"
	if result.TimedOut {
		summary = "command did not complete within the execution timeout"
	}
	if prevCommand != "" && similarity(prevCommand, command) >= repeatThreshold {
		summary += "; the previous attempt repeated the failing command"
	}
	return &synthesizer.FailureContext{
		ExitCode:      result.ExitCode,
		Summary:       summary,
		Hint:          RemediationHint(result.ExitCode),
		WorkingDir:    result.WorkingDir,
		OutputExcerpt: truncate(result.Output, c.excerptCap),
	}
}

func (c *Coordinator) persist(outcome *Outcome, userIntent string, startedAt time.Time) {
	if c.transcripts == nil {
		return
	}
	record := &transcript.Record{
		RequestID:  outcome.RequestID,
		UserIntent: userIntent,
		Status:     string(outcome.Status),
		StartedAt:  startedAt,
		EndedAt:    clock.Now(),
		LastCwd:    outcome.LastCwd,
	}
	for _, a := range outcome.Attempts {
		record.Attempts = append(record.Attempts, transcript.Attempt{
			Number:     a.Number,
			Command:    a.Command,
			Rejected:   a.Rejected,
			Reason:     a.Reason,
			ExitCode:   a.ExitCode,
			Output:     a.Output,
			WorkingDir: a.WorkingDir,
			Duration:   a.Duration,
		})
	}
	if err := c.transcripts.Save(context.Background(), record); err != nil {
		log.Printf("failed to persist transcript: %v", err)
	}
}

func isTimeout(err error) bool {
	return err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
}

// truncate caps text at limit bytes, backing up to the nearest rune
// boundary so the excerpt never carries a torn UTF-8 sequence.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}
