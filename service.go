package terminal

import (
	"context"
	"fmt"
	"time"

	"github.com/EricSpencer00/ai-os-sub000/service/coordinator"
	"github.com/EricSpencer00/ai-os-sub000/service/framer"
	"github.com/EricSpencer00/ai-os-sub000/service/session"
	"github.com/EricSpencer00/ai-os-sub000/service/synthesizer"
	"github.com/EricSpencer00/ai-os-sub000/service/transcript"
	"github.com/EricSpencer00/ai-os-sub000/service/validator"
)

// Service is the caller-facing façade over one terminal instance: exactly
// one live shell session, one coordinator, processed single-flight. Multiple
// independent Service instances each own their own session; nothing here is
// process-global.
type Service struct {
	config           *Config
	synth            synthesizer.Synthesizer
	validatorOptions []validator.Option
	transcripts      *transcript.Store
	coordinator      *coordinator.Coordinator
}

// New creates a Service. Call Start before Submit.
func New(options ...Option) *Service {
	s := &Service{config: DefaultConfig()}
	for _, option := range options {
		option(s)
	}
	return s
}

// Start validates configuration, opens the shell session (with one
// transparent recreate on a start failure) and assembles the coordinator.
func (s *Service) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.synth == nil {
		client, err := synthesizer.NewClient(ctx, s.config.Synthesizer)
		if err != nil {
			return err
		}
		s.synth = client
	}
	if s.transcripts == nil && s.config.Transcript.BaseURL != "" {
		s.transcripts = transcript.New(s.config.Transcript.BaseURL)
	}

	sess, err := s.openSession()
	if err != nil {
		return err
	}
	aFramer := framer.New(framer.WithPollInterval(time.Duration(s.config.Shell.ReadPollMs) * time.Millisecond))
	opts := []coordinator.Option{
		coordinator.WithMaxAttempts(s.config.Execution.MaxAttempts),
		coordinator.WithExecutionTimeout(time.Duration(s.config.Execution.TimeoutMs) * time.Millisecond),
		coordinator.WithExcerptCap(s.config.Execution.ExcerptLimit),
	}
	if s.config.Synthesizer.TimeoutMs > 0 {
		opts = append(opts, coordinator.WithSynthesizerTimeout(time.Duration(s.config.Synthesizer.TimeoutMs)*time.Millisecond))
	}
	if s.transcripts != nil {
		opts = append(opts, coordinator.WithTranscriptStore(s.transcripts))
	}
	s.coordinator = coordinator.New(
		s.synth,
		validator.New(s.validatorOptions...),
		aFramer,
		sess,
		s.openSession,
		opts...,
	)
	return nil
}

// openSession opens the shell session, retrying once on a start failure
// before surfacing it as fatal.
func (s *Service) openSession() (*session.Session, error) {
	sess, err := session.Open(s.config.Shell.Path, s.config.Shell.Env)
	if err == nil {
		return sess, nil
	}
	sess, retryErr := session.Open(s.config.Shell.Path, s.config.Shell.Env)
	if retryErr != nil {
		return nil, fmt.Errorf("shell session could not be started: %w (first attempt: %v)", retryErr, err)
	}
	return sess, nil
}

// Submit drives one user request through synthesis, validation, execution
// and evaluation, returning the complete attempt history.
func (s *Service) Submit(ctx context.Context, userIntent string) (*coordinator.Outcome, error) {
	if s.coordinator == nil {
		return nil, fmt.Errorf("service not started")
	}
	return s.coordinator.Submit(ctx, userIntent)
}

// Close tears down the shell session. Idempotent; safe to wire to signal
// handlers so no orphaned shell process survives termination.
func (s *Service) Close() error {
	if s.coordinator == nil {
		return nil
	}
	if sess := s.coordinator.Session(); sess != nil {
		return sess.Close()
	}
	return nil
}
