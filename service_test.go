package terminal_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	terminal "github.com/EricSpencer00/ai-os-sub000"
	"github.com/EricSpencer00/ai-os-sub000/service/coordinator"
	"github.com/EricSpencer00/ai-os-sub000/service/synthesizer"
)

func fixedSynth(command string) synthesizer.Synthesizer {
	return synthesizer.Func(func(context.Context, string, *synthesizer.FailureContext) (string, error) {
		return command, nil
	})
}

func newTestService(t *testing.T, synth synthesizer.Synthesizer) *terminal.Service {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	config := terminal.DefaultConfig()
	config.Shell.Path = "/bin/sh"
	srv := terminal.New(terminal.WithConfig(config), terminal.WithSynthesizer(synth))
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("failed to start service: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func TestServiceSubmit(t *testing.T) {
	srv := newTestService(t, fixedSynth("printf 'hello'"))

	outcome, err := srv.Submit(context.Background(), "print hello")
	assert.Nil(t, err)
	assert.Equal(t, coordinator.StatusSuccess, outcome.Status)
	assert.Len(t, outcome.Attempts, 1)
	assert.Contains(t, outcome.Attempts[0].Output, "hello")
}

func TestServiceRequiresStart(t *testing.T) {
	srv := terminal.New(terminal.WithSynthesizer(fixedSynth("true")))
	_, err := srv.Submit(context.Background(), "anything")
	assert.NotNil(t, err)
	assert.Nil(t, srv.Close())
}

func TestServiceRejectsInvalidConfig(t *testing.T) {
	config := terminal.DefaultConfig()
	config.Execution.MaxAttempts = 0
	srv := terminal.New(terminal.WithConfig(config), terminal.WithSynthesizer(fixedSynth("true")))
	err := srv.Start(context.Background())
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "maxAttempts")
}

func TestDefaultConfigValidates(t *testing.T) {
	assert.Nil(t, terminal.DefaultConfig().Validate())
}
