package synthesizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailureContextPrompt(t *testing.T) {
	failure := &FailureContext{
		ExitCode:      127,
		Summary:       "command exited non-zero",
		Hint:          "executable not found; consider a versioned alternate or installing the package",
		WorkingDir:    "/home/user/project",
		OutputExcerpt: "sh: tool: not found",
	}
	prompt := failure.Prompt()
	assert.Contains(t, prompt, "exit code 127")
	assert.Contains(t, prompt, "executable not found")
	assert.Contains(t, prompt, "/home/user/project")
	assert.Contains(t, prompt, "sh: tool: not found")
	assert.Contains(t, prompt, "not a repetition")
}

func TestFailureContextPromptNil(t *testing.T) {
	var failure *FailureContext
	assert.Empty(t, failure.Prompt())
}

func TestClientSynthesize(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "ls -la"}},
			},
		})
	}))
	defer server.Close()

	t.Setenv("TEST_SYNTH_KEY", "secret-key")
	client, err := NewClient(context.Background(), ClientConfig{
		BaseURL:   server.URL,
		Model:     "test-model",
		APIKeyEnv: "TEST_SYNTH_KEY",
	})
	assert.Nil(t, err)

	command, err := client.Synthesize(context.Background(), "list files", nil)
	assert.Nil(t, err)
	assert.Equal(t, "ls -la", command)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "test-model", gotBody.Model)
	assert.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "list files", gotBody.Messages[1].Content)
}

func TestClientCarriesFailureContext(t *testing.T) {
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "python3 -V"}},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), ClientConfig{BaseURL: server.URL, Model: "test-model"})
	assert.Nil(t, err)

	failure := &FailureContext{ExitCode: 127, Hint: "executable not found"}
	_, err = client.Synthesize(context.Background(), "check python version", failure)
	assert.Nil(t, err)
	assert.Contains(t, gotBody.Messages[1].Content, "exit code 127")
	assert.Contains(t, gotBody.Messages[1].Content, "executable not found")
}

func TestClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), ClientConfig{BaseURL: server.URL, Model: "test-model"})
	assert.Nil(t, err)

	_, err = client.Synthesize(context.Background(), "anything", nil)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestNewClientRequiresModel(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{BaseURL: "https://example.com"})
	assert.NotNil(t, err)
}
