// Package transcript persists per-request attempt histories through the
// viant/afs abstract file storage, so the same store works against file://,
// mem:// or embed:// URLs.
package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// Attempt is one recorded attempt within a request.
type Attempt struct {
	Number     int           `json:"number"`
	Command    string        `json:"command,omitempty"`
	Rejected   bool          `json:"rejected,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	ExitCode   int           `json:"exitCode"`
	Output     string        `json:"output,omitempty"`
	WorkingDir string        `json:"workingDir,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Record is the persisted shape of one completed request.
type Record struct {
	RequestID  string    `json:"requestId"`
	UserIntent string    `json:"userIntent"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
	LastCwd    string    `json:"lastCwd,omitempty"`
	Attempts   []Attempt `json:"attempts"`
}

// Store writes records under a base URL.
type Store struct {
	fs      afs.Service
	baseURL string
}

// New creates a Store rooted at baseURL.
func New(baseURL string) *Store {
	return &Store{fs: afs.New(), baseURL: baseURL}
}

// Save uploads the record as an indented JSON document named after the
// request ID.
func (s *Store) Save(ctx context.Context, record *Record) error {
	if record == nil || record.RequestID == "" {
		return fmt.Errorf("transcript record requires a request ID")
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	URL := url.Join(s.baseURL, record.RequestID+".json")
	if err := s.fs.Upload(ctx, URL, os.FileMode(0o644), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to persist transcript %v: %w", URL, err)
	}
	return nil
}

// Load reads a previously saved record back, mostly for tests and tooling.
func (s *Store) Load(ctx context.Context, requestID string) (*Record, error) {
	URL := url.Join(s.baseURL, requestID+".json")
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript %v: %w", URL, err)
	}
	record := &Record{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to decode transcript %v: %w", URL, err)
	}
	return record, nil
}
