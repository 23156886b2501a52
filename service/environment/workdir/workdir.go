// Package workdir gives every session and task its own scratch directory on
// any viant/afs backend.
package workdir

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/spawnvm/model/identity"
	"github.com/viant/spawnvm/service/environment"
)

// Config for scratch directories
type Config struct {
	URL string `json:"url" yaml:"url"`
	// Keep leaves task directories in place after the task finished
	Keep bool `json:"keep,omitempty" yaml:"keep,omitempty"`
}

// DefaultConfig returns scratch directories under the system temp location
func DefaultConfig() Config {
	return Config{URL: "/tmp/spawnvm/work"}
}

// Service manages scratch directories
type Service struct {
	fs     afs.Service
	config Config
}

// New creates a workdir environment
func New(fs afs.Service, config Config) *Service {
	if fs == nil {
		fs = afs.New()
	}
	return &Service{fs: fs, config: config}
}

// SessionURL returns the session directory
func (s *Service) SessionURL(session string) string {
	return url.Join(s.config.URL, session)
}

// TaskURL returns the task directory
func (s *Service) TaskURL(session string, task identity.TaskID) string {
	return url.Join(s.SessionURL(session), fmt.Sprintf("task-%d-%d", task.Slot, task.Seq))
}

// Setup creates the session directory
func (s *Service) Setup(ctx context.Context, session string) error {
	return s.ensure(ctx, s.SessionURL(session))
}

// Prepare creates the task directory and returns its URL
func (s *Service) Prepare(ctx context.Context, session string, task identity.TaskID) (string, error) {
	URL := s.TaskURL(session, task)
	if err := s.ensure(ctx, URL); err != nil {
		return "", err
	}
	return URL, nil
}

// Cleanup removes the task directory unless configured to keep it
func (s *Service) Cleanup(ctx context.Context, handle string) error {
	if s.config.Keep || handle == "" {
		return nil
	}
	return s.remove(ctx, handle)
}

// Teardown removes the session directory
func (s *Service) Teardown(ctx context.Context, session string) error {
	if s.config.Keep {
		return nil
	}
	return s.remove(ctx, s.SessionURL(session))
}

func (s *Service) ensure(ctx context.Context, URL string) error {
	ok, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to check %v: %w", URL, err)
	}
	if ok {
		return nil
	}
	if err = s.fs.Create(ctx, URL, file.DefaultDirOsMode, true); err != nil {
		return fmt.Errorf("failed to create %v: %w", URL, err)
	}
	return nil
}

func (s *Service) remove(ctx context.Context, URL string) error {
	ok, err := s.fs.Exists(ctx, URL)
	if err != nil || !ok {
		return err
	}
	if err = s.fs.Delete(ctx, URL); err != nil {
		return fmt.Errorf("failed to remove %v: %w", URL, err)
	}
	return nil
}

var (
	_ environment.Environment = (*Service)(nil)
	_ environment.Teardown    = (*Service)(nil)
)
