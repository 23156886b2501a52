package worker

import (
	"log/slog"

	"github.com/viant/spawnvm/extension"
	"github.com/viant/spawnvm/internal/logging"
	"github.com/viant/spawnvm/policy"
	"github.com/viant/spawnvm/service/environment"
)

// Option customises the worker
type Option func(s *Service)

// WithFunctions sets functions the worker can run
func WithFunctions(functions *extension.Functions) Option {
	return func(s *Service) {
		s.functions = functions
	}
}

// WithEnvironment sets session and task hooks
func WithEnvironment(env environment.Environment) Option {
	return func(s *Service) {
		s.environment = env
	}
}

// WithPolicy sets the function filter
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithLogger sets the local logger used when lines cannot be forwarded
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.local = logger
	}
}

// WithLevel sets the initial forwarding level (DEBUG, INFO, WARN, ERROR)
func WithLevel(level string) Option {
	return func(s *Service) {
		s.level.Set(logging.ParseLevel(level))
	}
}
