package spawnvm

import (
	"io"
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/spawnvm/model/types"
	"github.com/viant/spawnvm/policy"
	"github.com/viant/spawnvm/service/environment"
	"github.com/viant/spawnvm/service/transport"
	"github.com/viant/spawnvm/tracing"
)

// Option customises the service
type Option func(s *Service)

// WithConfig sets the configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithTransport sets a ready transport, overriding the configured one
func WithTransport(t transport.Transport) Option {
	return func(s *Service) {
		s.transport = t
	}
}

// WithFunctions registers services whose methods can be spawned
func WithFunctions(services ...types.Service) Option {
	return func(s *Service) {
		s.services = append(s.services, services...)
	}
}

// WithEnvironment sets worker session and task hooks
func WithEnvironment(env environment.Environment) Option {
	return func(s *Service) {
		s.environment = env
	}
}

// WithPolicy sets the worker function filter
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFileSystem sets the afs service used by the fs transport and the workdir environment
func WithFileSystem(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithOutput sets where the printer function writes
func WithOutput(w io.Writer) Option {
	return func(s *Service) {
		s.output = w
	}
}

// WithTracing enables OpenTelemetry tracing with the stdout exporter
func WithTracing(config tracing.Config) Option {
	return func(s *Service) {
		s.tracing = &config
	}
}
