package spawnvm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/viant/afs"
	"github.com/viant/spawnvm/extension"
	"github.com/viant/spawnvm/internal/logging"
	"github.com/viant/spawnvm/model/types"
	"github.com/viant/spawnvm/policy"
	"github.com/viant/spawnvm/service/action/nop"
	"github.com/viant/spawnvm/service/action/printer"
	"github.com/viant/spawnvm/service/action/system/exec"
	"github.com/viant/spawnvm/service/action/system/storage"
	"github.com/viant/spawnvm/service/environment"
	"github.com/viant/spawnvm/service/environment/workdir"
	"github.com/viant/spawnvm/service/spawner"
	"github.com/viant/spawnvm/service/transport"
	"github.com/viant/spawnvm/service/transport/fs"
	"github.com/viant/spawnvm/service/transport/memory"
	"github.com/viant/spawnvm/service/worker"
	"github.com/viant/spawnvm/tracing"
)

// App is the application run on the coordinator
type App func(ctx context.Context, spawner *spawner.Service) error

// Service is one participant of a pool
type Service struct {
	config      *Config
	transport   transport.Transport
	services    []types.Service
	functions   *extension.Functions
	environment environment.Environment
	policy      *policy.Policy
	logger      *slog.Logger
	fs          afs.Service
	output      io.Writer
	tracing     *tracing.Config
	exec        *exec.Service
}

// New creates a participant
func New(options ...Option) (*Service, error) {
	ret := &Service{}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) init() error {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	config := *s.config
	s.config = &config
	if s.transport != nil {
		s.config.Transport.Rank = s.transport.Rank()
		s.config.Transport.Size = s.transport.Size()
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.logger == nil {
		s.logger = logging.New(s.config.Logging, os.Stderr)
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.policy == nil {
		s.policy = policy.FromConfig(s.config.Policy)
	}
	if s.environment == nil {
		s.environment = environment.Nop{}
		if s.config.Workdir.URL != "" {
			s.environment = workdir.New(s.fs, s.config.Workdir)
		}
	}
	tracingConfig := s.config.Tracing
	if s.tracing != nil {
		tracingConfig = *s.tracing
	}
	if err := tracing.Init(tracingConfig); err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}
	s.exec = exec.New()
	s.functions = extension.NewFunctions(nop.New(), printer.New(s.output), s.exec, storage.New(s.fs))
	for _, service := range s.services {
		s.functions.Register(service)
	}
	return nil
}

// Functions returns the function registry
func (s *Service) Functions() *extension.Functions {
	return s.functions
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

func (s *Service) ensureTransport(ctx context.Context) (transport.Transport, error) {
	if s.transport != nil {
		return s.transport, nil
	}
	switch strings.ToLower(s.config.Transport.Kind) {
	case TransportFS:
		t, err := fs.New(ctx, s.fs, s.config.FSConfig())
		if err != nil {
			return nil, err
		}
		s.transport = t
	default:
		if s.config.Transport.Size != 1 {
			return nil, fmt.Errorf("memory transport needs Launch for size %d", s.config.Transport.Size)
		}
		world, err := memory.NewWorld(1, memory.Config{MailboxCapacity: s.config.Transport.MailboxCapacity})
		if err != nil {
			return nil, err
		}
		if s.transport, err = world.Endpoint(0); err != nil {
			return nil, err
		}
	}
	return s.transport, nil
}

// Run starts the participant: rank 0 runs app as coordinator, other ranks serve tasks
func (s *Service) Run(ctx context.Context, app App) error {
	t, err := s.ensureTransport(ctx)
	if err != nil {
		return err
	}
	if t.Rank() == 0 {
		return s.RunAsCoordinator(ctx, app)
	}
	return s.RunAsWorker(ctx)
}

// RunAsCoordinator discovers the pool, runs app and always finalizes
func (s *Service) RunAsCoordinator(ctx context.Context, app App) (err error) {
	t, err := s.ensureTransport(ctx)
	if err != nil {
		return err
	}
	sp, err := spawner.New(t, spawner.WithLogger(s.logger))
	if err != nil {
		return err
	}
	defer func() {
		if fErr := sp.Finalize(context.WithoutCancel(ctx)); fErr != nil && !errors.Is(fErr, spawner.ErrFinalized) {
			err = errors.Join(err, fErr)
		}
	}()
	if err = sp.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize pool: %w", err)
	}
	s.logger.Info("pool ready", "session", sp.Session(), "slots", len(sp.FreeSlots()), "hosts", len(sp.Hosts()))
	if app == nil {
		return nil
	}
	return app(ctx, sp)
}

// RunAsWorker serves tasks until the coordinator finalizes
func (s *Service) RunAsWorker(ctx context.Context) error {
	t, err := s.ensureTransport(ctx)
	if err != nil {
		return err
	}
	srv, err := worker.New(t,
		worker.WithFunctions(s.functions),
		worker.WithEnvironment(s.environment),
		worker.WithPolicy(s.policy),
		worker.WithLogger(s.logger),
		worker.WithLevel(s.config.Worker.DebugLevel))
	if err != nil {
		return err
	}
	defer func() {
		if cErr := s.exec.Close(context.WithoutCancel(ctx)); cErr != nil {
			s.logger.Warn("failed to close shells", "error", cErr)
		}
	}()
	return srv.Run(ctx)
}

// Launch runs a pool of size participants as goroutines over the memory
// transport; every participant is built from options.
func Launch(ctx context.Context, size int, app App, options ...Option) error {
	world, err := memory.NewWorld(size, memory.DefaultConfig())
	if err != nil {
		return err
	}
	participants := make([]*Service, 0, size)
	for rank := 0; rank < size; rank++ {
		endpoint, err := world.Endpoint(rank)
		if err != nil {
			return err
		}
		participant, err := New(append(append([]Option{}, options...), WithTransport(endpoint))...)
		if err != nil {
			return err
		}
		participants = append(participants, participant)
	}
	p := pool.New().WithErrors().WithContext(ctx)
	for _, participant := range participants {
		p.Go(func(ctx context.Context) error {
			return participant.Run(ctx, app)
		})
	}
	return p.Wait()
}
