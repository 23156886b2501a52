package spawner

import (
	"log/slog"

	"github.com/viant/spawnvm/model/identity"
	"github.com/viant/spawnvm/progress"
	"github.com/viant/spawnvm/runtime/correlation"
)

// Option customises the spawner
type Option func(s *Service)

// WithLogger sets the logger; forwarded worker lines are written to it too
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSession sets the session id sent with every spawn
func WithSession(session string) Option {
	return func(s *Service) {
		s.session = session
	}
}

// WithProgress sets the counters updated on spawn, result and exit
func WithProgress(p *progress.Progress) Option {
	return func(s *Service) {
		s.progress = p
	}
}

// SpawnOption customises a single Spawn call
type SpawnOption func(o *spawnOptions)

type spawnOptions struct {
	count    int
	hosts    []identity.HostID
	sendBack bool
}

func newSpawnOptions(options []SpawnOption) *spawnOptions {
	ret := &spawnOptions{count: 1, sendBack: true}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// WithCount sets how many copies to start
func WithCount(count int) SpawnOption {
	return func(o *spawnOptions) {
		o.count = count
	}
}

// WithHosts restricts placement to hosts
func WithHosts(hosts ...identity.HostID) SpawnOption {
	return func(o *spawnOptions) {
		o.hosts = append(o.hosts, hosts...)
	}
}

// WithReply controls whether tasks send their return value back
func WithReply(sendBack bool) SpawnOption {
	return func(o *spawnOptions) {
		o.sendBack = sendBack
	}
}

// GatherOption customises a single Gather call
type GatherOption func(o *gatherOptions)

type gatherOptions struct {
	mode string
}

func newGatherOptions(options []GatherOption) *gatherOptions {
	ret := &gatherOptions{mode: correlation.ModeAll}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// WithMode sets when Gather returns: correlation.ModeAll (default),
// correlation.ModeFirst or correlation.ModeAnyError
func WithMode(mode string) GatherOption {
	return func(o *gatherOptions) {
		o.mode = mode
	}
}
