package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/spawnvm/internal/clock"
)

// Delta is a signed counter change
type Delta struct {
	Spawned   int
	Running   int
	Completed int
	Failed    int
}

// Progress keeps session counters; it is safe for concurrent use.
type Progress struct {
	Session   string
	StartedAt time.Time

	SpawnedTasks   int
	RunningTasks   int
	CompletedTasks int
	FailedTasks    int

	sync.Mutex
	onChange func(Progress)
}

// New creates a tracker for session
func New(session string, onChange func(Progress)) *Progress {
	return &Progress{Session: session, StartedAt: clock.Now(), onChange: onChange}
}

// Update applies d and notifies the change callback outside the lock
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.Lock()
	p.SpawnedTasks += d.Spawned
	p.RunningTasks += d.Running
	p.CompletedTasks += d.Completed
	p.FailedTasks += d.Failed
	snapshot := p.copy()
	cb := p.onChange
	p.Unlock()
	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a read-only copy
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.Lock()
	defer p.Unlock()
	return p.copy()
}

// OnChange replaces the change callback; nil disables it.
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.Lock()
	p.onChange = cb
	p.Unlock()
}

func (p *Progress) copy() Progress {
	return Progress{
		Session:        p.Session,
		StartedAt:      p.StartedAt,
		SpawnedTasks:   p.SpawnedTasks,
		RunningTasks:   p.RunningTasks,
		CompletedTasks: p.CompletedTasks,
		FailedTasks:    p.FailedTasks,
	}
}

type trackerKey struct{}

// WithTracker embeds p in ctx
func WithTracker(ctx context.Context, p *Progress) context.Context {
	return context.WithValue(ctx, trackerKey{}, p)
}

// FromContext extracts the tracker from ctx
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(trackerKey{}).(*Progress)
	return p, ok
}
