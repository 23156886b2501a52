// Package correlation tracks a batch of spawned tasks until the batch
// reaches its rendez-vous condition.
package correlation

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/viant/spawnvm/internal/clock"
	"github.com/viant/spawnvm/model/identity"
)

// Completion modes
const (
	ModeAll      = "all"      // every task exited
	ModeFirst    = "first"    // any task exited
	ModeAnyError = "anyerror" // any task failed, or every task exited
)

// Outcome is what a group knows about one task
type Outcome struct {
	Task     identity.TaskID `json:"task"`
	Reported bool            `json:"reported"`
	Success  bool            `json:"success"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Exited   bool            `json:"exited"`
}

// Group is a rendez-vous for a set of tasks
type Group struct {
	ID   string
	Mode string

	mu       sync.Mutex
	order    []identity.TaskID
	outcomes map[identity.TaskID]*Outcome
	exited   int
	failed   int
	DoneAt   *time.Time
}

// NewGroup creates a group expecting tasks
func NewGroup(id, mode string, tasks []identity.TaskID) *Group {
	ret := &Group{ID: id, Mode: strings.ToLower(mode), outcomes: make(map[identity.TaskID]*Outcome, len(tasks))}
	for _, task := range tasks {
		if _, ok := ret.outcomes[task]; ok {
			continue
		}
		ret.order = append(ret.order, task)
		ret.outcomes[task] = &Outcome{Task: task}
	}
	if len(ret.order) == 0 {
		ret.markDone()
	}
	return ret
}

// Contains returns true when task belongs to the group
func (g *Group) Contains(task identity.TaskID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.outcomes[task]
	return ok
}

// MarkResult records a return value and reports whether the group completed
func (g *Group) MarkResult(task identity.TaskID, success bool, result json.RawMessage, errText string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	outcome, ok := g.outcomes[task]
	if !ok || outcome.Reported {
		return false
	}
	outcome.Reported = true
	outcome.Success = success
	outcome.Result = result
	outcome.Error = errText
	if !success {
		g.failed++
	}
	return g.evaluate(!success, false)
}

// MarkExit records a task exit and reports whether the group completed
func (g *Group) MarkExit(task identity.TaskID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	outcome, ok := g.outcomes[task]
	if !ok || outcome.Exited {
		return false
	}
	outcome.Exited = true
	g.exited++
	return g.evaluate(false, true)
}

func (g *Group) evaluate(failed, exited bool) bool {
	if g.DoneAt != nil {
		return false
	}
	complete := g.exited >= len(g.order)
	switch g.Mode {
	case ModeFirst:
		complete = complete || exited
	case ModeAnyError:
		complete = complete || failed
	}
	if complete {
		g.markDone()
	}
	return complete
}

func (g *Group) markDone() {
	now := clock.Now()
	g.DoneAt = &now
}

// Done returns whether the group completed
func (g *Group) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.DoneAt != nil
}

// Failed returns true when at least one task reported failure
func (g *Group) Failed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failed > 0
}

// Pending returns tasks that have not exited yet
func (g *Group) Pending() []identity.TaskID {
	g.mu.Lock()
	defer g.mu.Unlock()
	var result []identity.TaskID
	for _, task := range g.order {
		if !g.outcomes[task].Exited {
			result = append(result, task)
		}
	}
	return result
}

// Outcomes returns a copy of every outcome in spawn order
func (g *Group) Outcomes() []Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	result := make([]Outcome, 0, len(g.order))
	for _, task := range g.order {
		result = append(result, *g.outcomes[task])
	}
	return result
}
