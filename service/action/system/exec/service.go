package exec

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	"github.com/viant/spawnvm/internal/hostinfo"
	"github.com/viant/spawnvm/runtime/task"
)

// Service runs shell commands through local gosh shells, one per session and environment
type Service struct {
	shells map[string]*gosh.Service
	mux    sync.Mutex
}

// New creates a new Service instance
func New() *Service {
	return &Service{shells: make(map[string]*gosh.Service)}
}

// Execute runs input commands sequentially
func (s *Service) Execute(ctx context.Context, input *Input, output *Output) error {
	session, handle := "", ""
	if taskContext := task.FromContext(ctx); taskContext != nil {
		session, handle = taskContext.Session, taskContext.Handle
		taskContext.Logger.Debug("executing commands", "count", len(input.Commands))
	}
	shell, err := s.shell(ctx, session, input.Env)
	if err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}
	if workdir := input.ResolveWorkdir(handle); workdir != "" {
		if _, _, err = shell.Run(ctx, "cd "+workdir); err != nil {
			return fmt.Errorf("failed to change directory: %w", err)
		}
	}
	output.Host = hostinfo.Discover().HostName
	var stdout, stderr strings.Builder
	timeout := input.Timeout()
	for _, cmd := range input.Commands {
		command := s.run(ctx, shell, cmd, timeout)
		output.Commands = append(output.Commands, command)
		appendLine(&stdout, command.Output)
		appendLine(&stderr, command.Stderr)
		output.Status = command.Status
		if command.Status != 0 && input.ShouldAbort() {
			break
		}
	}
	output.Stdout = strings.TrimSpace(stdout.String())
	output.Stderr = strings.TrimSpace(stderr.String())
	return ctx.Err()
}

func appendLine(builder *strings.Builder, text string) {
	if text == "" {
		return
	}
	builder.WriteString(text)
	builder.WriteString("\n")
}

func (s *Service) run(ctx context.Context, shell *gosh.Service, cmd string, timeout time.Duration) *Command {
	started := time.Now()
	stdout, status, err := shell.Run(ctx, cmd, runner.WithTimeout(int(timeout.Milliseconds())))
	if elapsed := time.Since(started); elapsed > timeout && err == nil {
		err = fmt.Errorf("command %v timed out after: %s", cmd, elapsed)
	}
	command := &Command{Input: cmd, Status: status}
	if status == 0 && err == nil {
		command.Output = stdout
		return command
	}
	if stdout == "" && err != nil {
		stdout = err.Error()
	}
	if status == 0 {
		command.Status = -1
	}
	command.Stderr = stdout
	return command
}

func (s *Service) shell(ctx context.Context, session string, env map[string]string) (*gosh.Service, error) {
	key := shellKey(session, env)
	s.mux.Lock()
	defer s.mux.Unlock()
	if shell, ok := s.shells[key]; ok {
		return shell, nil
	}
	var options []runner.Option
	if len(env) > 0 {
		options = append(options, runner.WithEnvironment(env))
	}
	shell, err := gosh.New(ctx, local.New(options...))
	if err != nil {
		return nil, err
	}
	s.shells[key] = shell
	return shell, nil
}

func shellKey(session string, env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var builder strings.Builder
	builder.WriteString(session)
	for _, k := range keys {
		builder.WriteString("|" + k + "=" + env[k])
	}
	return builder.String()
}

// Close releases all shells
func (s *Service) Close(ctx context.Context) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	var errs []string
	for key, shell := range s.shells {
		if err := shell.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("failed to close shell %q: %v", key, err))
		}
	}
	s.shells = make(map[string]*gosh.Service)
	if len(errs) > 0 {
		return fmt.Errorf("errors closing shells: %s", strings.Join(errs, "; "))
	}
	return nil
}
