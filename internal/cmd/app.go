package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/viant/spawnvm"
	"github.com/viant/spawnvm/runtime/correlation"
	"github.com/viant/spawnvm/service/action/system/exec"
	"github.com/viant/spawnvm/service/spawner"
)

// execApp runs command on every free slot and prints one line per task
func execApp(command string, timeout time.Duration, w io.Writer) spawnvm.App {
	return func(ctx context.Context, sp *spawner.Service) error {
		free := sp.FreeSlots()
		if len(free) == 0 {
			return fmt.Errorf("no worker slots available")
		}
		ids, err := sp.Spawn(ctx, exec.Name+".execute", &exec.Input{Commands: []string{command}}, spawner.WithCount(len(free)))
		if err != nil {
			return err
		}
		outcomes, err := sp.Gather(ctx, ids, timeout)
		if err != nil {
			return err
		}
		return report(w, outcomes)
	}
}

func report(w io.Writer, outcomes []correlation.Outcome) error {
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Task.Slot < outcomes[j].Task.Slot })
	var failed int
	for _, outcome := range outcomes {
		if !outcome.Success {
			failed++
			fmt.Fprintf(w, "[%v] error: %v\n", outcome.Task, outcome.Error)
			continue
		}
		output := &exec.Output{}
		if err := json.Unmarshal(outcome.Result, output); err != nil {
			return fmt.Errorf("invalid result of task %v: %w", outcome.Task, err)
		}
		text := output.Stdout
		if output.Status != 0 {
			failed++
			text = strings.TrimSpace(output.Stderr)
		}
		fmt.Fprintf(w, "[%v %v] %v\n", outcome.Task, output.Host, text)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(outcomes))
	}
	return nil
}
