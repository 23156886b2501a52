package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/spawnvm"
	"github.com/viant/spawnvm/internal/logging"
	"github.com/viant/spawnvm/model/identity"
	"github.com/viant/spawnvm/runtime/correlation"
	"github.com/viant/spawnvm/service/action/system/exec"
)

func result(t *testing.T, output *exec.Output) json.RawMessage {
	data, err := json.Marshal(output)
	require.NoError(t, err)
	return data
}

func TestReport(t *testing.T) {
	testCases := []struct {
		description string
		outcomes    []correlation.Outcome
		expect      string
		expectErr   bool
	}{
		{
			description: "sorted by slot",
			outcomes: []correlation.Outcome{
				{Task: identity.NewTaskID(2, 2), Success: true, Result: result(t, &exec.Output{Host: "b", Stdout: "two"})},
				{Task: identity.NewTaskID(1, 1), Success: true, Result: result(t, &exec.Output{Host: "a", Stdout: "one"})},
			},
			expect: "[1:1 a] one\n[2:2 b] two\n",
		},
		{
			description: "failed task",
			outcomes: []correlation.Outcome{
				{Task: identity.NewTaskID(1, 1), Error: "boom"},
			},
			expect:    "[1:1] error: boom\n",
			expectErr: true,
		},
		{
			description: "non zero status",
			outcomes: []correlation.Outcome{
				{Task: identity.NewTaskID(1, 1), Success: true, Result: result(t, &exec.Output{Host: "a", Status: 2, Stderr: "not found\n"})},
			},
			expect:    "[1:1 a] not found\n",
			expectErr: true,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			buf := &bytes.Buffer{}
			err := report(buf, testCase.outcomes)
			assert.Equal(t, testCase.expectErr, err != nil)
			assert.Equal(t, testCase.expect, buf.String())
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("logging.level", "DEBUG")
	viper.Set("transport.rank", 3)
	viper.Set("transport.size", 4)
	viper.Set("transport.url", "/tmp/pool")
	viper.Set("transport.session", "run-7")

	config := spawnvm.DefaultConfig()
	applyOverrides(config)
	assert.Equal(t, logging.LevelDebug, config.Logging.Level)
	assert.Equal(t, 3, config.Transport.Rank)
	assert.Equal(t, 4, config.Transport.Size)
	assert.Equal(t, "/tmp/pool", config.Transport.URL)
	assert.Equal(t, "run-7", config.FSConfig().Session)
	assert.Equal(t, logging.LevelInfo, config.Worker.DebugLevel)
}

func TestExecApp(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	config := spawnvm.DefaultConfig()
	config.Logging.Level = logging.LevelError
	buf := &bytes.Buffer{}
	err := spawnvm.Launch(ctx, 3, execApp("echo hello", 5*time.Second, buf), spawnvm.WithConfig(config))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "[1:")
	assert.Contains(t, buf.String(), "[2:")
	assert.Contains(t, buf.String(), "hello")
}
