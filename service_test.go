package spawnvm_test

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	_ "github.com/viant/afs/mem"
	"github.com/viant/spawnvm"
	"github.com/viant/spawnvm/internal/logging"
	"github.com/viant/spawnvm/model/types"
	"github.com/viant/spawnvm/policy"
	"github.com/viant/spawnvm/service/environment/workdir"
	"github.com/viant/spawnvm/service/multiplexer"
	"github.com/viant/spawnvm/service/spawner"
	"github.com/viant/spawnvm/service/transport/memory"
)

type syncBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

func TestLaunch(t *testing.T) {
	output := &syncBuffer{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fs := afs.New()
	config := spawnvm.DefaultConfig()
	config.Workdir = workdir.Config{URL: "mem://localhost/spawnvm/launch"}
	config.Logging = logging.Config{Level: logging.LevelError}

	var outcomesCount int
	err := spawnvm.Launch(ctx, 4, func(ctx context.Context, sp *spawner.Service) error {
		ids, err := sp.Spawn(ctx, "printer.print", map[string]string{"message": "hello"}, spawner.WithCount(3))
		if err != nil {
			return err
		}
		outcomes, err := sp.Gather(ctx, ids, 5*time.Second)
		if err != nil {
			return err
		}
		for _, outcome := range outcomes {
			if outcome.Success && strings.Contains(string(outcome.Result), "hello") {
				outcomesCount++
			}
		}
		return nil
	}, spawnvm.WithConfig(config), spawnvm.WithFileSystem(fs), spawnvm.WithOutput(output))

	require.NoError(t, err)
	assert.Equal(t, 3, outcomesCount)
	assert.Equal(t, 3, strings.Count(output.String(), "hello\n"))
}

func TestLaunch_Policy(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var event *multiplexer.Event
	err := spawnvm.Launch(ctx, 2, func(ctx context.Context, sp *spawner.Service) error {
		if _, err := sp.Spawn(ctx, "system/exec.execute", map[string]interface{}{"commands": []string{"echo hi"}}); err != nil {
			return err
		}
		var err error
		event, err = sp.Receive(ctx, 5*time.Second)
		return err
	}, spawnvm.WithPolicy(&policy.Policy{BlockList: []string{"system/exec.*"}}), spawnvm.WithLogger(logging.Discard()))

	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, multiplexer.KindResult, event.Kind)
	assert.False(t, event.Success)
	assert.Contains(t, event.Error, "denied")
}

type sleeper struct{}

func (s *sleeper) Name() string { return "sleeper" }

func (s *sleeper) Methods() types.Signatures {
	return types.Signatures{{Name: "sleep", Input: reflect.TypeOf(&struct{}{}), Output: reflect.TypeOf(&struct{}{})}}
}

func (s *sleeper) Method(name string) (types.Executable, error) {
	if name != "sleep" {
		return nil, types.NewMethodNotFoundError(name)
	}
	return func(ctx context.Context, in, out interface{}) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}, nil
}

func TestLaunch_FinalizeWithRunningTasks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var launched int
	err := spawnvm.Launch(ctx, 3, func(ctx context.Context, sp *spawner.Service) error {
		ids, err := sp.Spawn(ctx, "sleeper.sleep", nil, spawner.WithCount(2))
		launched = len(ids)
		return err
	}, spawnvm.WithFunctions(&sleeper{}), spawnvm.WithLogger(logging.Discard()))
	require.NoError(t, err)
	assert.Equal(t, 2, launched)
}

func TestService_RunAsCoordinatorOnWorker(t *testing.T) {
	world, err := memory.NewWorld(2, memory.DefaultConfig())
	require.NoError(t, err)
	endpoint, _ := world.Endpoint(1)
	srv, err := spawnvm.New(spawnvm.WithTransport(endpoint), spawnvm.WithLogger(logging.Discard()))
	require.NoError(t, err)
	assert.Error(t, srv.RunAsCoordinator(context.Background(), nil))
	assert.Contains(t, srv.Functions().Refs(), "system/exec.execute")
	assert.Equal(t, 1, srv.Config().Transport.Rank)
}

func TestService_SingleParticipant(t *testing.T) {
	srv, err := spawnvm.New(spawnvm.WithLogger(logging.Discard()))
	require.NoError(t, err)
	var free []int
	err = srv.Run(context.Background(), func(ctx context.Context, sp *spawner.Service) error {
		free = sp.FreeSlots()
		ids, err := sp.Spawn(ctx, "nop.nop", nil)
		assert.Empty(t, ids)
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, free)
}

func TestLoadConfig(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	URL := "mem://localhost/spawnvm/config.yaml"
	t.Setenv("SPAWNVM_TEST_WORKDIR", "mem://localhost/spawnvm/work")
	require.NoError(t, fs.Upload(ctx, URL, 0644, strings.NewReader(`
transport:
  kind: fs
  url: mem://localhost/spawnvm/world
  session: nightly
  rank: 2
  size: 4
  pollIntervalMs: 5
worker:
  debugLevel: DEBUG
workdir:
  url: ${env.SPAWNVM_TEST_WORKDIR}
policy:
  mode: auto
  block:
    - system/exec.*
logging:
  level: WARN
  format: json
`)))
	config, err := spawnvm.LoadConfig(ctx, fs, URL)
	require.NoError(t, err)
	assert.Equal(t, spawnvm.TransportFS, config.Transport.Kind)
	assert.Equal(t, 2, config.Transport.Rank)
	assert.Equal(t, "nightly", config.FSConfig().Session)
	assert.Equal(t, 5*time.Millisecond, config.FSConfig().PollInterval)
	assert.Equal(t, "DEBUG", config.Worker.DebugLevel)
	assert.Equal(t, []string{"system/exec.*"}, config.Policy.BlockList)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, "mem://localhost/spawnvm/work", config.Workdir.URL)

	require.NoError(t, fs.Upload(ctx, URL, 0644, strings.NewReader("transport:\n  rank: 3\n  size: 2\n")))
	_, err = spawnvm.LoadConfig(ctx, fs, URL)
	assert.Error(t, err)
}
