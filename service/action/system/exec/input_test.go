package exec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInput(t *testing.T) {
	no := false
	testCases := []struct {
		description   string
		input         *Input
		handle        string
		expectWorkdir string
		expectTimeout time.Duration
		expectAbort   bool
	}{
		{description: "defaults", input: &Input{}, expectTimeout: time.Minute, expectAbort: true},
		{description: "explicit workdir wins", input: &Input{Workdir: "/opt", TimeoutMs: 250}, handle: "file:///tmp/x", expectWorkdir: "/opt", expectTimeout: 250 * time.Millisecond, expectAbort: true},
		{description: "file handle", input: &Input{AbortOnError: &no}, handle: "file:///tmp/spawnvm/work/s/task-1-1", expectWorkdir: "/tmp/spawnvm/work/s/task-1-1", expectTimeout: time.Minute},
		{description: "remote handle ignored", input: &Input{}, handle: "mem://localhost/work", expectTimeout: time.Minute, expectAbort: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			assert.Equal(t, testCase.expectWorkdir, testCase.input.ResolveWorkdir(testCase.handle))
			assert.Equal(t, testCase.expectTimeout, testCase.input.Timeout())
			assert.Equal(t, testCase.expectAbort, testCase.input.ShouldAbort())
		})
	}
}

func TestShellKey(t *testing.T) {
	assert.Equal(t, shellKey("s", map[string]string{"B": "2", "A": "1"}), shellKey("s", map[string]string{"A": "1", "B": "2"}))
	assert.NotEqual(t, shellKey("s1", nil), shellKey("s2", nil))
}
