package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "spans.json")
	require.NoError(t, Init(Config{}))
	require.NoError(t, Init(Config{Enabled: true, ServiceName: "spawnvm-test", OutputFile: fname}))

	ctx, parent := StartSpan(context.Background(), "spawn", KindProducer)
	parent.WithAttributes(map[string]string{"function": "nop.nop"}).WithInt("count", 2)
	_, child := StartSpan(ctx, "send", KindInternal)
	child.End(errors.New("send failed"))
	parent.End(nil)

	var nilSpan *Span
	nilSpan.End(nil)

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Contains(t, string(data), "spawn")
	assert.Contains(t, string(data), "send failed")
	assert.NoError(t, Shutdown(context.Background()))
}
