package exec

import (
	"time"

	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

const defaultTimeout = time.Minute

// Input represents commands to run on the worker host
type Input struct {
	Workdir      string            `json:"workdir,omitempty" description:"directory where commands start; defaults to the task scratch directory"`
	Env          map[string]string `json:"env,omitempty" description:"environment variables set before commands run"`
	Commands     []string          `json:"commands,omitempty" description:"commands to execute, each one an independent shell invocation"`
	TimeoutMs    int               `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty" description:"max wait time per command"`
	AbortOnError *bool             `json:"abortOnError,omitempty" description:"stop at the first command with non zero status"`
}

// Timeout returns the per command timeout
func (i *Input) Timeout() time.Duration {
	if i.TimeoutMs <= 0 {
		return defaultTimeout
	}
	return time.Duration(i.TimeoutMs) * time.Millisecond
}

// ShouldAbort returns whether a failing command stops the batch (default true)
func (i *Input) ShouldAbort() bool {
	return i.AbortOnError == nil || *i.AbortOnError
}

// ResolveWorkdir returns Workdir, or the local path of handle when it is a file URL
func (i *Input) ResolveWorkdir(handle string) string {
	if i.Workdir != "" {
		return i.Workdir
	}
	if handle == "" || url.Scheme(handle, file.Scheme) != file.Scheme {
		return ""
	}
	return url.Path(handle)
}
