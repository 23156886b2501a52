package spawnvm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/spawnvm/internal/envexpr"
	"github.com/viant/spawnvm/internal/logging"
	"github.com/viant/spawnvm/policy"
	"github.com/viant/spawnvm/service/environment/workdir"
	"github.com/viant/spawnvm/service/transport/fs"
	"github.com/viant/spawnvm/service/transport/memory"
	"github.com/viant/spawnvm/tracing"
	"gopkg.in/yaml.v3"
)

// Transport kinds
const (
	TransportMemory = "memory"
	TransportFS     = "fs"
)

// Config is a serialisable representation of a participant configuration.
// It can be populated from YAML, JSON, flags or environment variables.
type Config struct {
	Transport TransportConfig `json:"transport" yaml:"transport"`
	Worker    WorkerConfig    `json:"worker" yaml:"worker"`
	Workdir   workdir.Config  `json:"workdir" yaml:"workdir"`
	Policy    *policy.Config  `json:"policy,omitempty" yaml:"policy,omitempty"`
	Logging   logging.Config  `json:"logging" yaml:"logging"`
	Tracing   tracing.Config  `json:"tracing" yaml:"tracing"`
}

// TransportConfig selects and configures the transport
type TransportConfig struct {
	Kind            string `json:"kind" yaml:"kind"`
	URL             string `json:"url,omitempty" yaml:"url,omitempty"`
	Session         string `json:"session,omitempty" yaml:"session,omitempty"`
	Rank            int    `json:"rank" yaml:"rank"`
	Size            int    `json:"size" yaml:"size"`
	PollIntervalMs  int    `json:"pollIntervalMs,omitempty" yaml:"pollIntervalMs,omitempty"`
	MailboxCapacity int    `json:"mailboxCapacity,omitempty" yaml:"mailboxCapacity,omitempty"`
}

// WorkerConfig controls worker participants
type WorkerConfig struct {
	// DebugLevel is the initial level at which log lines are forwarded to the coordinator
	DebugLevel string `json:"debugLevel" yaml:"debugLevel"`
}

// DefaultConfig returns defaults; the workdir environment is disabled until a URL is set.
func DefaultConfig() *Config {
	fsConfig := fs.DefaultConfig()
	return &Config{
		Transport: TransportConfig{
			Kind:            TransportMemory,
			URL:             fsConfig.URL,
			Size:            1,
			PollIntervalMs:  int(fsConfig.PollInterval / time.Millisecond),
			MailboxCapacity: memory.DefaultConfig().MailboxCapacity,
		},
		Worker:  WorkerConfig{DebugLevel: logging.LevelInfo},
		Workdir: workdir.Config{},
		Logging: logging.DefaultConfig(),
	}
}

// FSConfig returns the fs transport configuration
func (c *Config) FSConfig() fs.Config {
	ret := fs.DefaultConfig()
	ret.URL = c.Transport.URL
	ret.Session = c.Transport.Session
	ret.Rank = c.Transport.Rank
	ret.Size = c.Transport.Size
	if c.Transport.PollIntervalMs > 0 {
		ret.PollInterval = time.Duration(c.Transport.PollIntervalMs) * time.Millisecond
	}
	return ret
}

// Validate returns an error describing the first invalid setting
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch strings.ToLower(c.Transport.Kind) {
	case TransportMemory, "":
	case TransportFS:
		fsConfig := c.FSConfig()
		if err := fsConfig.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("transport.kind: unsupported %q", c.Transport.Kind)
	}
	if c.Transport.Size <= 0 {
		return fmt.Errorf("transport.size must be > 0")
	}
	if c.Transport.Rank < 0 || c.Transport.Rank >= c.Transport.Size {
		return fmt.Errorf("transport.rank %d out of range [0,%d)", c.Transport.Rank, c.Transport.Size)
	}
	return c.Policy.Validate()
}

// LoadConfig reads a YAML (or JSON) configuration from URL on any afs backend;
// ${env.KEY} references are expanded first.
func LoadConfig(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	if fs == nil {
		fs = afs.New()
	}
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	ret := DefaultConfig()
	if err = yaml.Unmarshal([]byte(envexpr.Expand(string(data))), ret); err != nil {
		return nil, fmt.Errorf("failed to decode config %v: %w", URL, err)
	}
	if err = ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}
