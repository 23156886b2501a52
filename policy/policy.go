package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Execution modes
const (
	ModeAsk  = "ask"  // consult Ask before every spawn
	ModeAuto = "auto" // run whatever passes the lists (default)
	ModeDeny = "deny" // refuse every spawn
)

// ErrDenied is returned for a function the policy refuses to run
var ErrDenied = errors.New("policy: function denied")

// AskFunc approves or rejects a single spawn of function ("service.method")
type AskFunc func(ctx context.Context, function string, args json.RawMessage, p *Policy) bool

// Policy filters spawned functions. A nil *Policy allows everything.
type Policy struct {
	Mode      string
	AllowList []string
	BlockList []string
	Ask       AskFunc
}

// Config is the serialisable part of a Policy
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty"`
}

// FromConfig builds a policy without an AskFunc; nil config yields nil policy.
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:      c.Mode,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// Validate checks the mode
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	switch strings.ToLower(c.Mode) {
	case "", ModeAuto, ModeDeny, ModeAsk:
		return nil
	}
	return fmt.Errorf("policy: unsupported mode %q", c.Mode)
}

// IsAllowed evaluates the lists only. Entries match the function name
// case-insensitively; an entry ending with ".*" matches every method of a service.
func (p *Policy) IsAllowed(function string) bool {
	if p == nil {
		return true
	}
	for _, pattern := range p.BlockList {
		if match(pattern, function) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, pattern := range p.AllowList {
		if match(pattern, function) {
			return true
		}
	}
	return false
}

// Check returns ErrDenied when function must not run
func (p *Policy) Check(ctx context.Context, function string, args json.RawMessage) error {
	if p == nil {
		return nil
	}
	if !p.IsAllowed(function) {
		return fmt.Errorf("%w: %s is not allowed", ErrDenied, function)
	}
	switch strings.ToLower(p.Mode) {
	case ModeDeny:
		return fmt.Errorf("%w: %s", ErrDenied, function)
	case ModeAsk:
		if p.Ask == nil || !p.Ask(ctx, function, args, p) {
			return fmt.Errorf("%w: %s was rejected", ErrDenied, function)
		}
	}
	return nil
}

func match(pattern, function string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	function = strings.ToLower(function)
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(function, prefix+".")
	}
	return pattern == function
}
