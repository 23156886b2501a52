package fs

import (
	"fmt"
	"strings"
	"time"

	"github.com/viant/afs/url"
)

// Config holds configuration for the directory transport
type Config struct {
	URL          string        // base URL shared by every participant
	Session      string        // optional run name; inboxes are created under URL/Session
	Rank         int           // this participant's address
	Size         int           // number of participants
	PollInterval time.Duration // wait between inbox scans when change notification is unavailable
}

// DefaultConfig returns a default transport configuration
func DefaultConfig() Config {
	return Config{
		URL:          "/tmp/spawnvm/world",
		PollInterval: 20 * time.Millisecond,
	}
}

// Validate checks configuration
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}
	if c.Size <= 0 {
		return fmt.Errorf("size must be > 0, got %d", c.Size)
	}
	if c.Rank < 0 || c.Rank >= c.Size {
		return fmt.Errorf("rank %d out of range for size %d", c.Rank, c.Size)
	}
	if strings.ContainsAny(c.Session, "/\\") {
		return fmt.Errorf("session %q cannot contain path separators", c.Session)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultConfig().PollInterval
	}
	return nil
}

func (c *Config) baseURL() string {
	if c.Session == "" {
		return c.URL
	}
	return url.Join(c.URL, c.Session)
}
