// Package fs implements a transport over a directory shared by every
// participant. Each rank owns an inbox directory; senders stage an encoded
// envelope and move it into the destination inbox so that receivers never
// observe partial writes. Any viant/afs backend works; local directories are
// watched with fsnotify, other backends are polled.
//
// Inboxes live under the configured Session when one is set. Without a
// Session every endpoint empties its inbox on start, so envelopes left by an
// earlier run are dropped; peers must then be started before rank 0 sends.
package fs

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/spawnvm/internal/clock"
	"github.com/viant/spawnvm/protocol"
	"github.com/viant/spawnvm/service/transport"
)

const stagingDir = ".staging"

// Transport implements transport.Transport on a shared directory
type Transport struct {
	fs       afs.Service
	config   Config
	inbox    string
	counter  atomic.Uint64
	mu       sync.Mutex
	ensured  map[int]bool
	ensureMu sync.Mutex
	wakeup   chan struct{}
	closed   chan struct{}
	once     sync.Once
	watcher  *fsnotify.Watcher
}

// New creates the endpoint for config.Rank and makes sure its inbox exists
func New(ctx context.Context, fs afs.Service, config Config) (*Transport, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ret := &Transport{
		fs:      fs,
		config:  config,
		inbox:   inboxURL(config.baseURL(), config.Rank),
		ensured: map[int]bool{},
		wakeup:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
	if err := ret.ensureInbox(ctx, config.Rank); err != nil {
		return nil, err
	}
	if config.Session == "" {
		if err := ret.purge(ctx); err != nil {
			return nil, err
		}
	}
	if url.Scheme(config.URL, file.Scheme) == file.Scheme {
		if err := ret.watch(url.Path(ret.inbox)); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func inboxURL(baseURL string, rank int) string {
	return url.Join(baseURL, fmt.Sprintf("rank-%d", rank))
}

// Rank returns endpoint address
func (t *Transport) Rank() int {
	return t.config.Rank
}

// Size returns number of participants
func (t *Transport) Size() int {
	return t.config.Size
}

// Send stages the envelope and publishes it into dest's inbox
func (t *Transport) Send(ctx context.Context, dest int, envelope *protocol.Envelope) error {
	if err := transport.ValidatePeer(dest, t.Size(), false); err != nil {
		return transport.NewError("send", t.Rank(), dest, err)
	}
	if t.isClosed() {
		return transport.NewError("send", t.Rank(), dest, transport.ErrClosed)
	}
	if err := t.ensureInbox(ctx, dest); err != nil {
		return transport.NewError("send", t.Rank(), dest, err)
	}
	msg := *envelope
	msg.Source = t.Rank()
	data, err := protocol.Marshal(&msg)
	if err != nil {
		return transport.NewError("send", t.Rank(), dest, err)
	}
	name := messageName(t.Rank(), t.counter.Add(1), clock.Now().UnixNano())
	destInbox := inboxURL(t.config.baseURL(), dest)
	// afs moves into a directory when source and target extensions differ
	staged := url.Join(destInbox, stagingDir, uuid.New().String()+messageExt)
	if err = t.fs.Upload(ctx, staged, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return transport.NewError("send", t.Rank(), dest, fmt.Errorf("failed to stage message: %w", err))
	}
	if err = t.fs.Move(ctx, staged, url.Join(destInbox, name)); err != nil {
		return transport.NewError("send", t.Rank(), dest, fmt.Errorf("failed to publish message: %w", err))
	}
	return nil
}

// Receive waits for an envelope from source
func (t *Transport) Receive(ctx context.Context, source int) (*protocol.Envelope, error) {
	for {
		envelope, ok, err := t.TryReceive(ctx, source)
		if err != nil || ok {
			return envelope, err
		}
		timer := time.NewTimer(t.config.PollInterval)
		select {
		case <-t.wakeup:
		case <-timer.C:
		case <-t.closed:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
		timer.Stop()
	}
}

// TryReceive scans the inbox once and takes the next envelope from source
func (t *Transport) TryReceive(ctx context.Context, source int) (*protocol.Envelope, bool, error) {
	if err := transport.ValidatePeer(source, t.Size(), true); err != nil {
		return nil, false, transport.NewError("probe", t.Rank(), source, err)
	}
	if t.isClosed() {
		return nil, false, transport.NewError("probe", t.Rank(), source, transport.ErrClosed)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	objects, err := t.fs.List(ctx, t.inbox)
	if err != nil {
		return nil, false, transport.NewError("probe", t.Rank(), source, fmt.Errorf("failed to list inbox: %w", err))
	}
	var names []string
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		names = append(names, object.Name())
	}
	name, ok := selectMessage(names, source)
	if !ok {
		return nil, false, nil
	}
	location := url.Join(t.inbox, name)
	data, err := t.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, false, transport.NewError("probe", t.Rank(), source, fmt.Errorf("failed to read message %s: %w", name, err))
	}
	if err = t.fs.Delete(ctx, location); err != nil {
		return nil, false, transport.NewError("probe", t.Rank(), source, fmt.Errorf("failed to remove message %s: %w", name, err))
	}
	envelope, err := protocol.Unmarshal(data)
	if err != nil {
		return nil, false, transport.NewError("probe", t.Rank(), source, err)
	}
	return envelope, true, nil
}

// Close stops the watcher; the inbox directory is left in place for inspection.
func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		if t.watcher != nil {
			err = t.watcher.Close()
		}
	})
	return err
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *Transport) ensureInbox(ctx context.Context, rank int) error {
	t.ensureMu.Lock()
	defer t.ensureMu.Unlock()
	if t.ensured[rank] {
		return nil
	}
	dir := url.Join(inboxURL(t.config.baseURL(), rank), stagingDir)
	exists, _ := t.fs.Exists(ctx, dir)
	if !exists {
		if err := t.fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	t.ensured[rank] = true
	return nil
}

// purge removes envelopes and staged leftovers from this endpoint's inbox
func (t *Transport) purge(ctx context.Context) error {
	for _, dir := range []string{t.inbox, url.Join(t.inbox, stagingDir)} {
		objects, err := t.fs.List(ctx, dir)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", dir, err)
		}
		for _, object := range objects {
			if object.IsDir() {
				continue
			}
			if err = t.fs.Delete(ctx, object.URL()); err != nil {
				return fmt.Errorf("failed to remove stale message %s: %w", object.Name(), err)
			}
		}
	}
	return nil
}

func (t *Transport) watch(dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create inbox watcher: %w", err)
	}
	if err = watcher.Add(path.Clean(dir)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch inbox %s: %w", dir, err)
	}
	t.watcher = watcher
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					t.signal()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// fall back to polling for this wake-up
				t.signal()
			}
		}
	}()
	return nil
}

func (t *Transport) signal() {
	select {
	case t.wakeup <- struct{}{}:
	default:
	}
}

var _ transport.Transport = (*Transport)(nil)
