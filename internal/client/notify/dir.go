package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/teadiary/internal/filex"
	"github.com/fsnotify/fsnotify"
)

const msgExt = ".msg"

// DirChannel exchanges messages between processes sharing a directory.
// Each message is a file written atomically; subscribers learn about new
// files through fsnotify. A publisher removes its previous files once a
// newer one is in place, so the directory stays small.
type DirChannel struct {
	dir    string
	origin string

	mu      sync.Mutex
	written []string
	closed  bool
	cancels []func()
}

// NewDirChannel creates dir if needed. origin tags the files this instance
// writes so it can prune them later.
func NewDirChannel(dir, origin string) (*DirChannel, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &DirChannel{dir: abs, origin: origin}, nil
}

func (c *DirChannel) Publish(_ context.Context, m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	name := fmt.Sprintf("%020d-%s%s", time.Now().UnixNano(), c.origin, msgExt)
	path := filepath.Join(c.dir, name)
	if err := filex.WriteFileAtomic(path, data, 0o600); err != nil {
		return err
	}

	for _, old := range c.written {
		_ = os.Remove(old)
	}
	c.written = append(c.written[:0], path)
	return nil
}

func (c *DirChannel) Subscribe(ctx context.Context, h Handler) (func(), error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(c.dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", c.dir, err)
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = w.Close()
		})
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case <-done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !isMessageEvent(ev) {
					continue
				}
				if m, ok := readMessage(ev.Name); ok {
					h(ctx, m)
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	c.mu.Lock()
	c.cancels = append(c.cancels, cancel)
	c.mu.Unlock()

	return cancel, nil
}

func isMessageEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(ev.Name)
	return !strings.HasPrefix(base, ".") && strings.HasSuffix(base, msgExt)
}

// readMessage returns false for files that vanished or do not decode; both
// are expected when a publisher prunes while we read.
func readMessage(path string) (Message, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Message{}, false
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, false
	}
	return m, true
}

func (c *DirChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
	return nil
}
