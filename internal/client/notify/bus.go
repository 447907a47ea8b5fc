package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

// Bus is an in-process Channel. Each subscriber gets its own buffered queue
// and goroutine; a message is dropped for a subscriber whose queue is full.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscriber
	nextID  int
	buffer  int
	closed  bool
	dropped atomic.Int64
}

type subscriber struct {
	queue chan Message
	done  chan struct{}
	once  sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// NewBus returns a Bus with per-subscriber queues of the given size.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{subs: make(map[int]*subscriber), buffer: buffer}
}

func (b *Bus) Publish(_ context.Context, m Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	for _, s := range b.subs {
		select {
		case s.queue <- m:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, h Handler) (func(), error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	id := b.nextID
	b.nextID++
	s := &subscriber{queue: make(chan Message, b.buffer), done: make(chan struct{})}
	b.subs[id] = s
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.remove(id)
				return
			case <-s.done:
				return
			case m := <-s.queue:
				h(ctx, m)
			}
		}
	}()

	return func() { b.remove(id) }, nil
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	s, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		s.stop()
	}
}

// Dropped returns how many deliveries were skipped because a queue was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, s := range b.subs {
		s.stop()
		delete(b.subs, id)
	}
	return nil
}
