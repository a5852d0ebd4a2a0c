package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/hongminglow/vault-be/internal/storepath"
)

var (
	// ErrForbidden is returned when subscribing to another user's private path.
	ErrForbidden = errors.New("path belongs to another user")
	// ErrClosed is returned by Subscribe after the hub has shut down.
	ErrClosed = errors.New("hub closed")
)

// Subscription receives snapshots of one path. The channel holds at most one
// pending snapshot; a newer one replaces it, so a slow reader only ever sees
// the latest value.
type Subscription struct {
	id    uint64
	path  string
	owner string
	hub   *Hub

	mu      sync.Mutex
	ch      chan Snapshot
	lastSeq uint64
	closed  bool
}

// C is closed when the subscription ends.
func (s *Subscription) C() <-chan Snapshot { return s.ch }

// Path returns the canonical subscribed path.
func (s *Subscription) Path() string { return s.path }

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s.id)
	s.shut()
}

func (s *Subscription) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// deliver replaces any pending snapshot. Snapshots resolved before the last
// delivered one are dropped.
func (s *Subscription) deliver(seq uint64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq <= s.lastSeq {
		return
	}
	s.lastSeq = seq
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

// Hub fans store changes out to path subscriptions.
type Hub struct {
	resolver Resolver
	now      func() time.Time
	seq      atomic.Uint64

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewHub creates a hub resolving snapshots through resolver.
func NewHub(resolver Resolver) *Hub {
	return &Hub{
		resolver: resolver,
		now:      func() time.Time { return time.Now().UTC() },
		subs:     make(map[uint64]*Subscription),
	}
}

// Subscribe opens a live view of raw on behalf of owner, the subscribing
// user's id. The current snapshot is queued before Subscribe returns.
func (h *Hub) Subscribe(ctx context.Context, raw, owner string) (*Subscription, error) {
	p, err := storepath.Parse(raw)
	if err != nil {
		return nil, err
	}
	if o := p.Owner(); o != "" && o != owner {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, p)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.nextID++
	sub := &Subscription{id: h.nextID, path: p.String(), owner: owner, hub: h, ch: make(chan Snapshot, 1)}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	// Registered before the first read so no change can fall between them.
	seq := h.seq.Add(1)
	snap, err := h.resolve(ctx, p)
	if err != nil {
		sub.Close()
		return nil, err
	}
	sub.deliver(seq, snap)
	return sub, nil
}

// Publish re-resolves every subscribed path related to one of the changed
// paths, once per path, and delivers the result to its subscribers.
func (h *Hub) Publish(ctx context.Context, changed ...string) {
	h.mu.Lock()
	targets := lo.Filter(lo.Values(h.subs), func(s *Subscription, _ int) bool {
		return lo.SomeBy(changed, func(c string) bool { return storepath.Related(c, s.path) })
	})
	h.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	byPath := lo.GroupBy(targets, func(s *Subscription) string { return s.path })
	var wg sync.WaitGroup
	for path, subs := range byPath {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := storepath.Parse(path)
			if err != nil {
				return
			}
			seq := h.seq.Add(1)
			snap, err := h.resolve(ctx, p)
			if err != nil {
				slog.Warn("realtime: resolve failed, keeping previous snapshot", "path", path, "error", err)
				return
			}
			for _, s := range subs {
				s.deliver(seq, snap)
			}
		}()
	}
	wg.Wait()
}

// DropOwner closes every subscription opened by owner.
func (h *Hub) DropOwner(owner string) int {
	h.mu.Lock()
	dropped := lo.Filter(lo.Values(h.subs), func(s *Subscription, _ int) bool { return s.owner == owner })
	for _, s := range dropped {
		delete(h.subs, s.id)
	}
	h.mu.Unlock()

	for _, s := range dropped {
		s.shut()
	}
	if len(dropped) > 0 {
		slog.Info("realtime: dropped subscriptions", "owner", owner, "count", len(dropped))
	}
	return len(dropped)
}

// Len reports the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := lo.Values(h.subs)
	h.subs = make(map[uint64]*Subscription)
	h.mu.Unlock()

	for _, s := range subs {
		s.shut()
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (h *Hub) resolve(ctx context.Context, p storepath.Path) (Snapshot, error) {
	value, err := h.resolver.Resolve(ctx, p)
	return snapshotOf(p.String(), value, err, h.now())
}
