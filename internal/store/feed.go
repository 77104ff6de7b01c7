package store

import (
	"context"
	"sync"

	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
)

// feed broadcasts listing snapshots to any number of subscribers. Every subscriber channel has a
// buffer of one; a pending snapshot that was not consumed yet is replaced by the newer one, so
// slow subscribers only ever see the latest listing.
type feed struct {
	mu   sync.Mutex
	subs map[chan []model.Contact]struct{}
	last []model.Contact
	seen bool
}

func newFeed() *feed {
	return &feed{subs: make(map[chan []model.Contact]struct{})}
}

// subscribe registers a new subscriber. If a snapshot is known it is delivered right away. The
// channel is closed once ctx is done.
func (f *feed) subscribe(ctx context.Context) <-chan []model.Contact {
	ch := make(chan []model.Contact, 1)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	if f.seen {
		ch <- f.last
	}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, ch)
		close(ch)
		f.mu.Unlock()
	}()
	return ch
}

// publish hands the snapshot to all subscribers without ever blocking.
func (f *feed) publish(snapshot []model.Contact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = snapshot
	f.seen = true
	for ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}

// primed reports whether a snapshot has been published already.
func (f *feed) primed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen
}

func (f *feed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
