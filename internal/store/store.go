package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
)

// Repository is the persistent table of contacts. Implementations exist for sqlx (SQLite and
// MySQL) and for gorm (PostgreSQL).
type Repository interface {
	// Upsert inserts the contact, or replaces every field of the stored contact with the same
	// UUID.
	Upsert(ctx context.Context, c model.Contact) error
	// ClearAll deletes all contacts.
	ClearAll(ctx context.Context) error
	// GetByID returns the contact with the given UUID. found is false if there is none.
	GetByID(ctx context.Context, id string) (c model.Contact, found bool, err error)
	// ListAll returns all contacts ordered by first name.
	ListAll(ctx context.Context) ([]model.Contact, error)
}

// primeRetry is the pause between attempts to read the first listing for a new subscriber.
const primeRetry = 250 * time.Millisecond

// Store adds a live listing on top of a Repository. Every successful mutation re-reads the
// ordered listing and pushes it to all subscribers.
type Store struct {
	repo Repository
	feed *feed
	log  *slog.Logger

	// notifyMu serialises reading and publishing the listing, so the last published snapshot
	// was read after the last committed mutation.
	notifyMu sync.Mutex
}

// New wraps the repository.
func New(repo Repository, log *slog.Logger) *Store {
	return &Store{
		repo: repo,
		feed: newFeed(),
		log:  log.With("component", "store"),
	}
}

// Upsert stores the contact and notifies the listing subscribers.
func (s *Store) Upsert(ctx context.Context, c model.Contact) error {
	if err := s.repo.Upsert(ctx, c); err != nil {
		return err
	}
	s.notify(ctx)
	return nil
}

// ClearAll deletes all contacts and notifies the listing subscribers.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.repo.ClearAll(ctx); err != nil {
		return err
	}
	s.notify(ctx)
	return nil
}

// GetByID looks up a single contact.
func (s *Store) GetByID(ctx context.Context, id string) (model.Contact, bool, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAll reads the ordered listing once.
func (s *Store) ListAll(ctx context.Context) ([]model.Contact, error) {
	return s.repo.ListAll(ctx)
}

// Listing subscribes to the live listing. The current listing is delivered first, followed by a
// new listing after every mutation. The channel is closed when ctx is done.
//
// If the first listing cannot be read, reading is retried in the background until it succeeds or
// ctx is done.
func (s *Store) Listing(ctx context.Context) <-chan []model.Contact {
	ch := s.feed.subscribe(ctx)
	if !s.feed.primed() && !s.notify(ctx) {
		go s.prime(ctx)
	}
	return ch
}

func (s *Store) prime(ctx context.Context) {
	ticker := time.NewTicker(primeRetry)
	defer ticker.Stop()
	for !s.feed.primed() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.notify(ctx)
		}
	}
}

// notify re-reads the listing and publishes it. It reports whether a snapshot was published.
func (s *Store) notify(ctx context.Context) bool {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	contacts, err := s.repo.ListAll(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "could not refresh the live listing", "error", err)
		return false
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	s.feed.publish(contacts)
	return true
}
