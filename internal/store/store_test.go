package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
)

// setupStore creates an in-memory SQLite database with the real migrations applied.
func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	sqlDB, err := OpenDatabase(DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = Migrate(ctx, sqlDB, DriverSQLite)
	require.NoError(t, err)

	repo, err := NewRepository(sqlDB, DriverSQLite)
	require.NoError(t, err)
	return New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func receive(t *testing.T, ch <-chan []model.Contact) []model.Contact {
	t.Helper()
	select {
	case contacts, ok := <-ch:
		require.True(t, ok, "listing channel closed unexpectedly")
		return contacts
	case <-time.After(2 * time.Second):
		t.Fatal("no listing received")
		return nil
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	c := erika()
	require.NoError(t, s.Upsert(ctx, c))
	c.Phone = "+49 1234567890"
	c.City = "Bonn"
	require.NoError(t, s.Upsert(ctx, c))

	contacts, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, c, contacts[0])
}

func TestClearAllLeavesEmptyListing(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, erika()))
	require.NoError(t, s.Upsert(ctx, model.Contact{UUID: "2", FirstName: "Hans", LastName: "Wurst"}))
	require.NoError(t, s.ClearAll(ctx))

	contacts, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, contacts)

	// clearing an empty table is fine as well
	require.NoError(t, s.ClearAll(ctx))
}

func TestGetByIDAbsent(t *testing.T) {
	s := setupStore(t)

	_, found, err := s.GetByID(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListAllOrderedByFirstName(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for _, c := range []model.Contact{
		{UUID: "1", FirstName: "Carla", LastName: "Adams"},
		{UUID: "2", FirstName: "Aaron", LastName: "Smith"},
		{UUID: "3", FirstName: "Berta", LastName: "Jones"},
	} {
		require.NoError(t, s.Upsert(ctx, c))
	}

	contacts, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 3)
	assert.Equal(t, "Aaron", contacts[0].FirstName)
	assert.Equal(t, "Berta", contacts[1].FirstName)
	assert.Equal(t, "Carla", contacts[2].FirstName)
}

func TestListingFollowsMutations(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listing := s.Listing(ctx)
	assert.Empty(t, receive(t, listing))

	require.NoError(t, s.Upsert(ctx, erika()))
	contacts := receive(t, listing)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Erika", contacts[0].FirstName)

	require.NoError(t, s.ClearAll(ctx))
	assert.Empty(t, receive(t, listing))
}

func TestListingSubscriberGetsCurrentSnapshot(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Upsert(ctx, erika()))

	first := s.Listing(ctx)
	second := s.Listing(ctx)
	assert.Len(t, receive(t, first), 1)
	assert.Len(t, receive(t, second), 1)
}

func TestListingClosesWhenContextIsDone(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	listing := s.Listing(ctx)
	receive(t, listing)
	cancel()

	select {
	case _, ok := <-listing:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("listing channel was not closed")
	}
	assert.Eventually(t, func() bool { return s.feed.subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

// TestListingConflatesSnapshots expects that a subscriber that does not read in time only sees
// the newest listing.
func TestListingConflatesSnapshots(t *testing.T) {
	s := setupStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listing := s.Listing(ctx)
	require.NoError(t, s.Upsert(ctx, model.Contact{UUID: "1", FirstName: "A", LastName: "A"}))
	require.NoError(t, s.Upsert(ctx, model.Contact{UUID: "2", FirstName: "B", LastName: "B"}))
	require.NoError(t, s.Upsert(ctx, model.Contact{UUID: "3", FirstName: "C", LastName: "C"}))

	assert.Len(t, receive(t, listing), 3)
	select {
	case contacts := <-listing:
		t.Fatalf("unexpected stale listing with %d contacts", len(contacts))
	default:
	}
}

func TestMigratorUpAndDown(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := OpenDatabase(DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer sqlDB.Close()

	provider, err := NewMigrator(sqlDB, DriverSQLite)
	require.NoError(t, err)
	results, err := provider.Up(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// a second run has nothing left to do
	results, err = Migrate(ctx, sqlDB, DriverSQLite)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = provider.Down(ctx)
	require.NoError(t, err)
	_, err = sqlDB.ExecContext(ctx, "SELECT * FROM contacts")
	assert.Error(t, err)
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := OpenDatabase("oracle", "")
	assert.Error(t, err)
	_, err = NewMigrator(nil, "oracle")
	assert.Error(t, err)
	_, err = NewRepository(nil, "oracle")
	assert.Error(t, err)
}

// gatedRepository keeps the contacts in memory. The first ListAll call reads its listing and then
// waits for release before returning it. ListAll fails while failLists is positive.
type gatedRepository struct {
	mu        sync.Mutex
	contacts  []model.Contact
	lists     int
	failLists int
	upserted  chan string
	reading   chan struct{}
	release   chan struct{}
}

func newGatedRepository() *gatedRepository {
	return &gatedRepository{
		upserted: make(chan string, 10),
		reading:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (r *gatedRepository) Upsert(_ context.Context, c model.Contact) error {
	r.mu.Lock()
	r.contacts = append(r.contacts, c)
	r.mu.Unlock()
	r.upserted <- c.UUID
	return nil
}

func (r *gatedRepository) ClearAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contacts = nil
	return nil
}

func (r *gatedRepository) GetByID(_ context.Context, _ string) (model.Contact, bool, error) {
	return model.Contact{}, false, nil
}

func (r *gatedRepository) ListAll(_ context.Context) ([]model.Contact, error) {
	r.mu.Lock()
	if r.failLists > 0 {
		r.failLists--
		r.mu.Unlock()
		return nil, errors.New("database is locked")
	}
	r.lists++
	first := r.lists == 1
	contacts := append([]model.Contact(nil), r.contacts...)
	r.mu.Unlock()
	if first {
		close(r.reading)
		<-r.release
	}
	return contacts, nil
}

// TestConcurrentUpsertsSettleOnLatestListing runs two upserts whose listing reads overlap. The
// listing read first must not be published last.
func TestConcurrentUpsertsSettleOnLatestListing(t *testing.T) {
	repo := newGatedRepository()
	s := New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Upsert(ctx, model.Contact{UUID: "a", FirstName: "Anna", LastName: "A"}))
	}()
	<-repo.upserted
	<-repo.reading

	go func() {
		defer wg.Done()
		assert.NoError(t, s.Upsert(ctx, model.Contact{UUID: "b", FirstName: "Bert", LastName: "B"}))
	}()
	<-repo.upserted
	close(repo.release)
	wg.Wait()

	listingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	assert.Len(t, receive(t, s.Listing(listingCtx)), 2)
}

// TestListingRetriesFirstRead expects that a subscriber gets the listing even if the first read
// fails.
func TestListingRetriesFirstRead(t *testing.T) {
	repo := newGatedRepository()
	close(repo.release)
	repo.failLists = 2
	s := New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listing := s.Listing(ctx)
	assert.Empty(t, receive(t, listing))
	assert.True(t, s.feed.primed())
}
