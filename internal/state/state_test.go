package state

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

type fakeSyncer struct {
	mu           sync.Mutex
	contacts     map[string]model.Contact
	err          error
	lookupGate   chan struct{}
	listingCalls int
	listing      chan []model.Contact
	cancelled    chan struct{}
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{contacts: map[string]model.Contact{}}
}

func (f *fakeSyncer) Refresh(context.Context) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return 10, nil
}

func (f *fakeSyncer) UpsertOne(_ context.Context, c model.Contact) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts[c.UUID] = c
	return nil
}

func (f *fakeSyncer) Clear(context.Context) error {
	return f.err
}

func (f *fakeSyncer) GetByID(_ context.Context, id string) (model.Contact, bool, error) {
	if f.lookupGate != nil {
		<-f.lookupGate
	}
	if f.err != nil {
		return model.Contact{}, false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contacts[id]
	return c, ok, nil
}

func (f *fakeSyncer) Listing(ctx context.Context) <-chan []model.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listingCalls++
	ch := make(chan []model.Contact, 1)
	cancelled := make(chan struct{})
	f.listing = ch
	f.cancelled = cancelled
	go func() {
		<-ctx.Done()
		close(cancelled)
	}()
	return ch
}

func (f *fakeSyncer) push(contacts []model.Contact) {
	f.mu.Lock()
	ch := f.listing
	f.mu.Unlock()
	ch <- contacts
}

func (f *fakeSyncer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listingCalls
}

func newHolder(syncer Syncer, grace time.Duration) *Holder {
	return New(syncer, grace, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func receive(t *testing.T, ch <-chan []model.Contact) []model.Contact {
	t.Helper()
	select {
	case contacts := <-ch:
		return contacts
	case <-time.After(2 * time.Second):
		t.Fatal("no listing received")
		return nil
	}
}

func TestToggleDisplayMode(t *testing.T) {
	h := newHolder(newFakeSyncer(), 0)

	assert.False(t, h.Snapshot().DisplayMode)
	assert.True(t, h.ToggleDisplayMode())
	assert.True(t, h.Snapshot().DisplayMode)
	assert.False(t, h.ToggleDisplayMode())
}

func TestSelectByID(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.contacts["1"] = model.Contact{UUID: "1", FirstName: "Jo", LastName: "Doe"}
	h := newHolder(syncer, 0)
	ctx := context.Background()

	c, detail := h.SelectByID(ctx, "1")
	require.NotNil(t, c)
	assert.Equal(t, DetailFound, detail)
	snap := h.Snapshot()
	assert.Equal(t, DetailFound, snap.Detail)
	require.NotNil(t, snap.Selected)
	assert.Equal(t, "Jo", snap.Selected.FirstName)

	h.ClearSelection()
	snap = h.Snapshot()
	assert.Equal(t, DetailIdle, snap.Detail)
	assert.Nil(t, snap.Selected)
}

func TestSelectByIDNotFound(t *testing.T) {
	h := newHolder(newFakeSyncer(), 0)

	c, detail := h.SelectByID(context.Background(), "missing")
	assert.Nil(t, c)
	assert.Equal(t, DetailNotFound, detail)
	snap := h.Snapshot()
	assert.Nil(t, snap.Selected)
	assert.Nil(t, snap.ErrorMessage)
}

func TestSelectByIDEmptyIDIsIdle(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.contacts["1"] = model.Contact{UUID: "1"}
	h := newHolder(syncer, 0)

	h.SelectByID(context.Background(), "1")
	_, detail := h.SelectByID(context.Background(), "")
	assert.Equal(t, DetailIdle, detail)
	assert.Nil(t, h.Snapshot().Selected)
}

func TestSelectByIDFailure(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.err = errors.New("disk I/O error")
	h := newHolder(syncer, 0)

	c, detail := h.SelectByID(context.Background(), "1")
	assert.Nil(t, c)
	assert.Equal(t, DetailFailed, detail)
	snap := h.Snapshot()
	assert.Nil(t, snap.Selected)
	require.NotNil(t, snap.ErrorMessage)
	assert.Equal(t, "Failed to load contact details: disk I/O error", *snap.ErrorMessage)
}

// TestSelectByIDDiscardedAfterClear expects that a lookup finishing after the detail view was
// left does not bring the selection back.
func TestSelectByIDDiscardedAfterClear(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.contacts["1"] = model.Contact{UUID: "1", FirstName: "Jo"}
	syncer.lookupGate = make(chan struct{})
	h := newHolder(syncer, 0)

	done := make(chan struct{})
	go func() {
		h.SelectByID(context.Background(), "1")
		close(done)
	}()
	assert.Eventually(t, func() bool { return h.Snapshot().Detail == DetailLoading }, time.Second, 5*time.Millisecond)
	h.ClearSelection()
	close(syncer.lookupGate)
	<-done

	snap := h.Snapshot()
	assert.Equal(t, DetailIdle, snap.Detail)
	assert.Nil(t, snap.Selected)
}

func TestRefreshFailureSetsError(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.err = errors.New("no route to host")
	h := newHolder(syncer, 0)

	_, err := h.Refresh(context.Background())
	require.Error(t, err)
	snap := h.Snapshot()
	require.NotNil(t, snap.ErrorMessage)
	assert.Equal(t, "Failed to fetch contacts: no route to host", *snap.ErrorMessage)

	h.ClearError()
	assert.Nil(t, h.Snapshot().ErrorMessage)
}

func TestRefreshSuccess(t *testing.T) {
	h := newHolder(newFakeSyncer(), 0)

	stored, err := h.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, stored)
	assert.Nil(t, h.Snapshot().ErrorMessage)
}

func TestUpsertFailureSetsError(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.err = errors.New("read-only")
	h := newHolder(syncer, 0)

	require.Error(t, h.Upsert(context.Background(), model.Contact{UUID: "1"}))
	require.NotNil(t, h.Snapshot().ErrorMessage)
	assert.Equal(t, "Failed to save contact: read-only", *h.Snapshot().ErrorMessage)
}

func TestClearAllFailureSetsError(t *testing.T) {
	syncer := newFakeSyncer()
	syncer.err = errors.New("locked")
	h := newHolder(syncer, 0)

	require.Error(t, h.ClearAll(context.Background()))
	assert.Equal(t, "Failed to clear contacts: locked", *h.Snapshot().ErrorMessage)
}

// TestRefreshNotCancelled expects that a cancelled caller context does not reach the syncer.
func TestRefreshNotCancelled(t *testing.T) {
	syncer := &ctxCheckingSyncer{fakeSyncer: newFakeSyncer()}
	h := newHolder(syncer, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Refresh(ctx)
	require.NoError(t, err)
}

type ctxCheckingSyncer struct {
	*fakeSyncer
}

func (c *ctxCheckingSyncer) Refresh(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return 1, nil
}

func TestWatchMirrorsListing(t *testing.T) {
	syncer := newFakeSyncer()
	h := newHolder(syncer, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := h.Watch(ctx)
	assert.Empty(t, receive(t, updates))

	syncer.push([]model.Contact{{UUID: "1", FirstName: "Jo"}})
	contacts := receive(t, updates)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Jo", contacts[0].FirstName)
	assert.Len(t, h.Listing(), 1)
}

// TestWatchGraceWindow expects that the listing subscription survives a short gap without
// observers and is suspended once the grace window has passed.
func TestWatchGraceWindow(t *testing.T) {
	syncer := newFakeSyncer()
	h := newHolder(syncer, 100*time.Millisecond)

	ctx1, cancel1 := context.WithCancel(context.Background())
	receive(t, h.Watch(ctx1))
	cancel1()

	// re-attach within the grace window reuses the subscription
	time.Sleep(20 * time.Millisecond)
	ctx2, cancel2 := context.WithCancel(context.Background())
	receive(t, h.Watch(ctx2))
	assert.Equal(t, 1, syncer.calls())
	assert.True(t, h.Subscribed())

	cancel2()
	assert.Eventually(t, func() bool { return !h.Subscribed() }, 2*time.Second, 10*time.Millisecond)
	select {
	case <-syncer.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream listing was not cancelled")
	}

	// a later observer subscribes again
	ctx3, cancel3 := context.WithCancel(context.Background())
	defer cancel3()
	receive(t, h.Watch(ctx3))
	assert.Equal(t, 2, syncer.calls())
}

func TestCurrentReadsLiveListing(t *testing.T) {
	syncer := newFakeSyncer()
	h := newHolder(syncer, time.Minute)

	result := make(chan []model.Contact, 1)
	go func() {
		contacts, err := h.Current(context.Background())
		assert.NoError(t, err)
		result <- contacts
	}()

	assert.Eventually(t, func() bool { return syncer.calls() == 1 }, time.Second, 5*time.Millisecond)
	syncer.push([]model.Contact{{UUID: "1"}, {UUID: "2"}})
	assert.Len(t, receive(t, result), 2)

	// the subscription ends with the call
	select {
	case <-syncer.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not cancelled")
	}
	assert.False(t, h.Subscribed())
	assert.Empty(t, h.Listing())
}

func TestCurrentHonoursContext(t *testing.T) {
	h := newHolder(newFakeSyncer(), time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Current(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
