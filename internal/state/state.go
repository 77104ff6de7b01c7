// Package state holds the UI-facing application state: the mirrored live listing, the selected
// contact, the display mode and the last error message.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gitlab.com/dirk.krummacker/contact-cards/internal/metrics"
	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
)

// DefaultGrace is how long the listing stays subscribed after the last observer detached.
const DefaultGrace = 5 * time.Second

// Syncer is the part of the sync service the holder delegates to.
type Syncer interface {
	Refresh(ctx context.Context) (int, error)
	UpsertOne(ctx context.Context, c model.Contact) error
	Clear(ctx context.Context) error
	GetByID(ctx context.Context, id string) (model.Contact, bool, error)
	Listing(ctx context.Context) <-chan []model.Contact
}

// DetailState is the state of the detail view of a single contact.
type DetailState string

// Detail states. idle is left only by SelectByID and entered again by ClearSelection.
const (
	DetailIdle     DetailState = "idle"
	DetailLoading  DetailState = "loading"
	DetailFound    DetailState = "found"
	DetailNotFound DetailState = "not_found"
	DetailFailed   DetailState = "failed"
)

// Snapshot is a consistent copy of the holder state.
type Snapshot struct {
	DisplayMode  bool           `json:"displayMode"`
	Selected     *model.Contact `json:"selected"`
	Detail       DetailState    `json:"detail"`
	ErrorMessage *string        `json:"errorMessage"`
}

// Holder owns the application state. All mutations go through its methods.
type Holder struct {
	syncer Syncer
	grace  time.Duration
	log    *slog.Logger

	mu          sync.Mutex
	listing     []model.Contact
	selected    *model.Contact
	detail      DetailState
	selectGen   uint64
	displayMode bool
	errMsg      *string

	observers      map[chan []model.Contact]struct{}
	upstreamCancel context.CancelFunc
	upstreamGen    uint64
	graceTimer     *time.Timer
	graceGen       uint64
}

// New creates a holder. A grace of zero selects DefaultGrace.
func New(syncer Syncer, grace time.Duration, log *slog.Logger) *Holder {
	if grace == 0 {
		grace = DefaultGrace
	}
	return &Holder{
		syncer:    syncer,
		grace:     grace,
		log:       log.With("component", "state"),
		listing:   []model.Contact{},
		detail:    DetailIdle,
		observers: make(map[chan []model.Contact]struct{}),
	}
}

// Watch attaches an observer to the listing. The current listing is delivered right away,
// followed by every update. The channel is closed when ctx is done.
func (h *Holder) Watch(ctx context.Context) <-chan []model.Contact {
	ch := make(chan []model.Contact, 1)

	h.mu.Lock()
	h.observers[ch] = struct{}{}
	if h.graceTimer != nil {
		h.graceTimer.Stop()
		h.graceTimer = nil
		h.graceGen++
	}
	if h.upstreamCancel == nil {
		h.startUpstream()
	}
	ch <- h.listing
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.detach(ch)
	}()
	return ch
}

// Listing returns the latest mirrored listing.
func (h *Holder) Listing() []model.Contact {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listing
}

// Current reads the live listing once, straight from a short-lived subscription of its own. It
// does not touch the mirrored listing or the observers.
func (h *Holder) Current(ctx context.Context) ([]model.Contact, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	select {
	case snapshot, ok := <-h.syncer.Listing(subCtx):
		if !ok {
			return nil, ctx.Err()
		}
		return snapshot, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribed reports whether the holder currently follows the store listing.
func (h *Holder) Subscribed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.upstreamCancel != nil
}

// startUpstream must be called with h.mu held.
func (h *Holder) startUpstream() {
	ctx, cancel := context.WithCancel(context.Background())
	h.upstreamCancel = cancel
	h.upstreamGen++
	updates := h.syncer.Listing(ctx)
	h.log.Debug("listing subscribed")
	go h.mirror(updates, h.upstreamGen)
}

// mirror copies snapshots of one upstream subscription into the holder. Snapshots of a suspended
// subscription are ignored.
func (h *Holder) mirror(updates <-chan []model.Contact, gen uint64) {
	for snapshot := range updates {
		h.mu.Lock()
		if gen != h.upstreamGen {
			h.mu.Unlock()
			continue
		}
		h.listing = snapshot
		for ch := range h.observers {
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
		h.mu.Unlock()
		metrics.ContactsListed.Set(float64(len(snapshot)))
	}
}

func (h *Holder) detach(ch chan []model.Contact) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.observers, ch)
	close(ch)
	if len(h.observers) > 0 || h.upstreamCancel == nil {
		return
	}
	h.graceGen++
	gen := h.graceGen
	h.graceTimer = time.AfterFunc(h.grace, func() { h.suspend(gen) })
}

func (h *Holder) suspend(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if gen != h.graceGen || len(h.observers) > 0 || h.upstreamCancel == nil {
		return
	}
	h.upstreamCancel()
	h.upstreamCancel = nil
	h.upstreamGen++
	h.graceTimer = nil
	h.log.Debug("listing suspended")
}

// Refresh fetches new contacts from the remote source. The fetch is not cancelled when ctx is.
func (h *Holder) Refresh(ctx context.Context) (int, error) {
	stored, err := h.syncer.Refresh(context.WithoutCancel(ctx))
	if err != nil {
		h.setError(fmt.Sprintf("Failed to fetch contacts: %v", err))
		return stored, err
	}
	return stored, nil
}

// SelectByID loads the contact with the given id into the selection. An empty id resets the
// selection. A result that arrives after the selection was cleared is not applied.
func (h *Holder) SelectByID(ctx context.Context, id string) (*model.Contact, DetailState) {
	h.mu.Lock()
	h.selectGen++
	gen := h.selectGen
	if id == "" {
		h.selected = nil
		h.detail = DetailIdle
		h.mu.Unlock()
		return nil, DetailIdle
	}
	h.detail = DetailLoading
	h.mu.Unlock()

	c, found, err := h.syncer.GetByID(context.WithoutCancel(ctx), id)

	var selected *model.Contact
	var detail DetailState
	switch {
	case err != nil:
		h.log.ErrorContext(ctx, "failed to load contact", "uuid", id, "error", err)
		detail = DetailFailed
	case !found:
		h.log.WarnContext(ctx, "contact not found", "uuid", id)
		detail = DetailNotFound
	default:
		selected = &c
		detail = DetailFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		msg := fmt.Sprintf("Failed to load contact details: %v", err)
		h.errMsg = &msg
	}
	if gen != h.selectGen {
		return selected, detail
	}
	h.selected = selected
	h.detail = detail
	return selected, detail
}

// ClearSelection forgets the selected contact.
func (h *Holder) ClearSelection() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.selectGen++
	h.selected = nil
	h.detail = DetailIdle
}

// ToggleDisplayMode flips the display mode and returns the new value.
func (h *Holder) ToggleDisplayMode() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.displayMode = !h.displayMode
	h.log.Debug("display mode toggled", "displayMode", h.displayMode)
	return h.displayMode
}

// Upsert stores a single contact. The listing follows by itself.
func (h *Holder) Upsert(ctx context.Context, c model.Contact) error {
	if err := h.syncer.UpsertOne(context.WithoutCancel(ctx), c); err != nil {
		h.setError(fmt.Sprintf("Failed to save contact: %v", err))
		return err
	}
	return nil
}

// ClearAll deletes all contacts.
func (h *Holder) ClearAll(ctx context.Context) error {
	if err := h.syncer.Clear(context.WithoutCancel(ctx)); err != nil {
		h.setError(fmt.Sprintf("Failed to clear contacts: %v", err))
		return err
	}
	return nil
}

// ClearError forgets the last error message.
func (h *Holder) ClearError() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errMsg = nil
}

// Snapshot returns a copy of the current state.
func (h *Holder) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Snapshot{
		DisplayMode: h.displayMode,
		Detail:      h.detail,
	}
	if h.selected != nil {
		c := *h.selected
		s.Selected = &c
	}
	if h.errMsg != nil {
		msg := *h.errMsg
		s.ErrorMessage = &msg
	}
	return s
}

func (h *Holder) setError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errMsg = &msg
}
