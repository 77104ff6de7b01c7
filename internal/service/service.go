// Package service synchronizes the local contact store with the remote demo API.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"gitlab.com/dirk.krummacker/contact-cards/internal/metrics"
	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
)

// Fetcher delivers a batch of contacts from a remote source.
type Fetcher interface {
	FetchBatch(ctx context.Context) ([]model.Contact, error)
}

// Store is the local contact store with its live listing.
type Store interface {
	Upsert(ctx context.Context, c model.Contact) error
	ClearAll(ctx context.Context) error
	GetByID(ctx context.Context, id string) (model.Contact, bool, error)
	Listing(ctx context.Context) <-chan []model.Contact
}

// Service orchestrates remote fetches and local writes.
type Service struct {
	store  Store
	remote Fetcher
	log    *slog.Logger
}

// New creates the service.
func New(store Store, remote Fetcher, log *slog.Logger) *Service {
	return &Service{
		store:  store,
		remote: remote,
		log:    log.With("component", "sync"),
	}
}

// Refresh fetches a batch from the remote source and upserts every contact one by one. It returns
// the number of contacts written. A failing fetch leaves the store untouched. A failing write
// stops the loop; contacts written before it stay committed.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	s.log.DebugContext(ctx, "fetching contacts")
	contacts, err := s.remote.FetchBatch(ctx)
	if err != nil {
		metrics.Refreshes.WithLabelValues(metrics.ResultFailure).Inc()
		s.log.ErrorContext(ctx, "failed to fetch contacts", "error", err)
		return 0, err
	}

	for i, c := range contacts {
		if err := s.store.Upsert(ctx, c); err != nil {
			metrics.Refreshes.WithLabelValues(metrics.ResultFailure).Inc()
			s.log.ErrorContext(ctx, "failed to store fetched contact",
				"uuid", c.UUID, "stored", i, "fetched", len(contacts), "error", err)
			return i, fmt.Errorf("stored %d of %d contacts: %w", i, len(contacts), err)
		}
		metrics.ContactsStored.Inc()
	}

	metrics.Refreshes.WithLabelValues(metrics.ResultSuccess).Inc()
	s.log.InfoContext(ctx, "contacts refreshed", "stored", len(contacts))
	return len(contacts), nil
}

// UpsertOne stores a single contact, e.g. one received through a QR code.
func (s *Service) UpsertOne(ctx context.Context, c model.Contact) error {
	s.log.DebugContext(ctx, "storing contact", "uuid", c.UUID)
	if err := s.store.Upsert(ctx, c); err != nil {
		s.log.ErrorContext(ctx, "failed to store contact", "uuid", c.UUID, "error", err)
		return err
	}
	metrics.ContactsStored.Inc()
	return nil
}

// Clear deletes all local contacts.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		s.log.ErrorContext(ctx, "failed to clear contacts", "error", err)
		return err
	}
	s.log.InfoContext(ctx, "contacts cleared")
	return nil
}

// GetByID looks up a single contact. found is false if there is no contact with this uuid.
func (s *Service) GetByID(ctx context.Context, id string) (model.Contact, bool, error) {
	return s.store.GetByID(ctx, id)
}

// Listing exposes the live listing of the store unchanged.
func (s *Service) Listing(ctx context.Context) <-chan []model.Contact {
	return s.store.Listing(ctx)
}
