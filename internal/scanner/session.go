// Package scanner runs a QR scanning session over a stream of camera frames.
package scanner

import (
	"errors"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/contact-cards/internal/metrics"
	"gitlab.com/dirk.krummacker/contact-cards/internal/qrcode"
)

// DefaultIdleTimeout is how long a session may go without activity before it is closed.
const DefaultIdleTimeout = 5 * time.Minute

// Decoder finds a QR code in a single frame.
type Decoder interface {
	Decode(frame image.Image) (string, error)
}

// Session feeds frames to a Decoder. At most one detection runs at a time; frames arriving
// meanwhile are dropped. The first successful decode closes the latch, and onDecoded is called
// exactly once until Reset reopens it.
type Session struct {
	id        string
	decoder   Decoder
	onDecoded func(payload string)
	log       *slog.Logger

	inFlight atomic.Bool
	latched  atomic.Bool
}

// NewSession creates a session with a fresh id.
func NewSession(decoder Decoder, onDecoded func(payload string), log *slog.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		id:        id,
		decoder:   decoder,
		onDecoded: onDecoded,
		log:       log.With("component", "scanner", "session", id),
	}
}

// ID identifies the session.
func (s *Session) ID() string {
	return s.id
}

// Submit starts a detection on the frame in the background. It returns false if the frame was
// dropped because a detection is still running or a code was accepted already.
func (s *Session) Submit(frame image.Image) bool {
	if s.latched.Load() || !s.inFlight.CompareAndSwap(false, true) {
		metrics.FramesDropped.Inc()
		return false
	}
	go s.detect(frame)
	return true
}

func (s *Session) detect(frame image.Image) {
	defer s.inFlight.Store(false)

	payload, err := s.decoder.Decode(frame)
	if errors.Is(err, qrcode.ErrNoCode) {
		return
	}
	if err != nil {
		s.log.Warn("barcode detection failed", "error", err)
		return
	}
	if !s.latched.CompareAndSwap(false, true) {
		return
	}
	s.log.Info("QR code detected", "length", len(payload))
	s.onDecoded(payload)
}

// Latched reports whether a code has been accepted since the last reset.
func (s *Session) Latched() bool {
	return s.latched.Load()
}

// Busy reports whether a detection is running.
func (s *Session) Busy() bool {
	return s.inFlight.Load()
}

// Reset reopens the latch so that the next decoded code is accepted again.
func (s *Session) Reset() {
	s.latched.Store(false)
}
