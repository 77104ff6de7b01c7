// Package api exposes the contact cards over a REST interface.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
	"gitlab.com/dirk.krummacker/contact-cards/internal/qrcode"
	"gitlab.com/dirk.krummacker/contact-cards/internal/scanner"
	"gitlab.com/dirk.krummacker/contact-cards/internal/state"
)

// Holder is the application state the handlers operate on.
type Holder interface {
	Watch(ctx context.Context) <-chan []model.Contact
	Current(ctx context.Context) ([]model.Contact, error)
	Refresh(ctx context.Context) (int, error)
	SelectByID(ctx context.Context, id string) (*model.Contact, state.DetailState)
	ClearSelection()
	ToggleDisplayMode() bool
	Upsert(ctx context.Context, c model.Contact) error
	ClearAll(ctx context.Context) error
	ClearError()
	Snapshot() state.Snapshot
}

// Options configure the router.
type Options struct {
	// GinLogging enables gin's request logging.
	GinLogging bool
	// QRSize is the default edge length of QR code images.
	QRSize int
	// Decoder detects QR codes in uploaded frames. nil selects the gozxing decoder.
	Decoder scanner.Decoder
	// ScanIdleTimeout closes scan sessions without activity. 0 selects scanner.DefaultIdleTimeout.
	ScanIdleTimeout time.Duration
}

// Server holds the dependencies of the handlers.
type Server struct {
	holder   Holder
	decoder  scanner.Decoder
	qrSize   int
	scanIdle time.Duration
	log      *slog.Logger

	mu    sync.Mutex
	scans map[string]*scan
}

// NewServer creates the handler set.
func NewServer(holder Holder, opts Options, log *slog.Logger) *Server {
	if opts.QRSize == 0 {
		opts.QRSize = qrcode.DefaultSize
	}
	if opts.Decoder == nil {
		opts.Decoder = qrcode.NewDecoder()
	}
	if opts.ScanIdleTimeout == 0 {
		opts.ScanIdleTimeout = scanner.DefaultIdleTimeout
	}
	return &Server{
		holder:   holder,
		decoder:  opts.Decoder,
		qrSize:   opts.QRSize,
		scanIdle: opts.ScanIdleTimeout,
		log:      log.With("component", "api"),
		scans:    make(map[string]*scan),
	}
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
func SetupHttpRouter(holder Holder, opts Options, log *slog.Logger) *gin.Engine {
	return NewServer(holder, opts, log).Router(opts.GinLogging)
}

// Router registers all endpoints on a new gin engine.
func (s *Server) Router(ginLogging bool) *gin.Engine {
	var router *gin.Engine
	if ginLogging {
		router = gin.Default()
	} else {
		s.log.Info("Turning off HTTP request logging.")
		router = gin.New()
		router.Use(gin.Recovery())
	}
	router.GET("/contacts", s.findContacts)
	router.POST("/contacts", s.upsertContact)
	router.DELETE("/contacts", s.clearContacts)
	router.GET("/contacts/stream", s.streamContacts)
	router.POST("/contacts/refresh", s.refreshContacts)
	router.GET("/contacts/:id", s.findContactByID)
	router.GET("/contacts/:id/qrcode", s.contactQRCode)

	router.GET("/state", s.getState)
	router.POST("/state/display-mode", s.toggleDisplayMode)
	router.DELETE("/state/error", s.clearError)

	router.POST("/scans", s.startScan)
	router.GET("/scans/:id", s.getScan)
	router.POST("/scans/:id/frames", s.submitFrame)
	router.POST("/scans/:id/reset", s.resetScan)
	router.DELETE("/scans/:id", s.endScan)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func errorMessage(snapshot state.Snapshot, err error) string {
	if snapshot.ErrorMessage != nil {
		return *snapshot.ErrorMessage
	}
	return fmt.Sprint(err)
}
