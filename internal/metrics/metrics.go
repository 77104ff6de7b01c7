// Package metrics holds the Prometheus metrics of the contacts service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultInvalid = "invalid"
)

var (
	// Refreshes counts remote refresh attempts by result.
	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_refresh_total",
		Help: "Total number of remote refresh attempts",
	}, []string{"result"})

	// ContactsStored counts contacts written to the store.
	ContactsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contacts_stored_total",
		Help: "Total number of contacts inserted or replaced",
	})

	// ContactsListed is the number of contacts in the latest listing.
	ContactsListed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contacts_listed",
		Help: "Number of contacts in the latest live listing",
	})

	// QRCodesEncoded counts QR code renderings by result.
	QRCodesEncoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_qrcode_encoded_total",
		Help: "Total number of QR code images rendered",
	}, []string{"result"})

	// QRCodesScanned counts accepted scans by result.
	QRCodesScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_qrcode_scanned_total",
		Help: "Total number of decoded QR codes by parse result",
	}, []string{"result"})

	// FramesDropped counts frames that were released without a detection attempt.
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contacts_scan_frames_dropped_total",
		Help: "Total number of scan frames dropped because a detection was in flight or the session was latched",
	})
)
