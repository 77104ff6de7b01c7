package api

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/contact-cards/internal/metrics"
	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
	"gitlab.com/dirk.krummacker/contact-cards/internal/qrcode"
	"gitlab.com/dirk.krummacker/contact-cards/internal/scanner"
	wire "gitlab.com/dirk.krummacker/contact-cards/pkg/model"
)

// Scan statuses.
const (
	ScanScanning   = "scanning"
	ScanProcessing = "processing"
	ScanAccepted   = "accepted"
	ScanInvalid    = "invalid"
	ScanFailed     = "failed"
)

// invalidCode is shown when a scanned code does not carry a contact.
const invalidCode = "invalid code"

// permissionRequest is what the client knows about the camera permission.
type permissionRequest struct {
	Granted         bool `json:"granted"`
	ShowRationale   bool `json:"showRationale"`
	RequestedBefore bool `json:"requestedBefore"`
}

// scan is a scan session together with the outcome of its accepted code.
type scan struct {
	session *scanner.Session
	idle    *time.Timer

	mu      sync.Mutex
	gen     uint64
	status  string
	message string
	contact *model.Contact
}

func (sc *scan) snapshot() wire.ScanStatus {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	st := wire.ScanStatus{
		ID:      sc.session.ID(),
		Status:  sc.status,
		Message: sc.message,
	}
	if sc.contact != nil {
		wc := wire.Contact(toUserData(*sc.contact))
		st.Contact = &wc
	}
	return st
}

func (sc *scan) reset() {
	sc.mu.Lock()
	sc.gen++
	sc.status = ScanScanning
	sc.message = ""
	sc.contact = nil
	sc.mu.Unlock()
	sc.session.Reset()
}

func toUserData(c model.Contact) wire.UserData {
	return wire.UserData{
		UUID:        c.UUID,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		BirthDate:   c.BirthDate,
		Phone:       c.Phone,
		PhotoURL:    c.PhotoURL,
		Email:       c.Email,
		Gender:      c.Gender,
		Age:         c.Age,
		Nationality: c.Nationality,
		Street:      c.Street,
		City:        c.City,
		State:       c.State,
		Country:     c.Country,
	}
}

// startScan opens a scan session if the camera permission is granted. Otherwise it responds with
// the permission state the client has to resolve first.
//
// Example REST API call:
//
//	> curl http://localhost:8080/scans --request "POST" --header "Content-Type: application/json" --data '{"granted": true}'
func (s *Server) startScan(c *gin.Context) {
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	permission := scanner.PermissionStateFor(req.Granted, req.ShowRationale, req.RequestedBefore)
	if permission != scanner.PermissionGranted {
		c.IndentedJSON(http.StatusOK, gin.H{"permission": permission})
		return
	}

	sc := &scan{status: ScanScanning}
	sc.session = scanner.NewSession(s.decoder, func(payload string) { s.accept(sc, payload) }, s.log)

	id := sc.session.ID()
	s.mu.Lock()
	s.scans[id] = sc
	sc.idle = time.AfterFunc(s.scanIdle, func() { s.expireScan(id) })
	s.mu.Unlock()

	s.log.InfoContext(c.Request.Context(), "scan session started", "session", sc.session.ID())
	c.IndentedJSON(http.StatusCreated, sc.snapshot())
}

// accept parses the decoded payload and stores the contact it carries. A reset during processing
// discards the outcome.
func (s *Server) accept(sc *scan, payload string) {
	sc.mu.Lock()
	gen := sc.gen
	sc.status = ScanProcessing
	sc.mu.Unlock()

	status, message := ScanAccepted, ""
	contact, err := qrcode.ParseContact(payload)
	switch {
	case err != nil:
		s.log.Warn("scanned code is not a contact", "session", sc.session.ID(), "error", err)
		metrics.QRCodesScanned.WithLabelValues(metrics.ResultInvalid).Inc()
		status, message = ScanInvalid, invalidCode
	default:
		if err := s.holder.Upsert(context.Background(), contact); err != nil {
			metrics.QRCodesScanned.WithLabelValues(metrics.ResultFailure).Inc()
			status, message = ScanFailed, errorMessage(s.holder.Snapshot(), err)
		} else {
			metrics.QRCodesScanned.WithLabelValues(metrics.ResultSuccess).Inc()
		}
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if gen != sc.gen {
		return
	}
	sc.status = status
	sc.message = message
	if status == ScanAccepted {
		sc.contact = &contact
	}
}

// lookupScan finds the session of the request and keeps it alive for another idle period.
func (s *Server) lookupScan(c *gin.Context) (*scan, bool) {
	s.mu.Lock()
	sc, ok := s.scans[c.Param("id")]
	if ok {
		sc.idle.Reset(s.scanIdle)
	}
	s.mu.Unlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "scan session not found"})
	}
	return sc, ok
}

// expireScan closes a session that saw no requests for the idle period.
func (s *Server) expireScan(id string) {
	s.mu.Lock()
	_, ok := s.scans[id]
	delete(s.scans, id)
	s.mu.Unlock()
	if ok {
		s.log.Info("scan session expired", "session", id)
	}
}

// getScan responds with the status of the scan session. Once a code was accepted the status
// carries the scanned contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/scans/0f8fad5b-d9cb-469f-a165-70867728950e
func (s *Server) getScan(c *gin.Context) {
	sc, ok := s.lookupScan(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, sc.snapshot())
}

// submitFrame hands one camera frame, uploaded as the multipart field 'frame', to the session.
// Frames arriving while a detection runs or after a code was accepted are dropped.
//
// Example REST API call:
//
//	> curl http://localhost:8080/scans/0f8fad5b-d9cb-469f-a165-70867728950e/frames --form "frame=@photo.png"
func (s *Server) submitFrame(c *gin.Context) {
	sc, ok := s.lookupScan(c)
	if !ok {
		return
	}
	header, err := c.FormFile("frame")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "missing frame"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "missing frame"})
		return
	}
	defer file.Close()
	frame, _, err := image.Decode(file)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid image"})
		return
	}
	if !sc.session.Submit(frame) {
		c.IndentedJSON(http.StatusOK, gin.H{"accepted": false})
		return
	}
	c.IndentedJSON(http.StatusAccepted, gin.H{"accepted": true})
}

// resetScan reopens the session after an accepted or invalid code so that scanning starts over.
//
// Example REST API call:
//
//	> curl http://localhost:8080/scans/0f8fad5b-d9cb-469f-a165-70867728950e/reset --request "POST"
func (s *Server) resetScan(c *gin.Context) {
	sc, ok := s.lookupScan(c)
	if !ok {
		return
	}
	sc.reset()
	c.IndentedJSON(http.StatusOK, sc.snapshot())
}

// endScan closes the scan session.
//
// Example REST API call:
//
//	> curl http://localhost:8080/scans/0f8fad5b-d9cb-469f-a165-70867728950e --request "DELETE"
func (s *Server) endScan(c *gin.Context) {
	s.mu.Lock()
	sc, ok := s.scans[c.Param("id")]
	if ok {
		sc.idle.Stop()
		delete(s.scans, c.Param("id"))
	}
	s.mu.Unlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "scan session not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "scan session ended"})
}
