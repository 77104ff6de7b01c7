package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/contact-cards/internal/config"
	"gitlab.com/dirk.krummacker/contact-cards/internal/filter"
	"gitlab.com/dirk.krummacker/contact-cards/internal/metrics"
	"gitlab.com/dirk.krummacker/contact-cards/internal/model"
	"gitlab.com/dirk.krummacker/contact-cards/internal/qrcode"
	"gitlab.com/dirk.krummacker/contact-cards/internal/state"
)

// qrFallback is shown instead of the image when a QR code cannot be rendered.
const qrFallback = "QR code could not be generated"

// listingTimeout bounds the wait for the live listing.
const listingTimeout = 10 * time.Second

// allowedAscending are the allowed values for the 'ascending' URL parameter.
var allowedAscending = []string{"true", "false"}

// findContacts responds with the live listing as JSON, filtered and sorted by last name.
//
// The URL parameter 'q' must be contained in "firstname lastname", ignoring case. The URL parameter
// 'gender' must match the contact's gender, ignoring case. 'minage' and 'maxage' bound the age,
// both inclusive. If 'ascending' is set to 'false' the result starts with the highest last name.
//
// REST API calls:
//
//	> curl "http://localhost:8080/contacts"
//	> curl "http://localhost:8080/contacts?q=eri"
//	> curl "http://localhost:8080/contacts?gender=female&minage=30&maxage=40"
//	> curl "http://localhost:8080/contacts?ascending=false"
func (s *Server) findContacts(c *gin.Context) {
	criteria, success := parseCriteria(c)
	if !success {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), listingTimeout)
	defer cancel()
	contacts, err := s.holder.Current(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "listing not available"})
		return
	}
	c.IndentedJSON(http.StatusOK, filter.Apply(contacts, criteria))
}

// parseCriteria inspects the URL parameters and determines the filter criteria.
func parseCriteria(c *gin.Context) (criteria filter.Criteria, success bool) {
	criteria.Query = strings.TrimSpace(c.Query("q"))
	criteria.Gender = strings.TrimSpace(c.Query("gender"))
	var ok bool
	if criteria.MinAge, ok = parseAge(c, "minage"); !ok {
		return filter.Criteria{}, false
	}
	if criteria.MaxAge, ok = parseAge(c, "maxage"); !ok {
		return filter.Criteria{}, false
	}
	ascending := c.Query("ascending")
	if ascending == "" {
		ascending = "true"
	}
	if !contains(allowedAscending, ascending) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid ascending parameter"})
		return filter.Criteria{}, false
	}
	criteria.Descending = ascending == "false"
	return criteria, true
}

// parseAge reads a non-negative age bound. A missing parameter yields nil.
func parseAge(c *gin.Context, name string) (*int, bool) {
	value := c.Query(name)
	if value == "" {
		return nil, true
	}
	age, err := strconv.Atoi(value)
	if err != nil || age < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid " + name + " parameter"})
		return nil, false
	}
	return &age, true
}

// contains returns true if a string is present in a slice.
func contains(slice []string, str string) bool {
	for _, v := range slice {
		if v == str {
			return true
		}
	}
	return false
}

// streamContacts sends a 'contacts' server-sent event with the full listing whenever it changes,
// starting with the current listing, until the client disconnects.
//
// Example REST API call:
//
//	> curl -N http://localhost:8080/contacts/stream
func (s *Server) streamContacts(c *gin.Context) {
	updates := s.holder.Watch(c.Request.Context())
	c.Stream(func(w io.Writer) bool {
		contacts, ok := <-updates
		if !ok {
			return false
		}
		c.SSEvent("contacts", contacts)
		return true
	})
}

// findContactByID selects the contact whose uuid matches the id parameter of the request URL and
// returns it. The selection lasts as long as the request.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/7a0eed16-9430-4d68-901f-c0d4c1c3bf00
func (s *Server) findContactByID(c *gin.Context) {
	contact, detail := s.holder.SelectByID(c.Request.Context(), c.Param("id"))
	defer s.holder.ClearSelection()

	switch detail {
	case state.DetailFound:
		c.IndentedJSON(http.StatusOK, contact)
	case state.DetailNotFound:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
	default:
		msg := errorMessage(s.holder.Snapshot(), errors.New("contact could not be loaded"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": msg})
	}
}

// upsertContact stores the contact specified in the request's JSON. A contact with the same uuid
// is replaced as a whole. It responds with the stored contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts --request "POST" --include --header "Content-Type: application/json" --data '{"uuid": "42", "firstName": "Erika", "lastName": "Mustermann", "age": 56}'
func (s *Server) upsertContact(c *gin.Context) {
	var contact model.Contact
	if err := c.ShouldBindJSON(&contact); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	if blank(contact.UUID) || blank(contact.FirstName) || blank(contact.LastName) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "uuid, firstName and lastName are required"})
		return
	}
	if err := s.holder.Upsert(c.Request.Context(), contact); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": errorMessage(s.holder.Snapshot(), err)})
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// clearContacts deletes all contacts.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts --request "DELETE"
func (s *Server) clearContacts(c *gin.Context) {
	if err := s.holder.ClearAll(c.Request.Context()); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": errorMessage(s.holder.Snapshot(), err)})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "contacts deleted"})
}

// refreshContacts fetches a new batch of contacts from the remote API and stores them.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/refresh --request "POST"
func (s *Server) refreshContacts(c *gin.Context) {
	stored, err := s.holder.Refresh(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"message": errorMessage(s.holder.Snapshot(), err),
			"stored":  stored,
		})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"stored": stored})
}

// contactQRCode renders the contact as a PNG QR code. The URL parameter 'size' sets the edge
// length in pixels. If the code cannot be rendered, a short text is returned instead.
//
// Example REST API call:
//
//	> curl -o erika.png "http://localhost:8080/contacts/7a0eed16-9430-4d68-901f-c0d4c1c3bf00/qrcode?size=256"
func (s *Server) contactQRCode(c *gin.Context) {
	size := s.qrSize
	if value := c.Query("size"); value != "" {
		var err error
		size, err = strconv.Atoi(value)
		if err != nil || size < config.MinQRSize || size > config.MaxQRSize {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid size parameter"})
			return
		}
	}

	contact, detail := s.holder.SelectByID(c.Request.Context(), c.Param("id"))
	defer s.holder.ClearSelection()
	switch detail {
	case state.DetailFound:
	case state.DetailNotFound:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	default:
		msg := errorMessage(s.holder.Snapshot(), errors.New("contact could not be loaded"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": msg})
		return
	}

	data, err := qrcode.EncodePNG(*contact, size)
	if err != nil {
		metrics.QRCodesEncoded.WithLabelValues(metrics.ResultFailure).Inc()
		s.log.WarnContext(c.Request.Context(), "QR code could not be generated", "uuid", contact.UUID, "error", err)
		c.String(http.StatusOK, qrFallback)
		return
	}
	metrics.QRCodesEncoded.WithLabelValues(metrics.ResultSuccess).Inc()
	c.Data(http.StatusOK, "image/png", data)
}
