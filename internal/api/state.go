package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getState responds with the display mode, the selected contact, the state of the detail view
// and the last error message.
//
// Example REST API call:
//
//	> curl http://localhost:8080/state
func (s *Server) getState(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.holder.Snapshot())
}

// toggleDisplayMode flips the display mode and responds with the new value.
//
// Example REST API call:
//
//	> curl http://localhost:8080/state/display-mode --request "POST"
func (s *Server) toggleDisplayMode(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{"displayMode": s.holder.ToggleDisplayMode()})
}

// clearError forgets the last error message.
//
// Example REST API call:
//
//	> curl http://localhost:8080/state/error --request "DELETE"
func (s *Server) clearError(c *gin.Context) {
	s.holder.ClearError()
	c.IndentedJSON(http.StatusOK, gin.H{"message": "error cleared"})
}
