package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleListCategories returns all categories with live task counts.
func (s *Server) handleListCategories(c *gin.Context) {
	categories, err := s.store.ListCategories(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"categories": categories})
}

// handleGetCategory returns a single category.
func (s *Server) handleGetCategory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	category, err := s.store.GetCategory(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"category": category})
}
