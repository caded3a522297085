package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CodeFleck/sensorvision-sub002/internal/duckdb"
	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

// pathID parses a numeric path parameter, writing a 400 on failure.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// storeError maps store sentinels onto status codes.
func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, duckdb.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, duckdb.ErrShareExpired):
		c.JSON(http.StatusGone, gin.H{"error": "share link expired"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// trashTTL converts the stored retention policy into the lifetime of a
// new trash entry. Zero days means entries never expire.
func (s *Server) trashTTL() time.Duration {
	policy, err := s.deps.Store.RetentionPolicy()
	if err != nil {
		policy = model.DefaultRetentionPolicy()
	}
	return time.Duration(policy.TrashDays) * 24 * time.Hour
}
