package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetLevelOccupancy(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	snapshot, err := s.levelSvc.Snapshot(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}
