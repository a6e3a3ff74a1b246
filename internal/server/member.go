package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
)

type registerMemberRequest struct {
	Code       string `json:"code"`
	ParentCode string `json:"parent_code"`
	Level      int    `json:"level"`
}

func (s *Server) RegisterMember(c *gin.Context) {
	var req registerMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	member, err := s.memberSvc.Register(ctx, memberdomain.RegisterRequest{
		Code:       strings.TrimSpace(req.Code),
		ParentCode: strings.TrimSpace(req.ParentCode),
		Level:      req.Level,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": member})
}

func (s *Server) GetMemberSnapshot(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	snapshot, err := s.memberSvc.Snapshot(ctx, c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

func (s *Server) RemoveMember(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.memberSvc.Remove(ctx, c.Param("code")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetAncestorChain(c *gin.Context) {
	depth := s.cfg.MaxDistributionDepth()
	if raw := strings.TrimSpace(c.Query("depth")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		depth = parsed
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	chain, err := s.memberSvc.AncestorChain(ctx, c.Param("code"), depth)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	codes := make([]string, 0, len(chain))
	for _, ancestor := range chain {
		codes = append(codes, ancestor.Code)
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"ancestors": codes}})
}

func (s *Server) GetTree(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	tree, err := s.memberSvc.Tree(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tree})
}
