package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	purchasedomain "github.com/smallbiznis/loyaltree/internal/purchase/domain"
)

type createOrderRequest struct {
	OrderID    string `json:"order_id"`
	MemberCode string `json:"member_code"`
	Amount     string `json:"amount"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		AbortWithError(c, purchasedomain.ErrInvalidOrderAmount)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	order, err := s.purchaseSvc.Create(ctx, purchasedomain.CreateOrderRequest{
		OrderID:    strings.TrimSpace(req.OrderID),
		MemberCode: strings.TrimSpace(req.MemberCode),
		Amount:     amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": order})
}

func (s *Server) GetOrder(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	order, err := s.purchaseSvc.Get(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

type transitionOrderRequest struct {
	Status string `json:"status"`
}

func (s *Server) TransitionOrder(c *gin.Context) {
	var req transitionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	order, err := s.purchaseSvc.Transition(ctx, c.Param("id"), purchasedomain.OrderStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) ProcessOrder(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	receipt, err := s.purchaseSvc.ProcessOrder(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": receipt})
}

func (s *Server) GetReceipt(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	receipt, err := s.purchaseSvc.Receipt(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": receipt})
}
