package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetWallet(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	wallet, err := s.ledgerSvc.Wallet(ctx, c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": wallet})
}

func (s *Server) ListWalletTransactions(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	txns, err := s.ledgerSvc.Transactions(ctx, c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"transactions": txns}})
}

type redeemCoinsRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) RedeemCoins(c *gin.Context) {
	var req redeemCoinsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.ledgerSvc.RedeemCoins(ctx, c.Param("code"), req.Amount); err != nil {
		AbortWithError(c, err)
		return
	}

	wallet, err := s.ledgerSvc.Wallet(ctx, c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": wallet})
}

func (s *Server) RebuildWallet(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	wallet, err := s.ledgerSvc.RebuildWallet(ctx, c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": wallet})
}
