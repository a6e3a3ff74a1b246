package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	ledgerdomain "github.com/smallbiznis/loyaltree/internal/ledger/domain"
	levelcapdomain "github.com/smallbiznis/loyaltree/internal/levelcap/domain"
	memberdomain "github.com/smallbiznis/loyaltree/internal/member/domain"
	purchasedomain "github.com/smallbiznis/loyaltree/internal/purchase/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	// Retryable marks conflicts the caller should resolve by retrying the
	// whole operation.
	Retryable bool `json:"retryable,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, memberdomain.ErrNotFound),
		errors.Is(err, purchasedomain.ErrOrderNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}

	case errors.Is(err, memberdomain.ErrDuplicateCode),
		errors.Is(err, memberdomain.ErrRootExists),
		errors.Is(err, purchasedomain.ErrDuplicateOrder):
		return http.StatusConflict, errorPayload{Type: "duplicate", Message: err.Error()}

	case errors.Is(err, levelcapdomain.ErrCapacityExceeded):
		// The typed error message names the full level and its capacity.
		return http.StatusConflict, errorPayload{Type: "capacity_exceeded", Message: err.Error()}

	case errors.Is(err, memberdomain.ErrHasDescendants):
		return http.StatusConflict, errorPayload{Type: "has_descendants", Message: err.Error()}

	case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		// The typed error message carries the available balance.
		return http.StatusConflict, errorPayload{Type: "insufficient_balance", Message: err.Error()}

	case errors.Is(err, ledgerdomain.ErrConcurrencyConflict):
		return http.StatusConflict, errorPayload{Type: "concurrency_conflict", Message: err.Error(), Retryable: true}

	case errors.Is(err, purchasedomain.ErrInvalidTransition),
		errors.Is(err, purchasedomain.ErrOrderCancelled),
		errors.Is(err, purchasedomain.ErrRewardsNotApplied):
		return http.StatusConflict, errorPayload{Type: "invalid_state", Message: err.Error()}

	case errors.Is(err, memberdomain.ErrParentNotFound):
		return http.StatusUnprocessableEntity, errorPayload{Type: "parent_not_found", Message: err.Error()}

	case errors.Is(err, memberdomain.ErrInvalidCode),
		errors.Is(err, levelcapdomain.ErrInvalidLevel),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, purchasedomain.ErrInvalidOrderAmount),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}

	case errors.Is(err, memberdomain.ErrCycleDetected):
		return http.StatusInternalServerError, errorPayload{Type: "data_integrity", Message: err.Error()}

	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal error"}
	}
}
