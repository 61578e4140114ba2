package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tourism/backoffice/internal/domain/cashback"
	"github.com/tourism/backoffice/internal/infrastructure/scheduler"
	"github.com/tourism/backoffice/internal/interfaces/http/locale"
	"go.uber.org/zap"
)

// GrantFinder lists the grants a client can spend
type GrantFinder interface {
	FindApplicableGrants(ctx context.Context, clientID uuid.UUID, now time.Time) ([]cashback.Grant, error)
}

// ExpiryRunner runs one cashback expiry sweep
type ExpiryRunner interface {
	RunOnce(ctx context.Context) (scheduler.ExpiryRunResult, error)
}

// CashbackHandler handles cashback API endpoints
type CashbackHandler struct {
	BaseHandler
	grants GrantFinder
	expiry ExpiryRunner
	now    func() time.Time
}

// NewCashbackHandler creates a new CashbackHandler
func NewCashbackHandler(grants GrantFinder, expiry ExpiryRunner, logger *zap.Logger) *CashbackHandler {
	return &CashbackHandler{
		BaseHandler: newBaseHandler(logger),
		grants:      grants,
		expiry:      expiry,
		now:         time.Now,
	}
}

// ClientCashbackResponse is the cashback a client can spend right now
type ClientCashbackResponse struct {
	ClientID       uuid.UUID       `json:"client_id"`
	Balance        float64         `json:"balance"`
	BalanceDisplay string          `json:"balance_display"`
	Grants         []GrantResponse `json:"grants"`
}

// ExpiryRunResponse reports a manual expiry sweep
type ExpiryRunResponse struct {
	Expired int64     `json:"expired"`
	RanAt   time.Time `json:"ran_at"`
	Skipped bool      `json:"skipped"`
}

// ClientBalance returns the applicable grants of a client, oldest expiry first
// GET /api/v1/clients/:id/cashback
func (h *CashbackHandler) ClientBalance(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid client ID")
		return
	}

	grants, err := h.grants.FindApplicableGrants(c.Request.Context(), clientID, h.now().UTC())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	balance := cashback.SumAmounts(grants)
	resp := ClientCashbackResponse{
		ClientID:       clientID,
		Balance:        balance.InexactFloat64(),
		BalanceDisplay: locale.FormatMoney(balance),
		Grants:         make([]GrantResponse, 0, len(grants)),
	}
	for _, g := range grants {
		resp.Grants = append(resp.Grants, ToGrantResponse(g))
	}

	h.Success(c, resp)
}

// TriggerExpiry runs the expiry sweep now, under the same lock as the daily run
// POST /api/v1/cashback/expire
func (h *CashbackHandler) TriggerExpiry(c *gin.Context) {
	result, err := h.expiry.RunOnce(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, ExpiryRunResponse{
		Expired: result.Expired,
		RanAt:   result.RanAt,
		Skipped: result.Skipped,
	})
}
