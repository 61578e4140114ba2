package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appsales "github.com/tourism/backoffice/internal/application/sales"
	"github.com/tourism/backoffice/internal/domain/sales"
	"github.com/tourism/backoffice/internal/domain/shared"
	"github.com/tourism/backoffice/internal/infrastructure/logger"
	"github.com/tourism/backoffice/internal/interfaces/http/dto"
	"github.com/tourism/backoffice/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

const (
	idempotencyKeyPrefix    = "sale:create:"
	maxIdempotencyKeyLength = 255
)

// SaleService is the sale use case surface the handler drives
type SaleService interface {
	CreateSale(ctx context.Context, in appsales.SaleInput) (*appsales.SaleResult, error)
	UpdateSale(ctx context.Context, id uuid.UUID, in appsales.SaleInput) (*appsales.SaleResult, error)
	CancelSale(ctx context.Context, id uuid.UUID) (*sales.Sale, error)
	DeleteSale(ctx context.Context, id uuid.UUID) error
	GetSale(ctx context.Context, id uuid.UUID) (*appsales.SaleResult, error)
}

// SaleHandlerConfig holds the handler's locale and idempotency settings
type SaleHandlerConfig struct {
	Location       *time.Location
	IdempotencyTTL time.Duration
}

// SaleHandler handles sale API endpoints
type SaleHandler struct {
	BaseHandler
	service        SaleService
	idempotency    shared.IdempotencyStore
	loc            *time.Location
	idempotencyTTL time.Duration
}

// NewSaleHandler creates a new SaleHandler. A nil store disables Idempotency-Key handling.
func NewSaleHandler(service SaleService, idempotency shared.IdempotencyStore, cfg SaleHandlerConfig, logger *zap.Logger) *SaleHandler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}
	return &SaleHandler{
		BaseHandler:    newBaseHandler(logger),
		service:        service,
		idempotency:    idempotency,
		loc:            cfg.Location,
		idempotencyTTL: cfg.IdempotencyTTL,
	}
}

// Create records a new sale
// POST /api/v1/sales
func (h *SaleHandler) Create(c *gin.Context) {
	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	in, details := req.ToInput(h.loc)
	if len(details) > 0 {
		h.ValidationError(c, details)
		return
	}

	ctx := c.Request.Context()
	claimedKey, ok := h.claimIdempotencyKey(c)
	if !ok {
		return
	}
	if claimedKey != "" {
		ctx = logger.WithIdempotencyKey(ctx, c.GetHeader(middleware.IdempotencyKeyHeader))
	}

	result, err := h.service.CreateSale(ctx, in)
	if err != nil {
		if claimedKey != "" {
			if relErr := h.idempotency.Release(context.WithoutCancel(ctx), claimedKey); relErr != nil {
				h.logger.Warn("Failed to release idempotency key",
					zap.String("key", claimedKey),
					zap.Error(relErr))
			}
		}
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, ToSaleResultResponse(result, h.loc))
}

// claimIdempotencyKey claims the request's Idempotency-Key, if any.
// It returns the claimed store key, or ok=false once a response has been written.
// An unavailable store does not block the sale; the request proceeds unguarded.
func (h *SaleHandler) claimIdempotencyKey(c *gin.Context) (string, bool) {
	key := c.GetHeader(middleware.IdempotencyKeyHeader)
	if key == "" || h.idempotency == nil {
		return "", true
	}
	if len(key) > maxIdempotencyKeyLength {
		h.BadRequest(c, "Idempotency-Key cannot exceed 255 characters")
		return "", false
	}

	storeKey := idempotencyKeyPrefix + key
	claimed, err := h.idempotency.MarkProcessed(c.Request.Context(), storeKey, h.idempotencyTTL)
	if err != nil {
		h.logger.Warn("Idempotency store unavailable, proceeding without it",
			zap.String("request_id", getRequestID(c)),
			zap.Error(err))
		return "", true
	}
	if !claimed {
		h.Conflict(c, dto.ErrCodeDuplicateRequest, shared.ErrDuplicateRequest.Message)
		return "", false
	}
	return storeKey, true
}

// Update edits an existing sale
// PUT /api/v1/sales/:id
func (h *SaleHandler) Update(c *gin.Context) {
	id, ok := h.saleID(c)
	if !ok {
		return
	}

	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	in, details := req.ToInput(h.loc)
	if len(details) > 0 {
		h.ValidationError(c, details)
		return
	}

	result, err := h.service.UpdateSale(c.Request.Context(), id, in)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, ToSaleResultResponse(result, h.loc))
}

// GetByID returns a sale with its lines, invoice and cashback
// GET /api/v1/sales/:id
func (h *SaleHandler) GetByID(c *gin.Context) {
	id, ok := h.saleID(c)
	if !ok {
		return
	}

	result, err := h.service.GetSale(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, ToSaleResultResponse(result, h.loc))
}

// Cancel flags a sale as cancelled
// POST /api/v1/sales/:id/cancel
func (h *SaleHandler) Cancel(c *gin.Context) {
	id, ok := h.saleID(c)
	if !ok {
		return
	}

	sale, err := h.service.CancelSale(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, ToSaleResponse(sale, h.loc))
}

// Delete removes a sale and everything it owns
// DELETE /api/v1/sales/:id
func (h *SaleHandler) Delete(c *gin.Context) {
	id, ok := h.saleID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteSale(c.Request.Context(), id); err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.NoContent(c)
}

func (h *SaleHandler) saleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid sale ID")
		return uuid.Nil, false
	}
	return id, true
}
