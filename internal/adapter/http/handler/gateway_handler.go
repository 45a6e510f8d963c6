package handler

import (
	"net/http"
	"time"

	"wallet-platform/internal/adapter/http/dto"
	"wallet-platform/internal/adapter/http/middleware"
	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"
	"wallet-platform/pkg/apperror"
	"wallet-platform/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GatewayHandler handles gateway configuration and gateway transaction
// endpoints. All routes sit behind agency-level scopes.
type GatewayHandler struct {
	gatewayRepo ports.GatewayRepository
	gwTxnRepo   ports.GatewayTransactionRepository
}

// NewGatewayHandler creates a new GatewayHandler.
func NewGatewayHandler(gatewayRepo ports.GatewayRepository, gwTxnRepo ports.GatewayTransactionRepository) *GatewayHandler {
	return &GatewayHandler{
		gatewayRepo: gatewayRepo,
		gwTxnRepo:   gwTxnRepo,
	}
}

func errGatewayNotFound() *apperror.AppError {
	return apperror.New("GTW_001", "Gateway not found", http.StatusNotFound)
}

// Create handles POST /api/v1/gateways.
func (h *GatewayHandler) Create(c *gin.Context) {
	gw, ok := bindGateway(c)
	if !ok {
		return
	}
	gw.ID = uuid.New()
	now := time.Now().UTC()
	gw.CreatedAt = now
	gw.UpdatedAt = now

	if err := h.gatewayRepo.Create(c.Request.Context(), gw); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	response.Created(c, dto.FromGateway(gw))
}

// List handles GET /api/v1/gateways.
func (h *GatewayHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)

	gateways, total, err := h.gatewayRepo.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	items := make([]dto.GatewayResponse, 0, len(gateways))
	for i := range gateways {
		items = append(items, dto.FromGateway(&gateways[i]))
	}
	response.List(c, items, total, page, pageSize)
}

// Get handles GET /api/v1/gateways/:id.
func (h *GatewayHandler) Get(c *gin.Context) {
	gw, ok := h.loadGateway(c)
	if !ok {
		return
	}
	response.OK(c, dto.FromGateway(gw))
}

// Update handles PUT /api/v1/gateways/:id.
func (h *GatewayHandler) Update(c *gin.Context) {
	existing, ok := h.loadGateway(c)
	if !ok {
		return
	}
	gw, ok := bindGateway(c)
	if !ok {
		return
	}
	gw.ID = existing.ID
	gw.CreatedAt = existing.CreatedAt

	if err := h.gatewayRepo.Update(c.Request.Context(), gw); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	response.OK(c, dto.FromGateway(gw))
}

// Delete handles DELETE /api/v1/gateways/:id.
func (h *GatewayHandler) Delete(c *gin.Context) {
	gw, ok := h.loadGateway(c)
	if !ok {
		return
	}
	if err := h.gatewayRepo.Delete(c.Request.Context(), gw.ID); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// ListTransactions handles GET /api/v1/gateway-transactions. Non-agency
// users only see their own transactions regardless of filters.
func (h *GatewayHandler) ListTransactions(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	page, pageSize := pagination(c)

	params := ports.GatewayTransactionListParams{Page: page, PageSize: pageSize}
	if claims.Type != domain.UserTypeAgency {
		uid := claims.UserID
		params.UserID = &uid
	} else if v := c.Query("user_id"); v != "" {
		uid, err := uuid.Parse(v)
		if err != nil {
			response.Error(c, apperror.Validation("invalid user_id"))
			return
		}
		params.UserID = &uid
	}
	if v := c.Query("gateway_id"); v != "" {
		gid, err := uuid.Parse(v)
		if err != nil {
			response.Error(c, apperror.Validation("invalid gateway_id"))
			return
		}
		params.GatewayID = &gid
	}
	if v := c.Query("status"); v != "" {
		status := domain.TransactionStatus(v)
		params.Status = &status
	}
	if v := c.Query("currency"); v != "" {
		currency := domain.Currency(v)
		params.Currency = &currency
	}

	txns, total, err := h.gwTxnRepo.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	items := make([]dto.GatewayTransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.FromGatewayTransaction(&txns[i]))
	}
	response.List(c, items, total, page, pageSize)
}

func (h *GatewayHandler) loadGateway(c *gin.Context) (*domain.Gateway, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid gateway id"))
		return nil, false
	}

	gw, err := h.gatewayRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return nil, false
	}
	if gw == nil {
		response.Error(c, errGatewayNotFound())
		return nil, false
	}
	return gw, true
}

func bindGateway(c *gin.Context) (*domain.Gateway, bool) {
	var req dto.GatewayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return nil, false
	}
	dto.SanitizeStruct(&req)

	gwType := domain.GatewayType(req.Type)
	if !gwType.Valid() {
		response.Error(c, apperror.Validation("unsupported gateway type"))
		return nil, false
	}
	currency := domain.Currency(req.Currency)
	if !currency.Valid() {
		response.Error(c, apperror.Validation("unsupported currency"))
		return nil, false
	}

	return &domain.Gateway{
		Name:        req.Name,
		Type:        gwType,
		TerminalID:  req.TerminalID,
		MerchantID:  req.MerchantID,
		MerchantKey: req.MerchantKey,
		Password:    req.Password,
		CallbackURL: req.CallbackURL,
		BaseURL:     req.BaseURL,
		Currency:    currency,
		Priority:    req.Priority,
		IsActive:    req.IsActive,
		UpdatedAt:   time.Now().UTC(),
	}, true
}
