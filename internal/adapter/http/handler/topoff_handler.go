package handler

import (
	"wallet-platform/internal/adapter/http/dto"
	"wallet-platform/internal/adapter/http/middleware"
	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"
	"wallet-platform/pkg/apperror"
	"wallet-platform/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TopoffHandler starts wallet top-offs through payment gateways.
type TopoffHandler struct {
	topoffSvc ports.TopoffService
	userRepo  ports.UserRepository
}

// NewTopoffHandler creates a new TopoffHandler.
func NewTopoffHandler(topoffSvc ports.TopoffService, userRepo ports.UserRepository) *TopoffHandler {
	return &TopoffHandler{
		topoffSvc: topoffSvc,
		userRepo:  userRepo,
	}
}

// Topoff handles POST /api/v1/topoff. The response carries the gateway
// redirect the payer's browser must follow.
func (h *TopoffHandler) Topoff(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TopoffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	requester, err := h.userRepo.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	if requester == nil {
		response.Error(c, apperror.ErrUserNotFound())
		return
	}

	target := requester
	if req.TargetUserID != nil {
		if requester.Type != domain.UserTypeAgency {
			response.Error(c, apperror.ErrPermissionDenied())
			return
		}
		targetID, err := uuid.Parse(*req.TargetUserID)
		if err != nil {
			response.Error(c, apperror.Validation("invalid target_user_id"))
			return
		}
		target, err = h.userRepo.GetByID(c.Request.Context(), targetID)
		if err != nil {
			response.Error(c, apperror.InternalError(err))
			return
		}
		if target == nil {
			response.Error(c, apperror.ErrUserNotFound())
			return
		}
	}

	handle, err := h.topoffSvc.Topoff(c.Request.Context(), ports.TopoffRequest{
		RequestedBy: requester,
		TargetUser:  target,
		Amount:      req.Amount,
		Currency:    domain.Currency(req.Currency),
		Note:        req.Note,
		Reference:   req.Reference,
		ReturnURL:   req.ReturnURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.TopoffResponse{
		Type:  handle.Type,
		URL:   handle.URL,
		Token: handle.Token,
	})
}
