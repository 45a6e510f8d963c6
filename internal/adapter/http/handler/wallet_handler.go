package handler

import (
	"strconv"

	"wallet-platform/internal/adapter/http/dto"
	"wallet-platform/internal/adapter/http/middleware"
	"wallet-platform/internal/core/domain"
	"wallet-platform/internal/core/ports"
	"wallet-platform/pkg/apperror"
	"wallet-platform/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet and ledger endpoints.
type WalletHandler struct {
	walletRepo ports.WalletRepository
	entryRepo  ports.WalletTransactionRepository
	ledger     ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletRepo ports.WalletRepository, entryRepo ports.WalletTransactionRepository, ledger ports.LedgerService) *WalletHandler {
	return &WalletHandler{
		walletRepo: walletRepo,
		entryRepo:  entryRepo,
		ledger:     ledger,
	}
}

// List handles GET /api/v1/wallets. Business users see their business's
// wallets, everyone else their own.
func (h *WalletHandler) List(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var (
		wallets []domain.Wallet
		err     error
	)
	if claims.Type == domain.UserTypeBusiness && claims.BusinessID != nil {
		wallets, err = h.walletRepo.ListByBusinessID(c.Request.Context(), *claims.BusinessID)
	} else {
		wallets, err = h.walletRepo.ListByUserID(c.Request.Context(), claims.UserID)
	}
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	items := make([]dto.WalletResponse, 0, len(wallets))
	for i := range wallets {
		items = append(items, dto.FromWallet(&wallets[i]))
	}
	response.OK(c, items)
}

// Get handles GET /api/v1/wallets/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	wallet, ok := h.loadAccessibleWallet(c)
	if !ok {
		return
	}
	response.OK(c, dto.FromWallet(wallet))
}

// ListTransactions handles GET /api/v1/wallets/:id/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	wallet, ok := h.loadAccessibleWallet(c)
	if !ok {
		return
	}
	page, pageSize := pagination(c)

	entries, total, err := h.entryRepo.ListByWallet(c.Request.Context(), wallet.ID, page, pageSize)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	items := make([]dto.WalletTransactionResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.FromWalletTransaction(&entries[i]))
	}
	response.List(c, items, total, page, pageSize)
}

// Credit handles POST /api/v1/wallets/:id/transactions, a direct ledger
// mutation. A negative amount debits the wallet.
func (h *WalletHandler) Credit(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	wallet, ok := h.loadAccessibleWallet(c)
	if !ok {
		return
	}

	var req dto.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.ledger.CreditWallet(c.Request.Context(), ports.CreditRequest{
		WalletID:    wallet.ID,
		Amount:      req.Amount,
		Currency:    wallet.Currency,
		PerformedBy: claims.UserID,
		Note:        req.Note,
		Reference:   req.Reference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromWalletTransaction(entry))
}

// UpdateLimit handles PATCH /api/v1/wallets/:id/limit.
func (h *WalletHandler) UpdateLimit(c *gin.Context) {
	wallet, ok := h.loadAccessibleWallet(c)
	if !ok {
		return
	}

	var req dto.UpdateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if req.Limit.IsNegative() {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	if err := h.walletRepo.UpdateLimit(c.Request.Context(), wallet.ID, req.Limit); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	wallet.Limit = req.Limit
	response.OK(c, dto.FromWallet(wallet))
}

// loadAccessibleWallet resolves the :id path param and enforces ownership.
// Agency users can reach any wallet; everyone else only wallets owned by
// their account or business.
func (h *WalletHandler) loadAccessibleWallet(c *gin.Context) (*domain.Wallet, bool) {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		response.Error(c, apperror.ErrInvalidToken())
		return nil, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return nil, false
	}

	wallet, err := h.walletRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return nil, false
	}
	if wallet == nil {
		response.Error(c, apperror.ErrWalletNotFound())
		return nil, false
	}

	if !canAccessWallet(claims, wallet) {
		response.Error(c, apperror.ErrPermissionDenied())
		return nil, false
	}
	return wallet, true
}

func canAccessWallet(claims *ports.TokenClaims, w *domain.Wallet) bool {
	if claims.Type == domain.UserTypeAgency {
		return true
	}
	if w.UserID == claims.UserID {
		return true
	}
	return w.BusinessID != nil && claims.BusinessID != nil && *w.BusinessID == *claims.BusinessID
}

// pagination reads page/page_size query params with sane bounds.
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
