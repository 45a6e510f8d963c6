package handler

import (
	"errors"

	"wallet-platform/internal/core/ports"
	"wallet-platform/pkg/apperror"
	"wallet-platform/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CallbackHandler receives payment gateway callbacks on one route per
// provider, since each provider has its own parameter vocabulary. The caller
// is the payer's browser bounced off the provider, so every settled outcome
// answers with a redirect, never JSON.
type CallbackHandler struct {
	callbackSvc ports.CallbackService
}

// NewCallbackHandler creates a new CallbackHandler.
func NewCallbackHandler(callbackSvc ports.CallbackService) *CallbackHandler {
	return &CallbackHandler{callbackSvc: callbackSvc}
}

// NextPay handles GET /api/v1/callback/nextpay. NextPay appends
// trans_id (the session token issued at initiate), order_id (our transaction
// id), amount and np_status to the registered callback URI. Only the first
// two identify the transaction; the verify call is the source of truth for
// the outcome, so np_status is ignored.
func (h *CallbackHandler) NextPay(c *gin.Context) {
	txnID, err := uuid.Parse(c.Query("order_id"))
	if err != nil {
		response.Error(c, apperror.ErrTransactionNotFound())
		return
	}

	token := c.Query("trans_id")
	if token == "" {
		response.Error(c, apperror.ErrTransactionNotFound())
		return
	}

	h.settle(c, ports.CallbackRequest{
		TransactionID: txnID,
		Token:         token,
	})
}

// Sep handles GET and POST /api/v1/callback/sep. SEP posts the payer back as
// a form carrying ResNum (our transaction id, echoed from initiate), Token
// (the session token) and RefNum (SEP's reference, required by the verify
// endpoint). Some SEP deployments bounce via GET, so both query and form
// values are read.
func (h *CallbackHandler) Sep(c *gin.Context) {
	txnID, err := uuid.Parse(firstParam(c, "ResNum"))
	if err != nil {
		response.Error(c, apperror.ErrTransactionNotFound())
		return
	}

	token := firstParam(c, "Token", "token")
	if token == "" {
		response.Error(c, apperror.ErrTransactionNotFound())
		return
	}

	req := ports.CallbackRequest{
		TransactionID: txnID,
		Token:         token,
	}
	if ref := firstParam(c, "RefNum"); ref != "" {
		req.IPGReferenceID = &ref
	}

	h.settle(c, req)
}

func (h *CallbackHandler) settle(c *gin.Context, req ports.CallbackRequest) {
	result, err := h.callbackSvc.HandleCallback(c.Request.Context(), req)
	if result != nil {
		// Settled, possibly by an earlier delivery of the same callback.
		// The gateway must see a normal redirect either way, or it retries.
		var appErr *apperror.AppError
		if err != nil && !(errors.As(err, &appErr) && appErr.Code == "GTW_003") {
			response.Error(c, err)
			return
		}
		response.Redirect(c, result.RedirectURL)
		return
	}
	response.Error(c, err)
}

// firstParam returns the first non-empty value among the given query or
// form parameter names.
func firstParam(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := c.Query(name); v != "" {
			return v
		}
		if v := c.PostForm(name); v != "" {
			return v
		}
	}
	return ""
}
