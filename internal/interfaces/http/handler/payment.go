package handler

import (
	"github.com/gin-gonic/gin"
	reconapp "github.com/remitflow/backend/internal/application/reconciliation"
)

// PaymentHandler handles payment and reconciliation API endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *reconapp.PaymentService
	batchService   *reconapp.BatchReconcileService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *reconapp.PaymentService, batchService *reconapp.BatchReconcileService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		batchService:   batchService,
	}
}

// RegisterRoutes registers payment routes on the given group
func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("", h.Create)
		payments.GET("", h.List)
		payments.POST("/batch-reconcile", h.BatchReconcile)
		payments.GET("/:id", h.Get)
		payments.PATCH("/:id", h.Update)
		payments.DELETE("/:id", h.Delete)
		payments.POST("/:id/reconcile", h.Reconcile)
		payments.POST("/:id/reconcile/undo", h.UndoReconcile)
		payments.POST("/:id/reconcile/auto", h.AutoReconcile)
		payments.GET("/:id/suggested-matches", h.SuggestedMatches)
		payments.POST("/:id/exception", h.FlagException)
		payments.DELETE("/:id/exception", h.ClearException)
		payments.POST("/:id/retry-notifications", h.RetryNotifications)
	}
}

// Create records a new payer payment
func (h *PaymentHandler) Create(c *gin.Context) {
	var req reconapp.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.CreatePayment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, payment)
}

// Get returns one payment with its allocations
func (h *PaymentHandler) Get(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}

// List returns payments matching the filter, paginated
func (h *PaymentHandler) List(c *gin.Context) {
	payerID, err := parseOptionalUUIDQuery(c, "payer_id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	dateFrom, err := parseOptionalDateQuery(c, "date_from")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	dateTo, err := parseOptionalDateQuery(c, "date_to")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := reconapp.PaymentListFilter{
		Search:   c.Query("search"),
		PayerID:  payerID,
		Status:   c.Query("status"),
		Method:   c.Query("method"),
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
	}

	page, err := h.paymentService.ListPayments(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Update changes mutable payment fields (check number, notes)
func (h *PaymentHandler) Update(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req reconapp.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.UpdatePayment(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}

// Delete removes an unallocated payment
func (h *PaymentHandler) Delete(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.paymentService.DeletePayment(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Reconcile manually allocates a payment to claims
func (h *PaymentHandler) Reconcile(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req reconapp.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.paymentService.Reconcile(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// UndoReconcile reverses a payment's allocations back to OPEN
func (h *PaymentHandler) UndoReconcile(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.paymentService.UndoReconciliation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// AutoReconcile applies suggested matches above the confidence threshold
func (h *PaymentHandler) AutoReconcile(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	// Body is optional: an empty body means default threshold
	var req reconapp.AutoReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	result, err := h.paymentService.AutoReconcile(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// SuggestedMatches returns scored candidate claims for a payment
func (h *PaymentHandler) SuggestedMatches(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	matches, err := h.paymentService.SuggestedMatches(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, matches)
}

// FlagException marks a payment for manual review
func (h *PaymentHandler) FlagException(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req reconapp.FlagExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.FlagException(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}

// ClearException clears a payment's exception flag
func (h *PaymentHandler) ClearException(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	payment, err := h.paymentService.ClearException(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, payment)
}

// RetryNotifications re-sends claim payment notifications for a reconciled payment
func (h *PaymentHandler) RetryNotifications(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.paymentService.RetryClaimNotifications(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// BatchReconcile reconciles many payments in one request.
// Completed items stay committed even when later items fail.
func (h *PaymentHandler) BatchReconcile(c *gin.Context) {
	var req reconapp.BatchReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.batchService.Reconcile(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
