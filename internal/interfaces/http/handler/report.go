package handler

import (
	"github.com/gin-gonic/gin"
	reconapp "github.com/remitflow/backend/internal/application/reconciliation"
)

// ReportHandler handles AR aging report endpoints
type ReportHandler struct {
	BaseHandler
	agingService *reconapp.AgingReportService
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(agingService *reconapp.AgingReportService) *ReportHandler {
	return &ReportHandler{
		agingService: agingService,
	}
}

// RegisterRoutes registers report routes on the given group
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	reports := rg.Group("/reports")
	{
		reports.GET("/aging", h.Aging)
	}
}

// Aging builds the AR aging report from outstanding claims.
//
// Query parameters:
//   - as_of_date: report reference date (default today)
//   - payer_id: restrict to one payer
//   - program_id: restrict to one program
//   - refresh: bypass the report cache
func (h *ReportHandler) Aging(c *gin.Context) {
	asOf, err := parseOptionalDateQuery(c, "as_of_date")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	payerID, err := parseOptionalUUIDQuery(c, "payer_id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	programID, err := parseOptionalUUIDQuery(c, "program_id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	req := reconapp.AgingReportRequest{
		AsOfDate:  asOf,
		PayerID:   payerID,
		ProgramID: programID,
		Refresh:   parseBoolQuery(c, "refresh"),
	}

	report, err := h.agingService.GetAgingReport(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}
