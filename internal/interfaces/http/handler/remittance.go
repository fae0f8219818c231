package handler

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	reconapp "github.com/remitflow/backend/internal/application/reconciliation"
)

// RemittanceHandler handles remittance advice ingestion endpoints
type RemittanceHandler struct {
	BaseHandler
	importService *reconapp.RemittanceImportService
}

// NewRemittanceHandler creates a new RemittanceHandler
func NewRemittanceHandler(importService *reconapp.RemittanceImportService) *RemittanceHandler {
	return &RemittanceHandler{
		importService: importService,
	}
}

// RegisterRoutes registers remittance routes on the given group
func (h *RemittanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	remittances := rg.Group("/remittances")
	{
		remittances.POST("/import", h.Import)
		remittances.GET("", h.List)
		remittances.GET("/:id", h.Get)
	}
}

// Import ingests one remittance advice file uploaded as multipart form data.
//
// Form fields:
//   - file: the remittance file (required)
//   - file_type: EDI835, CSV, ... (default inferred from the file extension)
//   - payer_id: overrides payer resolution from the file content
//   - payment_method: overrides the method derived from the file
//   - mapping_config: JSON field mapping, required for CUSTOM files
//   - auto_reconcile: run auto-reconciliation after import
func (h *RemittanceHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "Missing file upload: "+err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.BadRequest(c, "Cannot open uploaded file: "+err.Error())
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.InternalError(c, "Failed to read uploaded file")
		return
	}

	fileType := c.PostForm("file_type")
	if fileType == "" {
		fileType = inferFileType(fileHeader.Filename)
	}

	payerID, err := parseOptionalUUIDForm(c, "payer_id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var mapping *reconapp.FieldMapping
	if raw := c.PostForm("mapping_config"); raw != "" {
		mapping = &reconapp.FieldMapping{}
		if err := json.Unmarshal([]byte(raw), mapping); err != nil {
			h.BadRequest(c, "Invalid mapping_config: "+err.Error())
			return
		}
	}

	req := reconapp.ImportRemittanceRequest{
		FileType:      fileType,
		FileName:      fileHeader.Filename,
		Content:       content,
		PayerID:       payerID,
		PaymentMethod: c.PostForm("payment_method"),
		MappingConfig: mapping,
		AutoReconcile: parseBoolForm(c, "auto_reconcile"),
	}

	result, err := h.importService.Import(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// Get returns one remittance with its detail lines
func (h *RemittanceHandler) Get(c *gin.Context) {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	remittance, err := h.importService.GetRemittance(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, remittance)
}

// List returns remittances matching the filter, paginated
func (h *RemittanceHandler) List(c *gin.Context) {
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

	filter := reconapp.RemittanceListFilter{
		Search:   c.Query("search"),
		PayerID:  payerID,
		FileType: c.Query("file_type"),
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 20),
	}

	page, err := h.importService.ListRemittances(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// inferFileType maps a file extension to a remittance file type
func inferFileType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".835", ".edi", ".x12":
		return "EDI835"
	case ".csv":
		return "CSV"
	case ".xls", ".xlsx":
		return "EXCEL"
	case ".pdf":
		return "PDF"
	default:
		return ""
	}
}
