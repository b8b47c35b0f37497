package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/gaihekinavi/platform/internal/invoice/domain"
	"github.com/gin-gonic/gin"
)

type generateResultView struct {
	PartnerID string                 `json:"partner_id"`
	Invoice   *invoicedomain.Invoice `json:"invoice,omitempty"`
	Skipped   bool                   `json:"skipped"`
	Error     string                 `json:"error,omitempty"`
}

func (s *Server) GenerateInvoices(c *gin.Context) {
	var req struct {
		Mode        string   `json:"mode"`
		Year        int      `json:"year"`
		Month       int      `json:"month"`
		PartnerIDs  []string `json:"partner_ids"`
		GeneratedBy string   `json:"generated_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	partnerIDs := make([]snowflake.ID, 0, len(req.PartnerIDs))
	for _, raw := range req.PartnerIDs {
		id, err := parseSnowflake(raw)
		if err != nil {
			AbortWithError(c, newValidationError("partner_ids", "invalid_id", "invalid id"))
			return
		}
		partnerIDs = append(partnerIDs, id)
	}

	in := invoicedomain.GenerateInput{
		Year:        req.Year,
		Month:       time.Month(req.Month),
		PartnerIDs:  partnerIDs,
		GeneratedBy: req.GeneratedBy,
	}

	var results []invoicedomain.GenerateResult
	var err error
	switch req.Mode {
	case "", "monthly":
		results, err = s.invoiceSvc.GenerateMonthly(c.Request.Context(), in)
	case "unbilled":
		results, err = s.invoiceSvc.GenerateUnbilled(c.Request.Context(), in)
	default:
		AbortWithError(c, newValidationError("mode", "invalid_mode", "mode must be monthly or unbilled"))
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	views := make([]generateResultView, 0, len(results))
	for _, result := range results {
		view := generateResultView{
			PartnerID: result.PartnerID.String(),
			Invoice:   result.Invoice,
			Skipped:   result.Skipped,
		}
		if result.Err != nil {
			view.Error = result.Err.Error()
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (s *Server) IssueInvoices(c *gin.Context) {
	var req struct {
		InvoiceIDs []string `json:"invoice_ids"`
		IssuedBy   string   `json:"issued_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.InvoiceIDs) == 0 {
		AbortWithError(c, newValidationError("invoice_ids", "invalid_request", "invoice_ids is required"))
		return
	}

	ids := make([]snowflake.ID, 0, len(req.InvoiceIDs))
	for _, raw := range req.InvoiceIDs {
		id, err := parseSnowflake(raw)
		if err != nil {
			AbortWithError(c, newValidationError("invoice_ids", "invalid_id", "invalid id"))
			return
		}
		ids = append(ids, id)
	}

	results := s.invoiceSvc.IssueMany(c.Request.Context(), ids, req.IssuedBy)

	type issueView struct {
		InvoiceID string `json:"invoice_id"`
		Success   bool   `json:"success"`
		Error     string `json:"error,omitempty"`
	}
	views := make([]issueView, 0, len(results))
	for _, result := range results {
		view := issueView{InvoiceID: result.InvoiceID.String(), Success: result.Err == nil}
		if result.Err != nil {
			view.Error = result.Err.Error()
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (s *Server) ListInvoices(c *gin.Context) {
	page, ok := parsePagination(c)
	if !ok {
		return
	}
	partnerID, ok := parseIDQuery(c, "partner_id")
	if !ok {
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoicesRequest{
		Pagination: page,
		PartnerID:  partnerID,
		Status:     invoicedomain.Status(c.Query("status")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.PageInfo})
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.invoiceSvc.Items(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"invoice": invoice, "items": items}})
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		MarkedBy string `json:"marked_by"`
	}
	_ = c.ShouldBindJSON(&req)

	invoice, err := s.invoiceSvc.MarkPaid(c.Request.Context(), id, req.MarkedBy)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		CancelledBy string `json:"cancelled_by"`
	}
	_ = c.ShouldBindJSON(&req)

	invoice, err := s.invoiceSvc.Cancel(c.Request.Context(), id, req.CancelledBy)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) OverrideInvoiceStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status       string `json:"status"`
		OverriddenBy string `json:"overridden_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	invoice, err := s.invoiceSvc.Override(c.Request.Context(), id, invoicedomain.Status(req.Status), req.OverriddenBy)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}
