package server

import (
	"net/http"

	custdomain "github.com/gaihekinavi/platform/internal/customerinvoice/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateCustomerInvoice(c *gin.Context) {
	var req struct {
		OrderID      string `json:"order_id"`
		PartnerID    string `json:"partner_id"`
		CustomerName string `json:"customer_name"`
		Items        []struct {
			Description string `json:"description"`
			Amount      int64  `json:"amount"`
		} `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	orderID, err := parseSnowflake(req.OrderID)
	if err != nil {
		AbortWithError(c, newValidationError("order_id", "invalid_id", "invalid id"))
		return
	}
	partnerID, err := parseSnowflake(req.PartnerID)
	if err != nil {
		AbortWithError(c, newValidationError("partner_id", "invalid_id", "invalid id"))
		return
	}

	items := make([]custdomain.ItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, custdomain.ItemInput{Description: item.Description, Amount: item.Amount})
	}

	invoice, err := s.custInvoiceSvc.Create(c.Request.Context(), custdomain.CreateInput{
		OrderID:      orderID,
		PartnerID:    partnerID,
		CustomerName: req.CustomerName,
		Items:        items,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) MarkCustomerInvoicePaid(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	invoice, err := s.custInvoiceSvc.MarkPaid(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) ListCustomerInvoices(c *gin.Context) {
	page, ok := parsePagination(c)
	if !ok {
		return
	}
	partnerID, ok := parseIDQuery(c, "partner_id")
	if !ok {
		return
	}

	resp, err := s.custInvoiceSvc.List(c.Request.Context(), custdomain.ListInvoicesRequest{
		Pagination: page,
		PartnerID:  partnerID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices, "page_info": resp.PageInfo})
}

func (s *Server) GetCustomerInvoice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	invoice, err := s.custInvoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	items, err := s.custInvoiceSvc.Items(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"invoice": invoice, "items": items}})
}
