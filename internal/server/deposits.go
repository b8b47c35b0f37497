package server

import (
	"net/http"

	depositdomain "github.com/gaihekinavi/platform/internal/deposit/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetDepositBalance(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	balance, err := s.depositSvc.GetBalance(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"partner_id": id.String(), "balance": balance}})
}

func (s *Server) ListDepositHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	page, ok := parsePagination(c)
	if !ok {
		return
	}

	resp, err := s.depositSvc.History(c.Request.Context(), depositdomain.ListHistoryRequest{
		Pagination: page,
		PartnerID:  id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Entries, "page_info": resp.PageInfo})
}

func (s *Server) SubmitDepositRequest(c *gin.Context) {
	var req struct {
		PartnerID string `json:"partner_id"`
		Amount    int64  `json:"amount"`
		Note      string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	partnerID, err := parseSnowflake(req.PartnerID)
	if err != nil {
		AbortWithError(c, newValidationError("partner_id", "invalid_id", "invalid id"))
		return
	}

	request, err := s.depositSvc.SubmitRequest(c.Request.Context(), partnerID, req.Amount, req.Note)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": request})
}

func (s *Server) ListDepositRequests(c *gin.Context) {
	page, ok := parsePagination(c)
	if !ok {
		return
	}

	resp, err := s.depositSvc.ListRequests(c.Request.Context(), depositdomain.ListRequestsRequest{
		Pagination: page,
		Status:     depositdomain.RequestStatus(c.Query("status")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Requests, "page_info": resp.PageInfo})
}

func (s *Server) ApproveDepositRequest(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		ApprovedAmount int64  `json:"approved_amount"`
		AdminNote      string `json:"admin_note"`
		ApprovedBy     string `json:"approved_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	newBalance, err := s.depositSvc.ApproveRequest(c.Request.Context(), depositdomain.ApproveInput{
		RequestID:      id,
		ApprovedAmount: req.ApprovedAmount,
		AdminNote:      req.AdminNote,
		ApprovedBy:     req.ApprovedBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"request_id": id.String(), "new_balance": newBalance}})
}

func (s *Server) RejectDepositRequest(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		AdminNote  string `json:"admin_note"`
		RejectedBy string `json:"rejected_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	if err := s.depositSvc.RejectRequest(c.Request.Context(), id, req.AdminNote, req.RejectedBy); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"request_id": id.String(), "status": depositdomain.RequestStatusRejected}})
}
