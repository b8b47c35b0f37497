package server

import (
	"net/http"

	referraldomain "github.com/gaihekinavi/platform/internal/referral/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) AssignReferral(c *gin.Context) {
	var req struct {
		DiagnosisID string `json:"diagnosis_id"`
		PartnerID   string `json:"partner_id"`
		Fee         *int64 `json:"fee"`
		AssignedBy  string `json:"assigned_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	diagnosisID, err := parseSnowflake(req.DiagnosisID)
	if err != nil {
		AbortWithError(c, newValidationError("diagnosis_id", "invalid_id", "invalid id"))
		return
	}
	partnerID, err := parseSnowflake(req.PartnerID)
	if err != nil {
		AbortWithError(c, newValidationError("partner_id", "invalid_id", "invalid id"))
		return
	}

	referral, err := s.referralSvc.Assign(c.Request.Context(), referraldomain.AssignInput{
		DiagnosisID: diagnosisID,
		PartnerID:   partnerID,
		Fee:         req.Fee,
		AssignedBy:  req.AssignedBy,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": referral})
}

func (s *Server) ListReferrals(c *gin.Context) {
	page, ok := parsePagination(c)
	if !ok {
		return
	}
	partnerID, ok := parseIDQuery(c, "partner_id")
	if !ok {
		return
	}
	diagnosisID, ok := parseIDQuery(c, "diagnosis_id")
	if !ok {
		return
	}

	resp, err := s.referralSvc.List(c.Request.Context(), referraldomain.ListReferralsRequest{
		Pagination:  page,
		PartnerID:   partnerID,
		DiagnosisID: diagnosisID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Referrals, "page_info": resp.PageInfo})
}
