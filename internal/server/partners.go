package server

import (
	"net/http"

	partnerdomain "github.com/gaihekinavi/platform/internal/partner/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListPartners(c *gin.Context) {
	partners, err := s.partnerSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": partners})
}

func (s *Server) GetPartner(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	partner, err := s.partnerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": partner})
}

func (s *Server) SetPartnerActive(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	if err := s.partnerSvc.SetActive(c.Request.Context(), id, req.Active); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"partner_id": id.String(), "active": req.Active}})
}

func (s *Server) AssignFeePlan(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		FeePlanID string `json:"fee_plan_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	planID, err := parseSnowflake(req.FeePlanID)
	if err != nil {
		AbortWithError(c, newValidationError("fee_plan_id", "invalid_id", "invalid id"))
		return
	}

	if err := s.partnerSvc.AssignFeePlan(c.Request.Context(), id, planID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"partner_id": id.String(), "fee_plan_id": planID.String()}})
}

func (s *Server) ListFeePlans(c *gin.Context) {
	plans, err := s.partnerSvc.ListFeePlans(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": plans})
}

func (s *Server) CreateFeePlan(c *gin.Context) {
	var req struct {
		Name           string  `json:"name"`
		MonthlyFee     int64   `json:"monthly_fee"`
		PerOrderFee    int64   `json:"per_order_fee"`
		PerProjectFee  int64   `json:"per_project_fee"`
		ProjectFeeRate float64 `json:"project_fee_rate"`
		IsDefault      bool    `json:"is_default"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	plan, err := s.partnerSvc.CreateFeePlan(c.Request.Context(), partnerdomain.CreateFeePlanRequest{
		Name:           req.Name,
		MonthlyFee:     req.MonthlyFee,
		PerOrderFee:    req.PerOrderFee,
		PerProjectFee:  req.PerProjectFee,
		ProjectFeeRate: req.ProjectFeeRate,
		IsDefault:      req.IsDefault,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": plan})
}
