package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) DashboardOverview(c *gin.Context) {
	overview, err := s.dashboardSvc.Overview(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": overview})
}

func (s *Server) DashboardTrend(c *gin.Context) {
	months, ok := parseIntQuery(c, "months", 6)
	if !ok {
		return
	}

	points, err := s.dashboardSvc.MonthlyTrend(c.Request.Context(), months)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": points})
}

func (s *Server) DashboardPartnerSummaries(c *gin.Context) {
	year, ok := parseIntQuery(c, "year", 0)
	if !ok {
		return
	}
	month, ok := parseIntQuery(c, "month", 0)
	if !ok {
		return
	}

	summaries, err := s.dashboardSvc.PartnerSummaries(c.Request.Context(), year, time.Month(month))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summaries})
}
