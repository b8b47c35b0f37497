package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

func parseIDParam(c *gin.Context, name string) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}

func parseIDQuery(c *gin.Context, name string) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_id", "invalid id"))
		return 0, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		AbortWithError(c, newValidationError(name, "invalid_number", "invalid number"))
		return 0, false
	}
	return n, true
}

func parseSnowflake(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}

func parsePagination(c *gin.Context) (pagination.Pagination, bool) {
	page, ok := parseIntQuery(c, "page", 1)
	if !ok {
		return pagination.Pagination{}, false
	}
	pageSize, ok := parseIntQuery(c, "page_size", 0)
	if !ok {
		return pagination.Pagination{}, false
	}
	return pagination.Pagination{Page: page, PageSize: pageSize}, true
}
