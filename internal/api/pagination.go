package api

import (
	"strconv"

	"example.com/backstage/services/warehouse/config"
	"example.com/backstage/services/warehouse/internal/repositories"

	"github.com/gin-gonic/gin"
)

// PageResponse wraps one page of a list endpoint
type PageResponse struct {
	Count    int64       `json:"count"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Results  interface{} `json:"results"`
}

// parsePage reads page and page_size, clamping the size to the configured maximum
func parsePage(c *gin.Context, cfg config.PaginationConfig) (repositories.Page, error) {
	page := repositories.Page{Number: 1, Size: cfg.DefaultPageSize}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, NewValidationError("page must be a positive integer")
		}
		page.Number = n
	}
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, NewValidationError("page_size must be a positive integer")
		}
		page.Size = n
	}
	if cfg.MaxPageSize > 0 && page.Size > cfg.MaxPageSize {
		page.Size = cfg.MaxPageSize
	}
	return page, nil
}

func pageResponse(page repositories.Page, total int64, results interface{}) PageResponse {
	return PageResponse{
		Count:    total,
		Page:     page.Number,
		PageSize: page.Size,
		Results:  results,
	}
}

func parseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, NewValidationError("Invalid " + name)
	}
	return uint(id), nil
}
