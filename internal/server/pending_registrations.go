package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	fallbackdomain "github.com/rcarraroia/comademig/internal/fallback/domain"
	"github.com/rcarraroia/comademig/pkg/db/pagination"
)

type listPendingRegistrationsQuery struct {
	Status string `form:"status"`
	pagination.Pagination
}

func (s *Server) ListPendingRegistrations(c *gin.Context) {
	var query listPendingRegistrationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.fallbackSvc.List(c.Request.Context(), fallbackdomain.ListRequest{
		Status:     fallbackdomain.Status(strings.ToLower(strings.TrimSpace(query.Status))),
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
