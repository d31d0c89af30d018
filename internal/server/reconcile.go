package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rcarraroia/comademig/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) TriggerReconcile(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		AbortWithError(c, ErrMethodNotAllowed)
		return
	}

	report, err := s.reconciler.RunOnce(c.Request.Context())
	if err != nil {
		logger.WithContext(c.Request.Context(), s.log).Error("reconcile trigger failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, report)
		return
	}

	c.JSON(http.StatusOK, report)
}
