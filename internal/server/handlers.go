package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	metricsdomain "github.com/loyaltylabs/loyalsync/internal/metrics/domain"
	"github.com/loyaltylabs/loyalsync/internal/runlock"
	"go.uber.org/zap"
)

func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type triggerMetricsRequest struct {
	// MemberIDs restricts the pass to a member subset when non-empty.
	MemberIDs []int64 `json:"member_ids"`
}

// TriggerMetrics kicks off an aggregation pass in the background and returns
// immediately; a pass already in flight yields 409.
func (s *Server) TriggerMetrics(c *gin.Context) {
	var req triggerMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	go func() {
		err := s.metrics.RunMetrics(context.Background(), req.MemberIDs)
		switch err {
		case nil:
		case metricsdomain.ErrRunInProgress, runlock.ErrLockHeld:
			s.log.Info("metrics run skipped, already in progress")
		default:
			s.log.Error("metrics run failed", zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) TriggerImport(c *gin.Context) {
	go func() {
		if err := s.pipeline.RunInitialImport(context.Background()); err != nil {
			s.log.Error("initial import failed", zap.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) TriggerRedemptions(c *gin.Context) {
	go func() {
		if err := s.reconciler.Run(context.Background()); err != nil {
			s.log.Error("redemption reconciliation failed", zap.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
