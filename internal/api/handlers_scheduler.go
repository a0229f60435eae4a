package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/javabetatester/JobAlerts/internal/scheduler"

	"github.com/gin-gonic/gin"
)

// handleRunNow 手动触发一次完整的告警处理运行。
//
// 响应只是简单的成功/失败确认，真实结果通过日志和 checkpoint 观察。
// 运行挂在与请求分离的 context 上：客户端断开或代理超时
// 不会打断一次已经开始的运行。
func (s *Server) handleRunNow(c *gin.Context) {
	s.logger.Info("manual alert run triggered via api")

	if err := s.sched.RunNow(context.WithoutCancel(c.Request.Context())); err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
			return
		}
		s.logger.Error("manual run failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "run failed, check logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "run completed, check logs for details"})
}

// handleSchedulerStatus 返回调度器的概要状态。
func (s *Server) handleSchedulerStatus(c *gin.Context) {
	lastRun, alertCount := s.sched.Status()

	resp := gin.H{
		"enabled":  s.cfg.App.SchedulerEnabled,
		"interval": s.cfg.App.ScheduleInterval.String(),
	}
	if lastRun.IsZero() {
		resp["last_run"] = nil
	} else {
		resp["last_run"] = lastRun.Format(time.RFC3339)
		resp["last_run_alerts"] = alertCount
	}

	c.JSON(http.StatusOK, resp)
}

// handleRecentJobs 返回最近入库的职位，hours 参数缺省用配置值。
func (s *Server) handleRecentJobs(c *gin.Context) {
	hours := s.cfg.App.RecentJobsWindow
	if v := c.Query("hours"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hours"})
			return
		}
		hours = parsed
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	postings, err := s.postings.ListCreatedAfter(c.Request.Context(), since)
	if err != nil {
		s.logger.Error("list recent jobs failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list recent jobs failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"since": since.Format(time.RFC3339),
		"count": len(postings),
		"jobs":  postings,
	})
}

// handlePruneHistory 清理某个用户的过期投递历史。
func (s *Server) handlePruneHistory(c *gin.Context) {
	userID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	days := s.cfg.App.RetentionDays
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = parsed
	}

	s.pruner.Prune(c.Request.Context(), userID, days)
	c.JSON(http.StatusOK, gin.H{"pruned_before_days": days})
}

func parseID(raw string) (uint, error) {
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse id: %w", err)
	}
	return uint(parsed), nil
}
