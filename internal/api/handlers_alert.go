package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/javabetatester/JobAlerts/internal/model"
	"github.com/javabetatester/JobAlerts/internal/store"

	"github.com/gin-gonic/gin"
)

// createUserRequest 创建用户的请求参数。
type createUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

// createAlertRequest 创建告警的请求参数。
type createAlertRequest struct {
	UserID              uint         `json:"user_id" binding:"required"`
	Title               string       `json:"title" binding:"required"`
	SearchQuery         string       `json:"search_query" binding:"required"`
	Location            string       `json:"location"`
	MinimumMatchingTags int          `json:"minimum_matching_tags"`
	Tags                []tagRequest `json:"tags"`
}

type tagRequest struct {
	Tag      string `json:"tag" binding:"required"`
	Required bool   `json:"required"`
}

type alertResponse struct {
	ID                  uint          `json:"id"`
	UserID              uint          `json:"user_id"`
	Title               string        `json:"title"`
	SearchQuery         string        `json:"search_query"`
	Location            string        `json:"location"`
	MinimumMatchingTags int           `json:"minimum_matching_tags"`
	IsActive            bool          `json:"is_active"`
	LastChecked         *time.Time    `json:"last_checked"`
	Tags                []tagResponse `json:"tags"`
}

type tagResponse struct {
	Tag      string `json:"tag"`
	Required bool   `json:"required"`
}

// updateAlertRequest 整体更新告警的请求参数，标签集合整体替换。
type updateAlertRequest struct {
	Title               string       `json:"title" binding:"required"`
	SearchQuery         string       `json:"search_query" binding:"required"`
	Location            string       `json:"location"`
	MinimumMatchingTags int          `json:"minimum_matching_tags"`
	IsActive            *bool        `json:"is_active"`
	Tags                []tagRequest `json:"tags"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func toAlertResponse(alert *model.Alert) alertResponse {
	resp := alertResponse{
		ID:                  alert.ID,
		UserID:              alert.UserID,
		Title:               alert.Title,
		SearchQuery:         alert.SearchQuery,
		Location:            alert.Location,
		MinimumMatchingTags: alert.EffectiveMinimumTags(),
		IsActive:            alert.IsActive,
		LastChecked:         alert.LastChecked,
		Tags:                make([]tagResponse, 0, len(alert.Tags)),
	}
	for _, tag := range alert.Tags {
		resp.Tags = append(resp.Tags, tagResponse{Tag: tag.Tag, Required: tag.Required})
	}
	return resp
}

// handleCreateUser 创建用户并发送欢迎邮件（发送失败只记日志）。
func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := &model.User{
		Name:     req.Name,
		Email:    req.Email,
		IsActive: true,
	}
	if err := s.users.Create(c.Request.Context(), user); err != nil {
		s.logger.Error("create user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	if err := s.notifier.SendWelcomeEmail(c.Request.Context(), user); err != nil {
		s.logger.Warn("send welcome email failed",
			slog.String("to", user.Email),
			slog.String("error", err.Error()))
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID})
}

// handleGetUser 按 ID 返回用户基础信息。
func (s *Server) handleGetUser(c *gin.Context) {
	userID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := s.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		s.logger.Error("load user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"is_active":  user.IsActive,
		"created_at": user.CreatedAt,
	})
}

// handleDeactivateUser 停用用户（软删除，告警与投递历史保留）。
func (s *Server) handleDeactivateUser(c *gin.Context) {
	userID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if err := s.users.SetActive(c.Request.Context(), userID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		s.logger.Error("deactivate user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deactivate user failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": userID, "active": false})
}

// handleUserHistory 返回用户最近 N 天的投递历史。
func (s *Server) handleUserHistory(c *gin.Context) {
	userID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	days := 7
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = parsed
	}

	since := time.Now().AddDate(0, 0, -days)
	records, err := s.histRead.ListSince(c.Request.Context(), userID, since)
	if err != nil {
		s.logger.Error("list delivery history failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list history failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(records), "history": records})
}

// handleCreateAlert 创建告警。
func (s *Server) handleCreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := s.users.GetByID(c.Request.Context(), req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		s.logger.Error("load user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
		return
	}

	alert := &model.Alert{
		UserID:              req.UserID,
		Title:               req.Title,
		SearchQuery:         req.SearchQuery,
		Location:            req.Location,
		MinimumMatchingTags: req.MinimumMatchingTags,
		IsActive:            true,
	}
	for _, tag := range req.Tags {
		alert.Tags = append(alert.Tags, model.AlertTag{
			Tag:      tag.Tag,
			Required: tag.Required,
		})
	}

	if err := s.alerts.Create(c.Request.Context(), alert); err != nil {
		s.logger.Error("create alert failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create alert failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": alert.ID})
}

// handleListAlerts 返回某个用户的告警列表。
func (s *Server) handleListAlerts(c *gin.Context) {
	userID, err := parseID(c.Query("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	alerts, err := s.alerts.ListByUser(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("list alerts failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list alerts failed"})
		return
	}

	out := make([]alertResponse, 0, len(alerts))
	for i := range alerts {
		out = append(out, toAlertResponse(&alerts[i]))
	}

	c.JSON(http.StatusOK, gin.H{"count": len(out), "alerts": out})
}

// handleGetAlert 按 ID 返回单条告警。
func (s *Server) handleGetAlert(c *gin.Context) {
	alertID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	alert, err := s.alerts.GetByID(c.Request.Context(), alertID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		s.logger.Error("load alert failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load alert failed"})
		return
	}

	c.JSON(http.StatusOK, toAlertResponse(alert))
}

// handleUpdateAlert 整体更新告警，标签集合整体替换。
//
// is_active 缺省时保留原状态，所属用户不可变更。
func (s *Server) handleUpdateAlert(c *gin.Context) {
	alertID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	var req updateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := s.alerts.GetByID(c.Request.Context(), alertID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		s.logger.Error("load alert failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load alert failed"})
		return
	}

	alert.Title = req.Title
	alert.SearchQuery = req.SearchQuery
	alert.Location = req.Location
	alert.MinimumMatchingTags = req.MinimumMatchingTags
	if req.IsActive != nil {
		alert.IsActive = *req.IsActive
	}
	alert.Tags = alert.Tags[:0]
	for _, tag := range req.Tags {
		alert.Tags = append(alert.Tags, model.AlertTag{
			Tag:      tag.Tag,
			Required: tag.Required,
		})
	}

	if err := s.alerts.Update(c.Request.Context(), alert); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		s.logger.Error("update alert failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update alert failed"})
		return
	}

	c.JSON(http.StatusOK, toAlertResponse(alert))
}

// handleSetAlertActive 切换告警启用状态。
func (s *Server) handleSetAlertActive(c *gin.Context) {
	alertID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.alerts.SetActive(c.Request.Context(), alertID, req.Active); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		s.logger.Error("update alert failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update alert failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": alertID, "active": req.Active})
}

// handleDeleteAlert 停用告警（软删除，记录保留）。
func (s *Server) handleDeleteAlert(c *gin.Context) {
	alertID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}

	if err := s.alerts.SetActive(c.Request.Context(), alertID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		s.logger.Error("deactivate alert failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deactivate alert failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": alertID, "active": false})
}
