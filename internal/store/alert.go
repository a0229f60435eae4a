// Package store 提供基于 GORM/MySQL 的持久化实现。
//
// 各组件在自己的边界上声明窄接口，这里是这些接口的数据库实现。
// Alert 的标签在读取时显式预加载（Preload），调用方拿到的总是完整的值对象，
// 不存在任何隐式的按需加载。
package store

import (
	"context"
	"errors"
	"time"

	"github.com/javabetatester/JobAlerts/internal/model"

	"gorm.io/gorm"
)

// ErrNotFound 表示请求的记录不存在。
var ErrNotFound = errors.New("record not found")

// AlertStore 负责告警的读写。
type AlertStore struct {
	db *gorm.DB
}

// NewAlertStore 创建 AlertStore。
func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

// ListActive 返回所有启用中的告警，标签已预加载。
func (s *AlertStore) ListActive(ctx context.Context) ([]model.Alert, error) {
	var alerts []model.Alert
	if err := s.db.WithContext(ctx).
		Preload("Tags").
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// ListByUser 返回某个用户的全部告警（含停用）。
func (s *AlertStore) ListByUser(ctx context.Context, userID uint) ([]model.Alert, error) {
	var alerts []model.Alert
	if err := s.db.WithContext(ctx).
		Preload("Tags").
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

// GetByID 按 ID 读取告警，标签已预加载。
func (s *AlertStore) GetByID(ctx context.Context, id uint) (*model.Alert, error) {
	var alert model.Alert
	err := s.db.WithContext(ctx).Preload("Tags").Where("id = ?", id).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// Create 创建告警，标签文本入库前统一小写并去空白，空白标签被丢弃。
func (s *AlertStore) Create(ctx context.Context, alert *model.Alert) error {
	normalized := alert.Tags[:0]
	for _, tag := range alert.Tags {
		tag.Tag = model.NormalizeTag(tag.Tag)
		if tag.Tag == "" {
			continue
		}
		normalized = append(normalized, tag)
	}
	alert.Tags = normalized
	return s.db.WithContext(ctx).Create(alert).Error
}

// Update 更新告警字段并整体替换标签集合，两步在同一事务中完成。
//
// 标签的归一化规则与 Create 一致。
func (s *AlertStore) Update(ctx context.Context, alert *model.Alert) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Alert
		err := tx.Where("id = ?", alert.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&model.Alert{}).Where("id = ?", alert.ID).Updates(map[string]any{
			"title":                 alert.Title,
			"search_query":          alert.SearchQuery,
			"location":              alert.Location,
			"minimum_matching_tags": alert.MinimumMatchingTags,
			"is_active":             alert.IsActive,
		}).Error; err != nil {
			return err
		}

		if err := tx.Where("alert_id = ?", alert.ID).Delete(&model.AlertTag{}).Error; err != nil {
			return err
		}
		tags := make([]model.AlertTag, 0, len(alert.Tags))
		for _, tag := range alert.Tags {
			tag.ID = 0
			tag.AlertID = alert.ID
			tag.Tag = model.NormalizeTag(tag.Tag)
			if tag.Tag == "" {
				continue
			}
			tags = append(tags, tag)
		}
		if len(tags) > 0 {
			if err := tx.Create(&tags).Error; err != nil {
				return err
			}
		}
		alert.Tags = tags
		return nil
	})
}

// SetActive 切换告警的启用状态（软删除通过 active=false 实现）。
func (s *AlertStore) SetActive(ctx context.Context, id uint, active bool) error {
	res := s.db.WithContext(ctx).Model(&model.Alert{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLastChecked 更新告警的 checkpoint 时间戳。
func (s *AlertStore) SetLastChecked(ctx context.Context, id uint, ts time.Time) error {
	return s.db.WithContext(ctx).Model(&model.Alert{}).Where("id = ?", id).Update("last_checked", ts).Error
}
