package store

import (
	"context"
	"time"

	"github.com/javabetatester/JobAlerts/internal/model"

	"gorm.io/gorm"
)

// HistoryStore 负责投递历史的读写。
//
// (user_id, posting_id) 上的联合唯一索引保证同一条职位对同一个用户
// 只会有一条有效记录；并发下的重复写入由数据库约束拒绝。
type HistoryStore struct {
	db *gorm.DB
}

// NewHistoryStore 创建 HistoryStore。
func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Exists 检查 (user, posting) 是否已有投递记录。
func (s *HistoryStore) Exists(ctx context.Context, userID, postingID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.DeliveryRecord{}).
		Where("user_id = ? AND posting_id = ?", userID, postingID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Insert 写入一条投递记录。
func (s *HistoryStore) Insert(ctx context.Context, record *model.DeliveryRecord) error {
	return s.db.WithContext(ctx).Create(record).Error
}

// DeleteOlderThan 删除某个用户在 cutoff 之前的投递记录。
func (s *HistoryStore) DeleteOlderThan(ctx context.Context, userID uint, cutoff time.Time) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND sent_at < ?", userID, cutoff).
		Delete(&model.DeliveryRecord{}).Error
}

// ListSince 返回某个用户 since 之后的投递记录，按时间倒序。
func (s *HistoryStore) ListSince(ctx context.Context, userID uint, since time.Time) ([]model.DeliveryRecord, error) {
	var records []model.DeliveryRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND sent_at > ?", userID, since).
		Order("sent_at DESC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
