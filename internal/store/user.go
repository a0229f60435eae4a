package store

import (
	"context"
	"errors"

	"github.com/javabetatester/JobAlerts/internal/model"

	"gorm.io/gorm"
)

// UserStore 负责用户的读写。
type UserStore struct {
	db *gorm.DB
}

// NewUserStore 创建 UserStore。
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// GetByID 按 ID 查询用户。
func (s *UserStore) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOwner 解析告警的所属用户。
//
// 通过对 alerts 表的显式 JOIN 一次取回，避免任何隐式的延迟加载。
func (s *UserStore) GetOwner(ctx context.Context, alertID uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).
		Joins("JOIN alerts ON alerts.user_id = users.id").
		Where("alerts.id = ?", alertID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create 创建用户。
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

// SetActive 切换用户的启用状态（停用即软删除，告警与历史保留）。
func (s *UserStore) SetActive(ctx context.Context, id uint, active bool) error {
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
