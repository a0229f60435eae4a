package store

import (
	"context"
	"time"

	"github.com/javabetatester/JobAlerts/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostingStore 负责职位的读写。
type PostingStore struct {
	db *gorm.DB
}

// NewPostingStore 创建 PostingStore。
func NewPostingStore(db *gorm.DB) *PostingStore {
	return &PostingStore{db: db}
}

// Upsert 按 external_id 做原子化新增或更新，并返回入库后的记录。
//
// 这要求 postings 表在 external_id 上有唯一索引；同一上游 ID
// 再次出现时只更新字段，不会产生重复行。
func (s *PostingStore) Upsert(ctx context.Context, posting *model.Posting) (*model.Posting, error) {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "company", "location", "description", "job_url",
			"salary_min", "salary_max", "employment_type", "published_at",
		}),
	}).Create(posting).Error; err != nil {
		return nil, err
	}

	// 某些驱动在冲突更新时不会回填 ID，这里做一次兜底查询。
	if posting.ID == 0 {
		var existing model.Posting
		if err := s.db.WithContext(ctx).Where("external_id = ?", posting.ExternalID).First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}

	return posting, nil
}

// ListCreatedAfter 返回 ts 之后首次入库的职位，按入库时间倒序。
func (s *PostingStore) ListCreatedAfter(ctx context.Context, ts time.Time) ([]model.Posting, error) {
	var postings []model.Posting
	if err := s.db.WithContext(ctx).
		Where("created_at > ?", ts).
		Order("created_at DESC").
		Find(&postings).Error; err != nil {
		return nil, err
	}
	return postings, nil
}
