// Package history 实现投递历史与重复抑制。
package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/javabetatester/JobAlerts/internal/model"
)

// Store 是重复过滤器对投递历史存储的依赖。
type Store interface {
	Exists(ctx context.Context, userID, postingID uint) (bool, error)
	Insert(ctx context.Context, record *model.DeliveryRecord) error
	DeleteOlderThan(ctx context.Context, userID uint, cutoff time.Time) error
}

// Filter 保证同一条职位不会重复通知同一个用户。
type Filter struct {
	store  Store
	logger *slog.Logger
}

// NewFilter 创建重复过滤器。
func NewFilter(store Store, logger *slog.Logger) *Filter {
	return &Filter{store: store, logger: logger}
}

// FilterNew 过滤掉已经发送给该用户的职位，保持输入顺序。
//
// 空输入直接返回空列表，不访问存储。存在性检查失败时保守地
// 保留该职位（宁可偶尔重发，不静默丢失通知）。
func (f *Filter) FilterNew(ctx context.Context, user *model.User, postings []model.Posting) []model.Posting {
	if len(postings) == 0 {
		return []model.Posting{}
	}

	fresh := make([]model.Posting, 0, len(postings))
	for _, posting := range postings {
		sent, err := f.store.Exists(ctx, user.ID, posting.ID)
		if err != nil {
			f.logger.Warn("delivery history lookup failed",
				slog.Uint64("user_id", uint64(user.ID)),
				slog.Uint64("posting_id", uint64(posting.ID)),
				slog.String("error", err.Error()))
			fresh = append(fresh, posting)
			continue
		}
		if !sent {
			fresh = append(fresh, posting)
		}
	}

	f.logger.Info("duplicate filter applied",
		slog.Uint64("user_id", uint64(user.ID)),
		slog.Int("suppressed", len(postings)-len(fresh)),
		slog.Int("fresh", len(fresh)))
	return fresh
}

// MarkSent 为每条职位写入一条投递记录。
//
// 单条写入失败只记日志并继续写其余记录（at-least-once：失败的记录
// 可能导致下次向同一用户重发该职位，这是可接受的退化，不会被静默吞掉）。
func (f *Filter) MarkSent(ctx context.Context, user *model.User, postings []model.Posting, alertTitle string) {
	for _, posting := range postings {
		record := &model.DeliveryRecord{
			UserID:     user.ID,
			PostingID:  posting.ID,
			AlertTitle: alertTitle,
			SentAt:     time.Now(),
		}
		if err := f.store.Insert(ctx, record); err != nil {
			f.logger.Warn("save delivery record failed",
				slog.Uint64("user_id", uint64(user.ID)),
				slog.Uint64("posting_id", uint64(posting.ID)),
				slog.String("error", err.Error()))
		}
	}

	f.logger.Info("postings marked as sent",
		slog.Uint64("user_id", uint64(user.ID)),
		slog.Int("count", len(postings)))
}

// Prune 删除该用户 retentionDays 天之前的投递记录，失败只记日志。
func (f *Filter) Prune(ctx context.Context, userID uint, retentionDays int) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	if err := f.store.DeleteOlderThan(ctx, userID, cutoff); err != nil {
		f.logger.Error("prune delivery history failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
		return
	}
	f.logger.Info("delivery history pruned",
		slog.Uint64("user_id", uint64(userID)),
		slog.String("cutoff", cutoff.Format(time.RFC3339)))
}
