// Package match 实现告警与职位之间基于标签的匹配。
package match

import (
	"context"
	"log/slog"
	"strings"

	"github.com/javabetatester/JobAlerts/internal/model"
	"github.com/javabetatester/JobAlerts/internal/search"
)

// PostingStore 是匹配引擎对职位存储的依赖。
type PostingStore interface {
	Upsert(ctx context.Context, posting *model.Posting) (*model.Posting, error)
}

// Engine 决定一批职位中哪些满足某个告警的标签规则。
type Engine struct {
	postings PostingStore
	logger   *slog.Logger
}

// NewEngine 创建匹配引擎。
func NewEngine(postings PostingStore, logger *slog.Logger) *Engine {
	return &Engine{postings: postings, logger: logger}
}

// Match 判断单条职位是否命中告警。
//
// 规则：
//  1. 没有任何标签的告警永不命中。
//  2. 把标题、描述、公司、雇佣类型拼接成小写语料。
//  3. required 标签必须全部出现在语料中（任意一个缺失立即失败）。
//  4. 统计全部标签（含 required）的命中数，达到最少匹配数才算命中。
//
// 空白标签不参与计数，也永远不算命中。
func (e *Engine) Match(posting *model.Posting, alert *model.Alert) bool {
	if posting == nil || alert == nil {
		return false
	}
	if len(alert.Tags) == 0 {
		e.logger.Debug("alert has no tags, skip matching", slog.Uint64("alert_id", uint64(alert.ID)))
		return false
	}

	content := buildContent(posting)
	if strings.TrimSpace(content) == "" {
		e.logger.Warn("posting content is empty",
			slog.String("external_id", posting.ExternalID))
		return false
	}
	content = strings.ToLower(content)

	for _, tag := range alert.Tags {
		if !tag.Required {
			continue
		}
		text := model.NormalizeTag(tag.Tag)
		if text == "" {
			e.logger.Warn("required tag is empty", slog.Uint64("alert_id", uint64(alert.ID)))
			continue
		}
		if !strings.Contains(content, text) {
			e.logger.Debug("posting missing required tag",
				slog.String("title", posting.Title),
				slog.String("tag", text))
			return false
		}
	}

	matched := 0
	for _, tag := range alert.Tags {
		text := model.NormalizeTag(tag.Tag)
		if text == "" {
			continue
		}
		if strings.Contains(content, text) {
			matched++
		}
	}

	minimum := alert.EffectiveMinimumTags()
	if matched < minimum {
		e.logger.Debug("posting below tag threshold",
			slog.String("title", posting.Title),
			slog.Int("matched", matched),
			slog.Int("minimum", minimum))
		return false
	}

	e.logger.Debug("posting matched",
		slog.String("title", posting.Title),
		slog.Int("matched", matched),
		slog.Int("minimum", minimum))
	return true
}

// ProcessAndMatch 归一化并入库一批搜索结果，然后过滤出命中告警的职位。
//
// 返回列表保持搜索结果的原始顺序。单条职位的入库失败只记日志并跳过，
// 不影响批次中的其余职位。
func (e *Engine) ProcessAndMatch(ctx context.Context, resp *search.Response, alert *model.Alert) []model.Posting {
	matchedJobs := make([]model.Posting, 0)

	if resp == nil || len(resp.Data) == 0 {
		title := ""
		if alert != nil {
			title = alert.Title
		}
		e.logger.Info("no postings in search response", slog.String("alert", title))
		return matchedJobs
	}
	if alert == nil {
		e.logger.Error("alert is nil, skip batch")
		return matchedJobs
	}

	for _, job := range resp.Data {
		if strings.TrimSpace(job.JobID) == "" {
			e.logger.Warn("skip job with empty external id", slog.String("title", job.JobTitle))
			continue
		}

		normalized := NormalizePosting(job)
		saved, err := e.postings.Upsert(ctx, &normalized)
		if err != nil {
			e.logger.Error("upsert posting failed",
				slog.String("external_id", normalized.ExternalID),
				slog.String("error", err.Error()))
			continue
		}

		if e.Match(saved, alert) {
			matchedJobs = append(matchedJobs, *saved)
		}
	}

	e.logger.Info("batch processed",
		slog.String("alert", alert.Title),
		slog.Int("postings", len(resp.Data)),
		slog.Int("matched", len(matchedJobs)))
	return matchedJobs
}

// buildContent 把职位的可检索字段按固定顺序拼接成语料。
func buildContent(posting *model.Posting) string {
	var b strings.Builder
	for _, field := range []string{posting.Title, posting.Description, posting.Company, posting.EmploymentType} {
		if strings.TrimSpace(field) == "" {
			continue
		}
		b.WriteString(field)
		b.WriteString(" ")
	}
	return b.String()
}
