// Package scheduler 驱动告警处理流水线的周期执行。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/javabetatester/JobAlerts/internal/model"
	"github.com/javabetatester/JobAlerts/internal/notify"
	"github.com/javabetatester/JobAlerts/internal/pkg/metrics"
	"github.com/javabetatester/JobAlerts/internal/search"

	"github.com/robfig/cron/v3"
)

// ErrRunInProgress 表示已有一次运行在进行中，本次触发被拒绝。
var ErrRunInProgress = errors.New("scheduler run already in progress")

// AlertStore 是调度器对告警存储的依赖。
type AlertStore interface {
	ListActive(ctx context.Context) ([]model.Alert, error)
	SetLastChecked(ctx context.Context, id uint, ts time.Time) error
}

// UserResolver 解析告警的所属用户。
type UserResolver interface {
	GetOwner(ctx context.Context, alertID uint) (*model.User, error)
}

// Matcher 是调度器对匹配引擎的依赖。
type Matcher interface {
	ProcessAndMatch(ctx context.Context, resp *search.Response, alert *model.Alert) []model.Posting
}

// DuplicateFilter 是调度器对重复过滤器的依赖。
type DuplicateFilter interface {
	FilterNew(ctx context.Context, user *model.User, postings []model.Posting) []model.Posting
	MarkSent(ctx context.Context, user *model.User, postings []model.Posting, alertTitle string)
}

// Scheduler 依次处理所有启用中的告警：
// 搜索 → 归一化+匹配 → 去重 → 通知 → checkpoint。
//
// 同一时刻最多只有一次运行：周期触发和手动触发共用一把运行锁，
// 持锁失败的触发被直接拒绝（不排队）。告警之间串行处理，
// 每个告警之后固定停顿一段时间以尊重上游限流。
type Scheduler struct {
	alerts   AlertStore
	users    UserResolver
	searcher search.Client
	matcher  Matcher
	filter   DuplicateFilter
	notifier notify.Notifier
	logger   *slog.Logger

	interval time.Duration
	pacing   time.Duration

	cron  *cron.Cron
	runMu sync.Mutex // 运行锁：保证任意时刻至多一次运行

	statusMu  sync.Mutex
	lastRunAt time.Time
	lastCount int
}

// New 创建调度器。
func New(
	alerts AlertStore,
	users UserResolver,
	searcher search.Client,
	matcher Matcher,
	filter DuplicateFilter,
	notifier notify.Notifier,
	logger *slog.Logger,
	interval time.Duration,
	pacing time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if pacing < 0 {
		pacing = 0
	}
	return &Scheduler{
		alerts:   alerts,
		users:    users,
		searcher: searcher,
		matcher:  matcher,
		filter:   filter,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		pacing:   pacing,
	}
}

// Start 注册并启动周期触发。
//
// cron 侧的 SkipIfStillRunning 和内部运行锁双重保证不会有重叠运行，
// 运行锁同时覆盖手动触发的路径。
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			s.logger.Error("scheduled run failed", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", slog.String("spec", spec))
	return nil
}

// Stop 停止周期触发，不打断正在进行的运行。
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.logger.Info("scheduler stopped")
}

// RunNow 立即执行一次完整运行。
//
// 已有运行在进行时返回 ErrRunInProgress；只有列出活跃告警失败
// 才会让整次运行失败，单个告警的错误在运行内部被隔离。
func (s *Scheduler) RunNow(ctx context.Context) error {
	if !s.runMu.TryLock() {
		s.logger.Warn("run trigger rejected, previous run still in progress")
		return ErrRunInProgress
	}
	defer s.runMu.Unlock()

	return s.runOnce(ctx)
}

// Status 返回最近一次运行的概要。
func (s *Scheduler) Status() (lastRun time.Time, alertCount int) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.lastRunAt, s.lastCount
}

// runOnce 执行一轮完整的告警处理。
func (s *Scheduler) runOnce(ctx context.Context) error {
	s.logger.Info("alert run started")
	start := time.Now()

	activeAlerts, err := s.alerts.ListActive(ctx)
	if err != nil {
		metrics.SchedulerRunsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("list active alerts failed", slog.String("error", err.Error()))
		return fmt.Errorf("list active alerts: %w", err)
	}

	s.logger.Info("processing active alerts", slog.Int("count", len(activeAlerts)))

	// 一次运行没有中途取消路径：要么处理完所有告警，
	// 要么在上面列出告警失败时整体失败。
	for i := range activeAlerts {
		alert := &activeAlerts[i]

		s.processAlertIsolated(ctx, alert)
		metrics.AlertsProcessedTotal.Inc()

		// 固定停顿，与告警内容和处理结果无关（上游限流预算）
		s.pace(ctx)
	}

	s.statusMu.Lock()
	s.lastRunAt = time.Now()
	s.lastCount = len(activeAlerts)
	s.statusMu.Unlock()

	metrics.SchedulerRunsTotal.WithLabelValues("completed").Inc()
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("alert run completed",
		slog.Int("alerts", len(activeAlerts)),
		slog.String("elapsed", time.Since(start).String()))
	return nil
}

// processAlertIsolated 在告警边界上隔离一切错误与 panic。
func (s *Scheduler) processAlertIsolated(ctx context.Context, alert *model.Alert) {
	defer func() {
		if r := recover(); r != nil {
			metrics.AlertFailuresTotal.Inc()
			s.logger.Error("PANIC while processing alert",
				slog.Uint64("alert_id", uint64(alert.ID)),
				slog.Any("panic", r))
		}
	}()

	if err := s.processAlert(ctx, alert); err != nil {
		metrics.AlertFailuresTotal.Inc()
		s.logger.Error("alert processing failed",
			slog.Uint64("alert_id", uint64(alert.ID)),
			slog.String("error", err.Error()))
	}
}

// processAlert 执行单个告警的子流程：
// 校验 → 搜索 → 归一化+匹配 → 去重 → 通知 → checkpoint。
//
// checkpoint 通过 defer 挂在每一条退出路径上：不论校验跳过、搜索失败、
// 用户缺失还是正常完成，last_checked 都会前进，该告警不会在下个周期
// 被立即重试。
func (s *Scheduler) processAlert(ctx context.Context, alert *model.Alert) error {
	s.logger.Debug("processing alert",
		slog.Uint64("alert_id", uint64(alert.ID)),
		slog.String("title", alert.Title))

	defer s.checkpoint(ctx, alert.ID)

	query := strings.TrimSpace(alert.SearchQuery)
	location := strings.TrimSpace(alert.Location)
	if query == "" || location == "" {
		s.logger.Warn("alert has blank query or location, skip search",
			slog.Uint64("alert_id", uint64(alert.ID)))
		return nil
	}

	resp, err := s.searcher.Search(ctx, query, location, "", 1)
	if err != nil {
		kind := search.ErrorKind(err)
		metrics.SearchAPIErrorsTotal.WithLabelValues(kind).Inc()
		s.logger.Error("search failed",
			slog.Uint64("alert_id", uint64(alert.ID)),
			slog.String("kind", kind),
			slog.String("error", err.Error()))
		return nil
	}

	matchedJobs := s.matcher.ProcessAndMatch(ctx, resp, alert)
	if len(matchedJobs) == 0 {
		s.logger.Debug("no matching postings", slog.Uint64("alert_id", uint64(alert.ID)))
		return nil
	}
	metrics.PostingsMatchedTotal.Add(float64(len(matchedJobs)))

	user, err := s.users.GetOwner(ctx, alert.ID)
	if err != nil {
		s.logger.Warn("alert owner not resolved, skip notification",
			slog.Uint64("alert_id", uint64(alert.ID)),
			slog.String("error", err.Error()))
		return nil
	}
	if !user.HasUsableEmail() {
		s.logger.Warn("alert owner has no usable email, skip notification",
			slog.Uint64("alert_id", uint64(alert.ID)),
			slog.Uint64("user_id", uint64(user.ID)))
		return nil
	}

	freshJobs := s.filter.FilterNew(ctx, user, matchedJobs)
	if len(freshJobs) == 0 {
		s.logger.Debug("all matches already delivered", slog.Uint64("alert_id", uint64(alert.ID)))
		return nil
	}

	if err := s.notifier.SendAlertEmail(ctx, user, freshJobs, alert.Title); err != nil {
		// 发送失败不回滚已完成的匹配；不标记已发送，下次成功发送时仍可投递
		s.logger.Error("send alert email failed",
			slog.Uint64("alert_id", uint64(alert.ID)),
			slog.String("to", user.Email),
			slog.String("error", err.Error()))
		return nil
	}

	metrics.EmailsSentTotal.Inc()
	s.filter.MarkSent(ctx, user, freshJobs, alert.Title)
	s.logger.Info("alert notification delivered",
		slog.Uint64("alert_id", uint64(alert.ID)),
		slog.String("to", user.Email),
		slog.Int("postings", len(freshJobs)))
	return nil
}

// checkpoint 推进告警的 last_checked，失败只记日志，不重试。
func (s *Scheduler) checkpoint(ctx context.Context, alertID uint) {
	if err := s.alerts.SetLastChecked(ctx, alertID, time.Now()); err != nil {
		s.logger.Warn("checkpoint failed",
			slog.Uint64("alert_id", uint64(alertID)),
			slog.String("error", err.Error()))
	}
}

// pace 阻塞固定时长，ctx 取消时提前返回。
func (s *Scheduler) pace(ctx context.Context) {
	if s.pacing <= 0 {
		return
	}
	timer := time.NewTimer(s.pacing)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
