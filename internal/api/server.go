package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/javabetatester/JobAlerts/internal/api/middleware"
	"github.com/javabetatester/JobAlerts/internal/config"
	"github.com/javabetatester/JobAlerts/internal/history"
	"github.com/javabetatester/JobAlerts/internal/match"
	"github.com/javabetatester/JobAlerts/internal/model"
	"github.com/javabetatester/JobAlerts/internal/notify"
	"github.com/javabetatester/JobAlerts/internal/pkg/metrics"
	"github.com/javabetatester/JobAlerts/internal/scheduler"
	"github.com/javabetatester/JobAlerts/internal/search"
	"github.com/javabetatester/JobAlerts/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 对外只是调度器和各个存储的薄封装：handler 不含业务规则，
// 绑定参数、调用组件、映射错误码。
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
	rdb    *redis.Client
	router *gin.Engine

	// scheduler 持有具体类型，只用于 Start/Stop 生命周期；
	// handler 一律通过 RunTrigger 窄接口访问。
	scheduler *scheduler.Scheduler

	sched    RunTrigger
	alerts   AlertStore
	users    UserStore
	postings PostingReader
	histRead HistoryReader
	pruner   HistoryPruner
	notifier notify.Notifier
}

// RunTrigger 是手动触发调度所需的接口。
type RunTrigger interface {
	RunNow(ctx context.Context) error
	Status() (lastRun time.Time, alertCount int)
}

// AlertStore 是告警 CRUD 所需的存储接口。
type AlertStore interface {
	Create(ctx context.Context, alert *model.Alert) error
	GetByID(ctx context.Context, id uint) (*model.Alert, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Alert, error)
	Update(ctx context.Context, alert *model.Alert) error
	SetActive(ctx context.Context, id uint, active bool) error
}

// UserStore 是用户接口。
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	SetActive(ctx context.Context, id uint, active bool) error
}

// PostingReader 读取最近入库的职位。
type PostingReader interface {
	ListCreatedAfter(ctx context.Context, ts time.Time) ([]model.Posting, error)
}

// HistoryReader 读取投递历史。
type HistoryReader interface {
	ListSince(ctx context.Context, userID uint, since time.Time) ([]model.DeliveryRecord, error)
}

// HistoryPruner 清理投递历史。
type HistoryPruner interface {
	Prune(ctx context.Context, userID uint, retentionDays int)
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis
// 3. 组装匹配引擎、重复过滤器、搜索客户端和调度器
// 4. 初始化 Gin 路由引擎
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Alert{},
		&model.AlertTag{},
		&model.Posting{},
		&model.DeliveryRecord{},
	); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	alertStore := store.NewAlertStore(db)
	userStore := store.NewUserStore(db)
	postingStore := store.NewPostingStore(db)
	historyStore := store.NewHistoryStore(db)

	emailNotifier := notify.NewEmailNotifier(&cfg.Email, logger)
	engine := match.NewEngine(postingStore, logger)
	filter := history.NewFilter(historyStore, logger)

	searchCache := search.NewCache(rdb, cfg.Search.CacheTTL)
	searchClient := search.NewCachedClient(
		search.NewHTTPClient(&cfg.Search, logger),
		searchCache,
		logger,
	)

	sched := scheduler.New(
		alertStore,
		userStore,
		searchClient,
		engine,
		filter,
		emailNotifier,
		logger,
		cfg.App.ScheduleInterval,
		cfg.App.AlertPacing,
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		rdb:      rdb,
		router:   r,
		sched:    sched,
		alerts:   alertStore,
		users:    userStore,
		postings: postingStore,
		histRead: historyStore,
		pruner:   filter,
		notifier: emailNotifier,
	}
	s.scheduler = sched
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// StartScheduler 启动周期调度（配置关闭时跳过）。
func (s *Server) StartScheduler(ctx context.Context) error {
	if !s.cfg.App.SchedulerEnabled {
		s.logger.Info("periodic scheduler disabled by config")
		return nil
	}
	return s.scheduler.Start(ctx)
}

// StopScheduler 停止周期调度。
func (s *Server) StopScheduler() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else if closeErr := sqlDB.Close(); closeErr != nil {
			if firstErr == nil {
				firstErr = closeErr
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	apiGroup := s.router.Group("/api")
	apiGroup.POST("/scheduler/run-now", s.handleRunNow)
	apiGroup.GET("/scheduler/status", s.handleSchedulerStatus)
	apiGroup.GET("/jobs/recent", s.handleRecentJobs)

	apiGroup.POST("/users", s.handleCreateUser)
	apiGroup.GET("/users/:id", s.handleGetUser)
	apiGroup.DELETE("/users/:id", s.handleDeactivateUser)
	apiGroup.GET("/users/:id/history", s.handleUserHistory)
	apiGroup.POST("/users/:id/history/prune", s.handlePruneHistory)

	apiGroup.POST("/alerts", s.handleCreateAlert)
	apiGroup.GET("/alerts", s.handleListAlerts)
	apiGroup.GET("/alerts/:id", s.handleGetAlert)
	apiGroup.PUT("/alerts/:id", s.handleUpdateAlert)
	apiGroup.PATCH("/alerts/:id/active", s.handleSetAlertActive)
	apiGroup.DELETE("/alerts/:id", s.handleDeleteAlert)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
