package model

import (
	"strings"
	"time"
)

// Alert 表示一个用户保存的职位搜索条件。
//
// 调度器会周期性地按照 SearchQuery + Location 调用上游搜索 API，
// 再用 Tags 对结果做匹配。Alert 永不物理删除，停用通过 IsActive 软删除实现。
type Alert struct {
	ID        uint      `gorm:"primaryKey"` // 告警唯一标识
	CreatedAt time.Time // 创建时间

	UserID uint   `gorm:"not null"`          // 所属用户 ID
	User   User   `gorm:"foreignKey:UserID"` // 所属用户
	Title  string `gorm:"not null"`          // 告警标题（用于邮件主题和投递历史）

	SearchQuery string `gorm:"not null"` // 上游搜索关键词
	Location    string // 搜索地区（自由文本）

	// MinimumMatchingTags 是命中所需的最少标签数，<=0 时按 1 处理。
	MinimumMatchingTags int `gorm:"default:1"`

	IsActive    bool       `gorm:"default:true"` // 是否启用（软删除标记）
	LastChecked *time.Time // 上次调度处理完成的时间（checkpoint）

	Tags []AlertTag `gorm:"foreignKey:AlertID"` // 匹配标签集合（无序）
}

// EffectiveMinimumTags 返回生效的最少匹配标签数。
func (a *Alert) EffectiveMinimumTags() int {
	if a.MinimumMatchingTags <= 0 {
		return 1
	}
	return a.MinimumMatchingTags
}

// AlertTag 是告警的一个匹配关键词。
//
// Tag 在入库前统一小写并去除首尾空白，匹配是大小写无关的子串包含。
// Required 为 true 的标签必须全部出现在职位内容中，否则永不命中。
type AlertTag struct {
	ID       uint   `gorm:"primaryKey"`
	AlertID  uint   `gorm:"index;not null"`             // 所属告警 ID
	Tag      string `gorm:"type:varchar(191);not null"` // 小写、去空白后的关键词
	Required bool   `gorm:"default:false"`              // 是否为必须标签
}

// NormalizeTag 返回小写并去除首尾空白后的标签文本。
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Posting 表示从上游搜索 API 归一化后的一条职位信息。
//
// ExternalID 是职位在上游的唯一标识，用于 Upsert 去重：
// 同一 ExternalID 再次出现时更新已有记录而不是新建。
type Posting struct {
	ID        uint      `gorm:"primaryKey"` // 内部 ID
	CreatedAt time.Time // 首次入库时间
	UpdatedAt time.Time // 更新时间

	ExternalID  string `gorm:"type:varchar(191);uniqueIndex;not null"` // 上游原始 ID（唯一索引）
	Title       string // 职位标题
	Company     string // 公司名称
	Location    string // 地点（city/state/country 逗号拼接）
	Description string `gorm:"type:text"` // 职位描述
	JobURL      string // 申请链接

	SalaryMin *float64 // 薪资下限（可空）
	SalaryMax *float64 // 薪资上限（可空）

	EmploymentType string    // 雇佣类型（如 FULLTIME）
	PublishedAt    time.Time // 上游发布时间（缺失或无法解析时取当前时间）
}

// DeliveryRecord 记录某条职位已经发送给某个用户。
//
// (UserID, PostingID) 上有联合唯一索引，重复插入由数据库约束拒绝，
// 读取侧（重复过滤）只需做存在性检查。
type DeliveryRecord struct {
	ID uint `gorm:"primaryKey"`

	UserID    uint `gorm:"uniqueIndex:idx_user_posting;not null"` // 用户 ID
	PostingID uint `gorm:"uniqueIndex:idx_user_posting;not null"` // 职位 ID

	AlertTitle string    // 发送时所属告警的标题
	SentAt     time.Time `gorm:"autoCreateTime"` // 发送时间
}
