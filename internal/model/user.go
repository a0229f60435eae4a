package model

import (
	"strings"
	"time"
)

// User 表示系统用户。
//
// 本服务不做认证，User 只作为告警的所有者和邮件接收人存在。
type User struct {
	ID        uint      `gorm:"primaryKey"`                    // 用户 ID
	Name      string    `gorm:"type:varchar(191);not null"`    // 姓名
	Email     string    `gorm:"type:varchar(191);uniqueIndex"` // 邮箱（唯一）
	IsActive  bool      `gorm:"default:true"`                  // 是否启用
	CreatedAt time.Time // 创建时间

	Alerts []Alert `gorm:"foreignKey:UserID"`
}

// HasUsableEmail 返回用户是否有可用的收件地址。
func (u *User) HasUsableEmail() bool {
	return u != nil && strings.TrimSpace(u.Email) != ""
}
