package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
// Email 存储前经过小写与去空格归一化；GoogleID 记录联合登录的外部身份（每个账号至多一个）。
type User struct {
	gorm.Model
	Email        string  `gorm:"uniqueIndex;size:255"`
	PasswordHash string  `gorm:"size:255"`
	FullName     string  `gorm:"size:255"`
	Avatar       string  `gorm:"size:512"`
	Phone        string  `gorm:"size:64"`
	Address      string  `gorm:"size:512"`
	GoogleID     *string `gorm:"uniqueIndex;size:128"`

	// 密码重置 OTP：找回密码时写入，重置成功后清空。
	ResetCode      string     `gorm:"size:16"`
	ResetExpiresAt *time.Time

	CVs []CV `gorm:"constraint:OnDelete:CASCADE"`
}

// CV 表示用户创建的一份简历文档。
// Content 为 JSONB 存储的完整文档（internal/document.Document）。
// ShareToken 一经生成不再变更，公开状态仅由 IsPublic 控制。
type CV struct {
	gorm.Model
	Name       string         `gorm:"size:255"`
	Content    datatypes.JSON `gorm:"type:jsonb"`
	UserID     uint           `gorm:"index"`
	User       User           `gorm:"constraint:OnDelete:CASCADE"`
	IsPublic   bool           `gorm:"default:false"`
	ShareToken *string        `gorm:"uniqueIndex;size:64"`
}
