package model

import "time"

// User 表示系统用户。
//
// Password 存储的是 bcrypt 哈希（带 SHA256 预哈希），绝不保存明文。
// VerificationToken 仅在邮箱验证未完成时存在，验证成功后清空。
// ResetToken / ResetTokenExpires 仅在密码重置进行中存在，重置成功后一并清空。
type User struct {
	ID        uint   `gorm:"primaryKey"`                    // 用户 ID
	Email     string `gorm:"type:varchar(191);uniqueIndex"` // 邮箱（唯一，小写规范化）
	Password  string `gorm:"not null"`                      // 密码哈希
	FirstName string `gorm:"type:varchar(100)"`             // 名
	LastName  string `gorm:"type:varchar(100)"`             // 姓

	IsActive          bool       `gorm:"default:true"`            // 是否启用（false 时禁止一切认证操作）
	IsVerified        bool       `gorm:"default:false"`           // 邮箱是否已验证
	VerificationToken string     `gorm:"type:varchar(512)"`       // 邮箱验证令牌
	ResetToken        string     `gorm:"type:varchar(191);index"` // 密码重置令牌（随机不透明串）
	ResetTokenExpires *time.Time // 重置令牌过期时间

	CreatedAt time.Time // 创建时间
	UpdatedAt time.Time // 更新时间
}
