package model

import (
	"time"
)

// Product 表示库存中的一个商品。
//
// ArticleNumber 是商品的业务编号（全局唯一），用于对外检索。
// InPrice 是进货价，Price 是销售价。
type Product struct {
	ID        uint      `gorm:"primaryKey"` // 商品唯一标识
	CreatedAt time.Time // 创建时间
	UpdatedAt time.Time // 更新时间

	ArticleNumber string  `gorm:"type:varchar(191);uniqueIndex;not null"` // 商品编号（唯一索引）
	Name          string  `gorm:"column:product;not null"`                // 商品名称
	InPrice       float64 `gorm:"not null"`                               // 进货价
	Price         float64 `gorm:"not null"`                               // 销售价
	Unit          string  `gorm:"type:varchar(50);not null"`              // 计量单位（kg / pieces / liters 等）
	Stock         int     `gorm:"default:0"`                              // 库存数量
	Description   string  `gorm:"type:text"`                              // 商品描述
}

// Translation 表示一条本地化文案。
//
// (Key, LanguageCode) 在业务上唯一，语言包按 LanguageCode 聚合下发给前端。
type Translation struct {
	ID        uint      `gorm:"primaryKey"` // 文案唯一标识
	CreatedAt time.Time // 创建时间
	UpdatedAt time.Time // 更新时间

	Key          string `gorm:"type:varchar(255);not null;index;index:idx_key_language"`       // 文案键，如 "nav.home"
	LanguageCode string `gorm:"type:varchar(10);not null;index;index:idx_key_language;index:idx_category_language,priority:2"` // 语言码，如 "en" / "sv"
	Value        string `gorm:"type:text;not null"`                                            // 翻译文本
	Category     string `gorm:"type:varchar(100);index;index:idx_category_language,priority:1"`                               // 分类，如 "navigation" / "auth"
}
