package model

import "time"

type Restaurant struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Address   string    `gorm:"type:varchar(500)" json:"address"`
	Lat       float64   `gorm:"not null" json:"lat"`
	Lng       float64   `gorm:"not null" json:"lng"`
	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	FeeWaived bool      `gorm:"not null;default:false" json:"fee_waived"` // サブスク料免除フラグ
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
