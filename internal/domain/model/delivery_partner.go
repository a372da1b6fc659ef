package model

import "time"

// DeliveryPartner のis_availableは配達中falseになり、完了/キャンセルで1回だけtrueに戻る
type DeliveryPartner struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string     `gorm:"type:varchar(255);not null" json:"name"`
	Phone          string     `gorm:"type:varchar(20)" json:"phone"`
	IsOnline       bool       `gorm:"not null;default:false;index" json:"is_online"`
	IsAvailable    bool       `gorm:"not null;default:false;index" json:"is_available"`
	CurrentLat     *float64   `json:"current_lat"`
	CurrentLng     *float64   `json:"current_lng"`
	LocationAt     *time.Time `json:"location_at"`
	AcceptanceRate float64    `gorm:"not null;default:1" json:"acceptance_rate"`
	Rating         float64    `gorm:"not null;default:5" json:"rating"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// HasLocation は現在地が既知か
func (p DeliveryPartner) HasLocation() bool {
	return p.CurrentLat != nil && p.CurrentLng != nil
}
