package entity

import "time"

// Member is one constituent of a market's universe stored in the database.
// Inactive members are kept for history but never resolved.
type Member struct {
	ID        uint      `gorm:"primaryKey"`
	Market    string    `gorm:"size:20;not null;uniqueIndex:idx_market_code"`
	Code      string    `gorm:"size:20;not null;uniqueIndex:idx_market_code"`
	Name      string    `gorm:"size:255;not null;default:''"`
	IsActive  bool      `gorm:"not null;default:true"`
	SortKey   int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName pins the table name.
func (Member) TableName() string { return "universe_members" }
