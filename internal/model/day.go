package model

import "time"

// Day is the synchronized row of a field day (collection axis_days).
type Day struct {
	ID           string     `gorm:"primaryKey;size:64"`
	UserID       string     `gorm:"index;size:64"`
	Date         string     `gorm:"index;size:10;not null"`
	Merchandiser string     `gorm:"size:128"`
	Route        string     `gorm:"size:128"`
	StartedAt    time.Time  `gorm:"not null"`
	EndedAt      *time.Time `gorm:"index"`
	Data         string     `gorm:"type:text"` // full JSON document
	UpdatedAt    time.Time
}

func (Day) TableName() string { return "axis_days" }

// Visit is the synchronized row of a store visit (collection axis_visits).
type Visit struct {
	ID        string     `gorm:"primaryKey;size:64"`
	UserID    string     `gorm:"index;size:64"`
	DayID     string     `gorm:"index;size:64;not null"`
	StoreID   string     `gorm:"size:64;not null"`
	StoreName string     `gorm:"size:256"`
	StartedAt time.Time  `gorm:"not null"`
	EndedAt   *time.Time `gorm:"index"`
	Urgent    int        `gorm:"not null;default:0"`
	Data      string     `gorm:"type:text"`
	UpdatedAt time.Time
}

func (Visit) TableName() string { return "axis_visits" }
