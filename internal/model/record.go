package model

import "time"

// Capture is a synchronized photo record (collection axis_captures).
type Capture struct {
	ID        string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"index;size:64"`
	VisitID   string    `gorm:"index;size:64;not null"`
	DayID     string    `gorm:"size:64;not null"`
	StoreID   string    `gorm:"size:64;not null"`
	Category  string    `gorm:"size:64;not null"`
	Comment   string    `gorm:"size:256"`
	FileRef   string    `gorm:"size:512;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Capture) TableName() string { return "axis_captures" }

// Scan is a synchronized code record (collection axis_scans).
type Scan struct {
	ID        string    `gorm:"primaryKey;size:64"`
	UserID    string    `gorm:"index;size:64"`
	VisitID   string    `gorm:"index;size:64;not null"`
	DayID     string    `gorm:"size:64;not null"`
	StoreID   string    `gorm:"size:64;not null"`
	Type      string    `gorm:"size:32;not null"`
	Value     string    `gorm:"size:128;not null"`
	Symbology string    `gorm:"size:16"`
	CreatedAt time.Time `gorm:"not null"`
}

func (Scan) TableName() string { return "axis_scans" }
