package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PhysicalNexusFact records a period of physical presence asserted by the
// user (office, employees, inventory).
type PhysicalNexusFact struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	AnalysisID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"analysis_id"`
	Jurisdiction string     `gorm:"type:char(2);not null" json:"jurisdiction"`
	StartDate    time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate      *time.Time `gorm:"type:date" json:"end_date"` // nullable = ongoing
	Reason       string     `gorm:"type:text" json:"reason"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (f *PhysicalNexusFact) BeforeCreate(tx *gorm.DB) error {
	assignID(&f.ID)
	return nil
}
