package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Analysis groups the sales data, physical presence facts and computed
// results for one client engagement.
type Analysis struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ClientName       string         `gorm:"type:varchar(255);not null" json:"client_name"`
	AsOfDate         time.Time      `gorm:"type:date;not null" json:"as_of_date"`
	Status           string         `gorm:"type:varchar(20);not null;default:'draft'" json:"status"` // draft, calculated
	LastCalculatedAt *time.Time     `json:"last_calculated_at"`
	CreatedBy        *uuid.UUID     `gorm:"type:uuid;index" json:"created_by"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// Analysis status values
const (
	AnalysisStatusDraft      = "draft"
	AnalysisStatusCalculated = "calculated"
)

func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// assignID fills a zero primary key so inserts work on databases without a
// uuid default.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
