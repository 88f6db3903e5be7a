package database

import (
	"log"

	"taxnexus/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log.Println("WARNING: Failed to auto-migrate models:", err)
	}

	return db, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Analysis{},
		&model.SalesTransaction{},
		&model.PhysicalNexusFact{},
		&model.ThresholdRule{},
		&model.MarketplaceRule{},
		&model.TaxRateRule{},
		&model.InterestPenaltyRule{},
		&model.StateYearResult{},
		&model.AuditLog{},
	)
}
