package repository

import (
	"context"

	"taxnexus/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ResultRepository interface {
	// ReplaceForAnalysis deletes the analysis' previous results and inserts
	// rows. Run it inside a transaction so readers never see a partial set.
	ReplaceForAnalysis(ctx context.Context, analysisID uuid.UUID, rows []model.StateYearResult) error
	ListByAnalysis(ctx context.Context, analysisID uuid.UUID, jurisdiction string) ([]model.StateYearResult, error)
}

type resultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) ReplaceForAnalysis(ctx context.Context, analysisID uuid.UUID, rows []model.StateYearResult) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("analysis_id = ?", analysisID).Delete(&model.StateYearResult{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return db.CreateInBatches(rows, insertBatchSize).Error
}

func (r *resultRepository) ListByAnalysis(ctx context.Context, analysisID uuid.UUID, jurisdiction string) ([]model.StateYearResult, error) {
	var rows []model.StateYearResult
	query := GetDB(ctx, r.db).Where("analysis_id = ?", analysisID)
	if jurisdiction != "" {
		query = query.Where("jurisdiction = ?", jurisdiction)
	}
	if err := query.Order("jurisdiction asc, year asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
