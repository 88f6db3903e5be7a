package repository

import (
	"context"
	"time"

	"taxnexus/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AnalysisRepository interface {
	Create(ctx context.Context, a *model.Analysis) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Analysis, error)
	List(ctx context.Context, page, limit int) ([]model.Analysis, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	MarkCalculated(ctx context.Context, id uuid.UUID, at time.Time) error
}

type analysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

func (r *analysisRepository) Create(ctx context.Context, a *model.Analysis) error {
	return GetDB(ctx, r.db).Create(a).Error
}

func (r *analysisRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Analysis, error) {
	var a model.Analysis
	if err := GetDB(ctx, r.db).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *analysisRepository) List(ctx context.Context, page, limit int) ([]model.Analysis, int64, error) {
	var analyses []model.Analysis
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Analysis{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&analyses).Error; err != nil {
		return nil, 0, err
	}

	return analyses, total, nil
}

// Delete soft-deletes the analysis and hard-deletes the rows hanging off it.
func (r *analysisRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	for _, child := range []interface{}{&model.SalesTransaction{}, &model.PhysicalNexusFact{}, &model.StateYearResult{}} {
		if err := db.Where("analysis_id = ?", id).Delete(child).Error; err != nil {
			return err
		}
	}
	return db.Where("id = ?", id).Delete(&model.Analysis{}).Error
}

func (r *analysisRepository) MarkCalculated(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.Analysis{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":             model.AnalysisStatusCalculated,
		"last_calculated_at": at,
	}).Error
}
