package repository

import (
	"context"

	"taxnexus/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PhysicalNexusRepository interface {
	Create(ctx context.Context, f *model.PhysicalNexusFact) error
	Update(ctx context.Context, f *model.PhysicalNexusFact) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PhysicalNexusFact, error)
	ListByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]model.PhysicalNexusFact, error)
}

type physicalNexusRepository struct {
	db *gorm.DB
}

func NewPhysicalNexusRepository(db *gorm.DB) PhysicalNexusRepository {
	return &physicalNexusRepository{db: db}
}

func (r *physicalNexusRepository) Create(ctx context.Context, f *model.PhysicalNexusFact) error {
	return GetDB(ctx, r.db).Create(f).Error
}

func (r *physicalNexusRepository) Update(ctx context.Context, f *model.PhysicalNexusFact) error {
	return GetDB(ctx, r.db).Save(f).Error
}

func (r *physicalNexusRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.PhysicalNexusFact{}).Error
}

func (r *physicalNexusRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PhysicalNexusFact, error) {
	var f model.PhysicalNexusFact
	if err := GetDB(ctx, r.db).First(&f, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *physicalNexusRepository) ListByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]model.PhysicalNexusFact, error) {
	var facts []model.PhysicalNexusFact
	err := GetDB(ctx, r.db).
		Where("analysis_id = ?", analysisID).
		Order("jurisdiction asc, start_date asc").
		Find(&facts).Error
	if err != nil {
		return nil, err
	}
	return facts, nil
}
