package repository

import (
	"context"

	"taxnexus/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// insertBatchSize keeps multi-row inserts under postgres' bind parameter limit.
const insertBatchSize = 500

type SalesTransactionRepository interface {
	CreateBatch(ctx context.Context, txns []model.SalesTransaction) error
	ListByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]model.SalesTransaction, error)
	CountByAnalysis(ctx context.Context, analysisID uuid.UUID) (int64, error)
}

type salesTransactionRepository struct {
	db *gorm.DB
}

func NewSalesTransactionRepository(db *gorm.DB) SalesTransactionRepository {
	return &salesTransactionRepository{db: db}
}

func (r *salesTransactionRepository) CreateBatch(ctx context.Context, txns []model.SalesTransaction) error {
	if len(txns) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).CreateInBatches(txns, insertBatchSize).Error
}

// ListByAnalysis returns the analysis' transactions in a stable order so
// snapshots built from them are reproducible.
func (r *salesTransactionRepository) ListByAnalysis(ctx context.Context, analysisID uuid.UUID) ([]model.SalesTransaction, error) {
	var txns []model.SalesTransaction
	err := GetDB(ctx, r.db).
		Where("analysis_id = ?", analysisID).
		Order("jurisdiction asc, transaction_date asc, created_at asc, id asc").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *salesTransactionRepository) CountByAnalysis(ctx context.Context, analysisID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.SalesTransaction{}).Where("analysis_id = ?", analysisID).Count(&count).Error
	return count, err
}
