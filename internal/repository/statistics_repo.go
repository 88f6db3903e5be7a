package repository

import (
	"context"
	"fmt"

	"taxnexus/internal/model"

	"gorm.io/gorm"
)

type StatisticsRepository interface {
	CountAnalyses(ctx context.Context, f model.StatisticsFilter) (total, calculated int64, err error)
	GetExposure(ctx context.Context, f model.StatisticsFilter) (liability string, nexusResults, needsReview int64, err error)
	GetTopJurisdictions(ctx context.Context, f model.StatisticsFilter, limit int) ([]model.JurisdictionExposure, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

// asOfBetween restricts a query joined to analyses to live analyses inside
// the filter's as-of range.
func asOfBetween(f model.StatisticsFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("analyses.deleted_at IS NULL")
		if !f.Start.IsZero() {
			db = db.Where("analyses.as_of_date >= ?", f.Start)
		}
		if !f.End.IsZero() {
			db = db.Where("analyses.as_of_date <= ?", f.End)
		}
		return db
	}
}

func (r *statisticsRepository) CountAnalyses(ctx context.Context, f model.StatisticsFilter) (int64, int64, error) {
	var result struct {
		Total      int64
		Calculated int64
	}
	if err := r.db.WithContext(ctx).Table("analyses").
		Select("COUNT(*) as total, COALESCE(SUM(CASE WHEN analyses.status = ? THEN 1 ELSE 0 END), 0) as calculated", model.AnalysisStatusCalculated).
		Scopes(asOfBetween(f)).
		Scan(&result).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return result.Total, result.Calculated, nil
}

func (r *statisticsRepository) GetExposure(ctx context.Context, f model.StatisticsFilter) (string, int64, int64, error) {
	var result struct {
		Liability   string
		Nexus       int64
		NeedsReview int64
	}
	if err := r.db.WithContext(ctx).Table("state_year_results").
		Select("COALESCE(CAST(SUM(state_year_results.total_liability) AS TEXT), '0') as liability, "+
			"COALESCE(SUM(CASE WHEN state_year_results.status IN ? THEN 1 ELSE 0 END), 0) as nexus, "+
			"COALESCE(SUM(CASE WHEN state_year_results.needs_manual_review THEN 1 ELSE 0 END), 0) as needs_review", f.NexusStatuses).
		Joins("JOIN analyses ON analyses.id = state_year_results.analysis_id").
		Scopes(asOfBetween(f)).
		Scan(&result).Error; err != nil {
		return "", 0, 0, fmt.Errorf("failed to sum exposure: %w", err)
	}
	return result.Liability, result.Nexus, result.NeedsReview, nil
}

func (r *statisticsRepository) GetTopJurisdictions(ctx context.Context, f model.StatisticsFilter, limit int) ([]model.JurisdictionExposure, error) {
	var rankings []model.JurisdictionExposure
	if err := r.db.WithContext(ctx).Table("state_year_results").
		Select("state_year_results.jurisdiction as jurisdiction, COUNT(DISTINCT state_year_results.analysis_id) as analysis_count, "+
			"SUM(CASE WHEN state_year_results.needs_manual_review THEN 1 ELSE 0 END) as review_count, "+
			"COALESCE(CAST(SUM(state_year_results.total_liability) AS TEXT), '0') as total_liability").
		Joins("JOIN analyses ON analyses.id = state_year_results.analysis_id").
		Scopes(asOfBetween(f)).
		Where("state_year_results.status IN ?", f.NexusStatuses).
		Group("state_year_results.jurisdiction").
		Order("COALESCE(SUM(state_year_results.total_liability), 0) DESC, state_year_results.jurisdiction").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top jurisdictions: %w", err)
	}
	return rankings, nil
}
