package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleRepository stores one versioned rule table. T is one of the rule
// models in internal/model; all of them share the RuleWindow columns.
type RuleRepository[T any] interface {
	Create(ctx context.Context, rule *T) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Close sets the end of an open or later-ending version.
	Close(ctx context.Context, id uuid.UUID, effectiveTo time.Time) error
	FindByID(ctx context.Context, id uuid.UUID) (*T, error)
	List(ctx context.Context, jurisdiction string) ([]T, error)
	FindOverlapping(ctx context.Context, jurisdiction string, from time.Time, to *time.Time, excludeID *uuid.UUID) (int64, error)
}

type ruleRepository[T any] struct {
	db *gorm.DB
}

func NewRuleRepository[T any](db *gorm.DB) RuleRepository[T] {
	return &ruleRepository[T]{db: db}
}

func (r *ruleRepository[T]) Create(ctx context.Context, rule *T) error {
	return GetDB(ctx, r.db).Create(rule).Error
}

func (r *ruleRepository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(new(T)).Error
}

func (r *ruleRepository[T]) Close(ctx context.Context, id uuid.UUID, effectiveTo time.Time) error {
	return GetDB(ctx, r.db).Model(new(T)).Where("id = ?", id).Update("effective_to", effectiveTo).Error
}

func (r *ruleRepository[T]) FindByID(ctx context.Context, id uuid.UUID) (*T, error) {
	var rule T
	if err := GetDB(ctx, r.db).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

// List returns every version, or only one jurisdiction's when jurisdiction
// is set, ordered by jurisdiction then effective date.
func (r *ruleRepository[T]) List(ctx context.Context, jurisdiction string) ([]T, error) {
	var rules []T
	query := GetDB(ctx, r.db).Model(new(T))
	if jurisdiction != "" {
		query = query.Where("jurisdiction = ?", jurisdiction)
	}
	if err := query.Order("jurisdiction asc, effective_from asc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// FindOverlapping counts versions of the jurisdiction whose half-open range
// [effective_from, effective_to) intersects [from, to).
func (r *ruleRepository[T]) FindOverlapping(ctx context.Context, jurisdiction string, from time.Time, to *time.Time, excludeID *uuid.UUID) (int64, error) {
	var count int64
	query := GetDB(ctx, r.db).Model(new(T)).Where("jurisdiction = ?", jurisdiction)

	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}

	// existing.to IS NULL OR existing.to > new.from
	query = query.Where("(effective_to IS NULL OR effective_to > ?)", from)
	if to != nil {
		// and existing.from < new.to
		query = query.Where("effective_from < ?", *to)
	}

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
