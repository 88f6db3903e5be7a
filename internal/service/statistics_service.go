package service

import (
	"context"
	"fmt"

	"taxnexus/internal/model"
	"taxnexus/internal/nexus"
	"taxnexus/internal/repository"

	"github.com/shopspring/decimal"
)

const topJurisdictionLimit = 5

// StatisticsResponse aggregates exposure across the analysis portfolio.
type StatisticsResponse struct {
	StartDate            *string                      `json:"start_date"`
	EndDate              *string                      `json:"end_date"`
	TotalAnalyses        int64                        `json:"total_analyses"`
	CalculatedAnalyses   int64                        `json:"calculated_analyses"`
	TotalLiability       string                       `json:"total_liability"`
	NexusResults         int64                        `json:"nexus_results"`
	ResultsNeedingReview int64                        `json:"results_needing_review"`
	TopJurisdictions     []model.JurisdictionExposure `json:"top_jurisdictions"`
}

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate string) (StatisticsResponse, error)
}

type statisticsService struct {
	repo repository.StatisticsRepository
}

func NewStatisticsService(repo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{repo: repo}
}

// GetStatistics sums stored results of analyses whose as-of date falls in
// [startDate, endDate]. Either bound may be empty.
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate string) (StatisticsResponse, error) {
	start, err := parseOptionalDate("start", startDate)
	if err != nil {
		return StatisticsResponse{}, err
	}
	end, err := parseOptionalDate("end", endDate)
	if err != nil {
		return StatisticsResponse{}, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return StatisticsResponse{}, invalidf("end_date %s is before start_date %s", endDate, startDate)
	}

	f := model.StatisticsFilter{NexusStatuses: []string{
		string(nexus.StatusEconomic), string(nexus.StatusPhysical), string(nexus.StatusBoth),
	}}
	if start != nil {
		f.Start = *start
	}
	if end != nil {
		f.End = *end
	}

	resp := StatisticsResponse{StartDate: formatDate(start), EndDate: formatDate(end)}
	if resp.TotalAnalyses, resp.CalculatedAnalyses, err = s.repo.CountAnalyses(ctx, f); err != nil {
		return StatisticsResponse{}, err
	}

	var liability string
	if liability, resp.NexusResults, resp.ResultsNeedingReview, err = s.repo.GetExposure(ctx, f); err != nil {
		return StatisticsResponse{}, err
	}
	if resp.TotalLiability, err = cents(liability); err != nil {
		return StatisticsResponse{}, err
	}

	if resp.TopJurisdictions, err = s.repo.GetTopJurisdictions(ctx, f, topJurisdictionLimit); err != nil {
		return StatisticsResponse{}, err
	}
	for i := range resp.TopJurisdictions {
		if resp.TopJurisdictions[i].TotalLiability, err = cents(resp.TopJurisdictions[i].TotalLiability); err != nil {
			return StatisticsResponse{}, err
		}
	}
	return resp, nil
}

// cents normalizes a database SUM rendered as text.
func cents(s string) (string, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("failed to parse aggregate %q: %w", s, err)
	}
	return d.StringFixed(2), nil
}
