package model

import "time"

// StatisticsFilter bounds portfolio statistics by analysis as-of date.
// Zero bounds are open.
type StatisticsFilter struct {
	Start         time.Time
	End           time.Time
	NexusStatuses []string
}

// JurisdictionExposure ranks a jurisdiction by the liability it carries
// across every analysis in the filter.
type JurisdictionExposure struct {
	Jurisdiction   string `json:"jurisdiction"`
	AnalysisCount  int    `json:"analysis_count"`
	ReviewCount    int    `json:"review_count"`
	TotalLiability string `json:"total_liability"`
}
