// Copyright 2025 Certen Protocol
//

package api

import (
	"time"

	"github.com/passportxyz/scorer/internal/database"
	"github.com/passportxyz/scorer/internal/humanpoints"
	"github.com/passportxyz/scorer/internal/orchestrator"
)

// scoreDTO is the wire shape spec.md §6 "Score response shape" describes.
// orchestrator.Response keeps HumanPoints as a single Report (tagged
// json:"-") since the two wire keys it splits into, points_data and
// possible_points_data, are an HTTP-surface concern, not a domain one.
type scoreDTO struct {
	Address            string                               `json:"address"`
	Score              string                                `json:"score"`
	PassingScore       bool                                 `json:"passing_score"`
	Threshold          string                               `json:"threshold"`
	LastScoreTimestamp time.Time                            `json:"last_score_timestamp"`
	ExpirationDate     *time.Time                           `json:"expiration_timestamp,omitempty"`
	Error              string                               `json:"error,omitempty"`
	Stamps             map[string]database.ScoreStampEntry `json:"stamps"`
	Evidence           database.Evidence                   `json:"evidence"`
	PointsData         *pointsDataDTO                       `json:"points_data,omitempty"`
	PossiblePointsData *pointsDataDTO                       `json:"possible_points_data,omitempty"`
}

type pointsDataDTO struct {
	IsEligible bool              `json:"is_eligible"`
	Breakdown  map[string]string `json:"breakdown"`
	Total      string            `json:"total_points"`
}

func renderScore(resp *orchestrator.Response) scoreDTO {
	dto := scoreDTO{
		Address:            resp.Address,
		Score:              resp.Score,
		PassingScore:       resp.PassingScore,
		Threshold:          resp.Threshold,
		LastScoreTimestamp: resp.LastScoreTimestamp,
		ExpirationDate:     resp.ExpirationDate,
		Error:              resp.Error,
		Stamps:             resp.Stamps,
		Evidence:           resp.Evidence,
	}
	if resp.HumanPoints != nil {
		dto.PointsData = renderPointsData(resp.HumanPoints, false)
		dto.PossiblePointsData = renderPointsData(resp.HumanPoints, true)
	}
	return dto
}

// renderPointsData splits humanpoints.Report into the two wire-format
// halves spec.md §6 names. possible_points_data.total_points is hardcoded
// to 0 in the domain report "to match existing consumers" (spec.md §4.6);
// that quirk is carried through unmodified, not reintroduced here.
func renderPointsData(report *humanpoints.Report, possible bool) *pointsDataDTO {
	dto := &pointsDataDTO{IsEligible: report.IsEligible, Breakdown: map[string]string{}}
	breakdown := report.Breakdown
	total := report.TotalPoints
	if possible {
		breakdown = report.PossibleBreakdown
		total = report.PossibleTotal
	}
	for _, b := range breakdown {
		dto.Breakdown[b.Key] = b.Points.String()
	}
	dto.Total = total.String()
	return dto
}
