package stats

import (
	"strings"

	"github.com/floorwatch/backend/internal/models"
)

// FleetSummary counts machines per status for the whole snapshot.
type FleetSummary struct {
	Total       int     `json:"total"`
	Active      int     `json:"active"`
	Idle        int     `json:"idle"`
	Stopped     int     `json:"stopped"`
	Other       int     `json:"other"`
	Utilization float64 `json:"utilization"` // percent of machines Active
	Production  float64 `json:"production"`
	Target      float64 `json:"target"`
}

// Summarize aggregates records. Status comparison is case-insensitive;
// statuses outside the known set are counted as Other.
func Summarize(records []models.MachineRecord) FleetSummary {
	var s FleetSummary
	for _, rec := range records {
		s.Total++
		switch {
		case strings.EqualFold(string(rec.Status), string(models.StatusActive)):
			s.Active++
		case strings.EqualFold(string(rec.Status), string(models.StatusIdle)):
			s.Idle++
		case strings.EqualFold(string(rec.Status), string(models.StatusStopped)):
			s.Stopped++
		default:
			s.Other++
		}
		s.Production += rec.CurrentProduction.Float()
		s.Target += rec.TargetProduction.Float()
	}
	s.Production = finite(s.Production)
	s.Target = finite(s.Target)
	if s.Total > 0 {
		s.Utilization = float64(s.Active) / float64(s.Total) * 100
	}
	return s
}
