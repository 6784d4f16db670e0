// Package stats derives per-machine and fleet statistics from telemetry
// records. Every function is pure and tolerant of missing data.
package stats

import (
	"math"

	"github.com/floorwatch/backend/internal/models"
)

// VarianceBucket is the qualitative classification of cycle-time spread.
type VarianceBucket string

const (
	VarianceLow    VarianceBucket = "Low"
	VarianceMedium VarianceBucket = "Medium"
	VarianceHigh   VarianceBucket = "High"
)

// ParseSeconds parses a decimal-seconds wire value; failure yields 0.
func ParseSeconds(s string) float64 {
	return models.ParseDecimal(s)
}

// AverageCycleTime is the arithmetic mean of the cycle times in history.
// An empty history averages to 0. The mean is accumulated incrementally so
// large samples do not overflow an intermediate sum.
func AverageCycleTime(history []models.CycleSample) float64 {
	var mean float64
	for i, s := range history {
		n := float64(i + 1)
		mean += s.CycleTime.Float()/n - mean/n
	}
	return finite(mean)
}

// CycleTimeVariance is the population standard deviation of history
// around average: sqrt(sum((x - average)^2) / n). Despite the name it is
// a deviation in seconds, which is what the variance bucket thresholds use.
// Deviations are scaled by the largest one before squaring.
func CycleTimeVariance(history []models.CycleSample, average float64) float64 {
	if len(history) == 0 {
		return 0
	}
	var scale float64
	for _, s := range history {
		scale = max(scale, math.Abs(s.CycleTime.Float()-average))
	}
	if scale == 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return 0
	}
	var sum float64
	for _, s := range history {
		d := (s.CycleTime.Float() - average) / scale
		sum += d * d
	}
	return finite(scale * math.Sqrt(sum/float64(len(history))))
}

// CycleTimeVariancePercentage buckets variance using the default rules.
func CycleTimeVariancePercentage(variance float64) VarianceBucket {
	return DefaultRules().Bucket(variance)
}

// ServerEfficiency is the shift efficiency computed by the server and sent
// with the record. It is not recomputed locally.
func ServerEfficiency(rec models.MachineRecord) float64 {
	return rec.Efficiency.Float()
}

// LocalProductionRatio is currentProduction / targetProduction * 100.
// It measures progress against the production target, which is a
// different quantity from ServerEfficiency. Overshoot above 100 is valid.
func LocalProductionRatio(current, target float64) float64 {
	if target <= 0 || math.IsNaN(target) || math.IsInf(target, 0) {
		return 0
	}
	return finite(current / target * 100)
}

// finite maps NaN and the infinities to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// MachineStats is everything a live-run card shows beyond raw fields.
type MachineStats struct {
	MachineNumber        string         `json:"machineNumber"`
	SampleCount          int            `json:"sampleCount"`
	AverageCycleTime     float64        `json:"averageCycleTime"`
	CycleTimeVariance    float64        `json:"cycleTimeVariance"`
	VarianceBucket       VarianceBucket `json:"cycleTimeVariancePercentage"`
	ServerEfficiency     float64        `json:"serverEfficiency"`
	LocalProductionRatio float64        `json:"localProductionRatio"`
	TargetCycleTime      float64        `json:"targetCycleTime"`
	CycleTimeDeviation   float64        `json:"cycleTimeDeviation"` // average minus component target, 0 without a target
}

// Derive computes the card statistics for rec.
func Derive(rec models.MachineRecord, rules Rules) MachineStats {
	avg := AverageCycleTime(rec.InsertHistory)
	variance := CycleTimeVariance(rec.InsertHistory, avg)
	target := rec.Component.TargetCycleTime.Float()

	st := MachineStats{
		MachineNumber:        rec.Machine.MachineNumber,
		SampleCount:          len(rec.InsertHistory),
		AverageCycleTime:     avg,
		CycleTimeVariance:    variance,
		VarianceBucket:       rules.Bucket(variance),
		ServerEfficiency:     ServerEfficiency(rec),
		LocalProductionRatio: LocalProductionRatio(rec.CurrentProduction.Float(), rec.TargetProduction.Float()),
		TargetCycleTime:      target,
	}
	if target > 0 && len(rec.InsertHistory) > 0 {
		st.CycleTimeDeviation = finite(avg - target)
	}
	return st
}
