package grading

import "math"

// Weighted is one graded course contributing to an average.
type Weighted struct {
	CreditUnits int
	GradePoint  float64
}

// Average is a credit-weighted grade point average with its components.
type Average struct {
	Value             float64 `json:"value"`
	TotalCreditUnits  int     `json:"total_credit_units"`
	TotalQualityPoint float64 `json:"total_quality_points"`
}

// WeightedAverage computes Σ(units × point) / Σ(units) rounded half-up to two
// decimal places. Grade points are carried as integer hundredths so the result
// does not depend on float summation order. Zero total units yield exactly 0.
func WeightedAverage(items []Weighted) Average {
	var units, quality int64
	for _, item := range items {
		if item.CreditUnits <= 0 {
			continue
		}
		units += int64(item.CreditUnits)
		quality += int64(item.CreditUnits) * hundredths(item.GradePoint)
	}
	if units == 0 {
		return Average{}
	}
	// round(quality/units) on non-negative integers, half-up.
	value := (2*quality + units) / (2 * units)
	return Average{
		Value:             float64(value) / 100,
		TotalCreditUnits:  int(units),
		TotalQualityPoint: float64(quality) / 100,
	}
}

func hundredths(v float64) int64 {
	if v <= 0 {
		return 0
	}
	return int64(math.Round(v * 100))
}
