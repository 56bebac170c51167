package inventory

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Column-label keywords decide the measurement kind immediately when
// present; field crews are reasonably consistent about labeling, so a label
// match outranks any statistic.
var (
	girthKeywords    = []string{"girth", "circumference", "cbh", "ghera"}
	diameterKeywords = []string{"dbh", "diameter", "dia", "vyas"}
)

// DetectMeasurementType decides whether a measurement column holds girth
// (circumference) or diameter values. Evidence order: column label keyword
// first, then the statistical heuristic over mean and 75th percentile.
// Values in the ambiguous band are classified by the P75 comparison and
// flagged for human confirmation. The input slice is never mutated.
func DetectMeasurementType(values []float64, columnLabel string, cfg MeasurementConfig) (MeasurementDetection, error) {
	if len(values) == 0 {
		return MeasurementDetection{}, fmt.Errorf("measurement column is empty")
	}

	stats := measurementStats(values)

	if kind, keyword := kindFromLabel(columnLabel); kind != "" {
		return MeasurementDetection{
			Kind:       kind,
			Confidence: ConfidenceHigh,
			Method:     "column-name:" + keyword,
			Stats:      stats,
		}, nil
	}

	switch {
	case stats.Mean > cfg.GirthMeanMin:
		return MeasurementDetection{
			Kind:       MeasurementGirth,
			Confidence: ConfidenceHigh,
			Method:     "statistical:mean",
			Stats:      stats,
		}, nil
	case stats.Mean < cfg.DiameterMeanMax:
		return MeasurementDetection{
			Kind:       MeasurementDiameter,
			Confidence: ConfidenceHigh,
			Method:     "statistical:mean",
			Stats:      stats,
		}, nil
	}

	// Ambiguous band: decide by the upper quartile, at medium confidence.
	kind := MeasurementDiameter
	if stats.P75 > cfg.AmbiguousGirthP75 {
		kind = MeasurementGirth
	}
	return MeasurementDetection{
		Kind:                 kind,
		Confidence:           ConfidenceMedium,
		Method:               "statistical:p75",
		Stats:                stats,
		RequiresConfirmation: true,
	}, nil
}

// kindFromLabel matches the column label against the keyword lists.
// Returns the empty kind when nothing matches.
func kindFromLabel(label string) (MeasurementKind, string) {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return "", ""
	}
	for _, kw := range girthKeywords {
		if strings.Contains(l, kw) {
			return MeasurementGirth, kw
		}
	}
	for _, kw := range diameterKeywords {
		if strings.Contains(l, kw) {
			return MeasurementDiameter, kw
		}
	}
	return "", ""
}

// measurementStats computes the column statistics on a sorted copy.
func measurementStats(values []float64) MeasurementStats {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return MeasurementStats{
		Mean: stat.Mean(sorted, nil),
		P75:  stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
	}
}

// GirthToDiameter converts a circumference to a diameter.
func GirthToDiameter(girth float64) float64 {
	return girth / math.Pi
}

// DiameterToGirth converts a diameter to a circumference.
func DiameterToGirth(diameter float64) float64 {
	return diameter * math.Pi
}

// conversionAuditSamples is how many before/after pairs a conversion
// records for the report.
const conversionAuditSamples = 3

// ConvertGirthColumn returns a new slice with every girth converted to a
// diameter, plus before/after sample pairs for the audit trail. The rows
// slice provides row numbers for the samples; it is not modified.
func ConvertGirthColumn(values []float64, rows []RawRow) ([]float64, []ConversionSample) {
	converted := make([]float64, len(values))
	samples := make([]ConversionSample, 0, conversionAuditSamples)
	for i, g := range values {
		converted[i] = GirthToDiameter(g)
		if len(samples) < conversionAuditSamples {
			rowNumber := i + 1
			if i < len(rows) {
				rowNumber = rows[i].RowNumber
			}
			samples = append(samples, ConversionSample{
				RowNumber: rowNumber,
				Girth:     g,
				Diameter:  converted[i],
			})
		}
	}
	return converted, samples
}

// CheckPlausibleDiameters returns the indexes of diameters outside the
// physically plausible bounds. These are hard errors: a 7 m diameter tree
// is a data problem, not a big tree.
func CheckPlausibleDiameters(diameters []float64, cfg MeasurementConfig) []int {
	var bad []int
	for i, d := range diameters {
		if d < cfg.MinPlausibleDiameter || d > cfg.MaxPlausibleDiameter {
			bad = append(bad, i)
		}
	}
	return bad
}
