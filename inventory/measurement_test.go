package inventory

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func measurementTestConfig() MeasurementConfig {
	return DefaultConfig().Measurement
}

func TestDetectMeasurementTypeByColumnName(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		values   []float64
		wantKind MeasurementKind
	}{
		{"girth label", "girth_cm", []float64{94.2, 110.5, 88.0}, MeasurementGirth},
		{"circumference label", "Circumference (cm)", []float64{120, 140}, MeasurementGirth},
		{"dbh label", "DBH", []float64{20, 30}, MeasurementDiameter},
		{"diameter label", "diameter_cm", []float64{200, 250}, MeasurementDiameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := DetectMeasurementType(tt.values, tt.label, measurementTestConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, det.Kind)
			assert.Equal(t, ConfidenceHigh, det.Confidence)
			assert.Contains(t, det.Method, "column-name")
			assert.False(t, det.RequiresConfirmation)
		})
	}
}

func TestDetectMeasurementTypeStatistical(t *testing.T) {
	tests := []struct {
		name            string
		values          []float64
		wantKind        MeasurementKind
		wantConfidence  Confidence
		wantConfirmFlag bool
	}{
		{"high mean is girth", []float64{120, 130, 140}, MeasurementGirth, ConfidenceHigh, false},
		{"low mean is diameter", []float64{20, 30, 40}, MeasurementDiameter, ConfidenceHigh, false},
		{"ambiguous low p75 is diameter", []float64{55, 60, 65, 70}, MeasurementDiameter, ConfidenceMedium, true},
		{"ambiguous high p75 is girth", []float64{60, 95, 95, 98}, MeasurementGirth, ConfidenceMedium, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := DetectMeasurementType(tt.values, "", measurementTestConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, det.Kind)
			assert.Equal(t, tt.wantConfidence, det.Confidence)
			assert.Equal(t, tt.wantConfirmFlag, det.RequiresConfirmation)
			assert.Contains(t, det.Method, "statistical")
		})
	}
}

func TestDetectMeasurementTypeDoesNotMutateInput(t *testing.T) {
	values := []float64{140, 120, 130}
	_, err := DetectMeasurementType(values, "", measurementTestConfig())
	require.NoError(t, err)
	assert.Equal(t, []float64{140, 120, 130}, values, "input slice must not be reordered or modified")
}

func TestDetectMeasurementTypeEmpty(t *testing.T) {
	_, err := DetectMeasurementType(nil, "girth", measurementTestConfig())
	assert.Error(t, err)
}

func TestGirthDiameterRoundTrip(t *testing.T) {
	for _, d := range []float64{1, 10, 29.97, 100, 499.9} {
		got := GirthToDiameter(DiameterToGirth(d))
		if math.Abs(got-d) > 1e-9 {
			t.Errorf("round trip for %.2f = %.12f", d, got)
		}
	}
}

func TestConvertGirthColumn(t *testing.T) {
	rows := []RawRow{{RowNumber: 1}, {RowNumber: 2}, {RowNumber: 3}}
	values := []float64{94.2, 110.5, 88.0}

	converted, samples := ConvertGirthColumn(values, rows)

	require.Len(t, converted, 3)
	assert.InDelta(t, 30.0, converted[0], 0.05)
	assert.InDelta(t, 35.2, converted[1], 0.05)
	assert.InDelta(t, 28.0, converted[2], 0.05)

	// Original column must be untouched; conversion works on a copy.
	assert.Equal(t, []float64{94.2, 110.5, 88.0}, values)

	require.Len(t, samples, 3)
	assert.Equal(t, 1, samples[0].RowNumber)
	assert.Equal(t, 94.2, samples[0].Girth)
	assert.InDelta(t, 30.0, samples[0].Diameter, 0.05)
}

func TestCheckPlausibleDiameters(t *testing.T) {
	cfg := measurementTestConfig()
	bad := CheckPlausibleDiameters([]float64{0.5, 25, 700, 30}, cfg)
	assert.Equal(t, []int{0, 2}, bad)

	assert.Nil(t, CheckPlausibleDiameters([]float64{10, 20}, cfg))
}
