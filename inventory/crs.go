package inventory

import (
	"fmt"
	"math"
)

// DefaultFrames returns the built-in reference frames, ordered by
// likelihood. The boxes cover the survey region: one geographic frame in
// degrees and the three Modified UTM zones in meters. Detection is purely
// mechanical over this list, so callers can extend it via config.
func DefaultFrames() []ReferenceFrame {
	return []ReferenceFrame{
		{
			Name: "WGS84 geographic",
			EPSG: "EPSG:4326",
			Kind: FrameGeographic,
			MinX: 80.0, MaxX: 88.25,
			MinY: 26.3, MaxY: 30.5,
		},
		{
			Name: "MUTM central (84E)",
			Kind: FrameProjected,
			MinX: 150000, MaxX: 850000,
			MinY: 2910000, MaxY: 3380000,
		},
		{
			Name: "MUTM west (81E)",
			Kind: FrameProjected,
			MinX: 150000, MaxX: 850000,
			MinY: 3060000, MaxY: 3380000,
		},
		{
			Name: "MUTM east (87E)",
			Kind: FrameProjected,
			MinX: 150000, MaxX: 850000,
			MinY: 2910000, MaxY: 3100000,
		},
	}
}

// FrameByName returns the frame with the given name, or nil.
func FrameByName(frames []ReferenceFrame, name string) *ReferenceFrame {
	for i := range frames {
		if frames[i].Name == name {
			return &frames[i]
		}
	}
	return nil
}

// valueRange returns the min and max of a non-empty slice.
func valueRange(values []float64) [2]float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return [2]float64{lo, hi}
}

// containsRange reports whether the frame's box fully contains both ranges.
func (f *ReferenceFrame) containsRange(xr, yr [2]float64) bool {
	return xr[0] >= f.MinX && xr[1] <= f.MaxX &&
		yr[0] >= f.MinY && yr[1] <= f.MaxY
}

// DetectFrame classifies raw X/Y columns into a known reference frame.
// Both the X-range and the Y-range must fall entirely inside a candidate
// frame's box; the first full containment wins with high confidence. If the
// geographic frame would contain the data only after swapping X and Y, the
// result carries AxisSwapped instead of a silent frame choice. If no frame
// contains the data the confidence is none and the observed ranges are
// returned for the caller-supplied override path.
func DetectFrame(xs, ys []float64, frames []ReferenceFrame) (CRSDetection, error) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return CRSDetection{}, fmt.Errorf("coordinate columns must be non-empty and of equal length (got %d x, %d y)", len(xs), len(ys))
	}

	xr := valueRange(xs)
	yr := valueRange(ys)

	for i := range frames {
		f := &frames[i]
		if f.containsRange(xr, yr) {
			return CRSDetection{
				Frame:      f,
				Confidence: ConfidenceHigh,
				Method:     "bounding-box",
				XRange:     xr,
				YRange:     yr,
			}, nil
		}
	}

	// The geographic box containing the data only with axes exchanged means
	// the columns are almost certainly mislabeled. Hard-fail rather than
	// guess: a wrong call here corrupts every downstream computation.
	for i := range frames {
		f := &frames[i]
		if f.Kind == FrameGeographic && f.containsRange(yr, xr) {
			return CRSDetection{
				Confidence:  ConfidenceNone,
				Method:      "bounding-box",
				XRange:      xr,
				YRange:      yr,
				AxisSwapped: true,
			}, nil
		}
	}

	return CRSDetection{
		Confidence: ConfidenceNone,
		Method:     "bounding-box",
		XRange:     xr,
		YRange:     yr,
	}, nil
}

// ResolveFrame reconciles a detection with an optional caller-supplied
// override. The override always wins, but when it conflicts with a
// confident detection the returned conflict flag is set so the caller can
// surface a warning instead of silently overriding.
func ResolveFrame(detected CRSDetection, override *ReferenceFrame) (frame *ReferenceFrame, conflict bool) {
	if override == nil {
		return detected.Frame, false
	}
	if detected.Confidence == ConfidenceHigh && detected.Frame != nil && detected.Frame.Name != override.Name {
		return override, true
	}
	return override, false
}
