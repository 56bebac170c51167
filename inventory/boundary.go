package inventory

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// onBoundaryEpsilon is the planar distance under which a point counts as
// lying on the boundary ring itself. Boundary-as-inside is part of the
// containment contract.
const onBoundaryEpsilon = 1e-9

// Boundary is the reference polygon for one survey unit, loaded once per
// validation pass and treated as a read-only snapshot. Multi-part regions
// use union semantics for containment.
type Boundary struct {
	parts orb.MultiPolygon
	kind  FrameKind
}

// NewBoundary wraps an orb geometry as a survey boundary. Polygon and
// MultiPolygon geometries are accepted. The frame kind decides how the
// corrector measures snap distances.
func NewBoundary(geom orb.Geometry, kind FrameKind) (*Boundary, error) {
	switch g := geom.(type) {
	case orb.Polygon:
		if len(g) == 0 || len(g[0]) < 4 {
			return nil, fmt.Errorf("boundary polygon has no valid outer ring")
		}
		return &Boundary{parts: orb.MultiPolygon{g}, kind: kind}, nil
	case orb.MultiPolygon:
		if len(g) == 0 {
			return nil, fmt.Errorf("boundary multipolygon is empty")
		}
		for i, p := range g {
			if len(p) == 0 || len(p[0]) < 4 {
				return nil, fmt.Errorf("boundary multipolygon part %d has no valid outer ring", i)
			}
		}
		return &Boundary{parts: g, kind: kind}, nil
	default:
		return nil, fmt.Errorf("boundary must be a Polygon or MultiPolygon, got %T", geom)
	}
}

// LoadBoundary reads a boundary from a GeoJSON file. A FeatureCollection,
// a single Feature, or a bare geometry are all accepted; the first Polygon
// or MultiPolygon found wins.
func LoadBoundary(path string, kind FrameKind) (*Boundary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("boundary file not found: %s", path)
		}
		return nil, fmt.Errorf("reading boundary file: %w", err)
	}
	return ParseBoundary(data, kind)
}

// ParseBoundary parses GeoJSON bytes into a Boundary.
func ParseBoundary(data []byte, kind FrameKind) (*Boundary, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil {
		for _, f := range fc.Features {
			if b, err := NewBoundary(f.Geometry, kind); err == nil {
				return b, nil
			}
		}
		return nil, fmt.Errorf("boundary FeatureCollection contains no polygon feature")
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil {
		return NewBoundary(f.Geometry, kind)
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("parsing boundary GeoJSON: %w", err)
	}
	return NewBoundary(g.Geometry(), kind)
}

// Contains reports whether a point is inside the boundary, with points on
// the boundary ring counting as inside. Multi-part boundaries use union
// semantics.
func (b *Boundary) Contains(x, y float64) bool {
	p := orb.Point{x, y}
	for _, poly := range b.parts {
		if planar.PolygonContains(poly, p) {
			return true
		}
		// Boundary rings count as inside, hole rings included: a point
		// exactly on a hole's edge has not left the survey unit.
		for _, ring := range poly {
			if planar.DistanceFrom(orb.LineString(ring), p) <= onBoundaryEpsilon {
				return true
			}
		}
	}
	return false
}

// Bound returns the bounding box of the whole boundary.
func (b *Boundary) Bound() orb.Bound {
	return b.parts.Bound()
}

// FrameKind returns the frame kind the boundary coordinates are in.
func (b *Boundary) FrameKind() FrameKind {
	return b.kind
}

// CheckPoints decides containment for a batch of survey points against the
// boundary. tolerancePct is the maximum percentage of points allowed out
// of boundary; beyond it the caller must reject the upload outright rather
// than auto-correct. needsCorrection is true only when there are failures
// small enough in share to plausibly be GPS noise.
func (b *Boundary) CheckPoints(points []SurveyPoint, tolerancePct float64) BoundaryCheck {
	check := BoundaryCheck{TotalPoints: len(points)}
	for _, pt := range points {
		if !b.Contains(pt.X, pt.Y) {
			check.OutOfBoundaryPoints = append(check.OutOfBoundaryPoints, pt)
		}
	}
	check.OutOfBoundaryCount = len(check.OutOfBoundaryPoints)
	if check.TotalPoints > 0 {
		check.OutOfBoundaryPct = float64(check.OutOfBoundaryCount) / float64(check.TotalPoints) * 100
	}
	check.WithinTolerance = check.OutOfBoundaryPct <= tolerancePct
	check.NeedsCorrection = check.OutOfBoundaryCount > 0 && check.WithinTolerance
	return check
}
