package inventory

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// earthRadiusM is the sphere radius used for great-circle distances.
const earthRadiusM = 6371000.0

// Corrector snaps out-of-boundary points onto the boundary ring and
// reports how far each point moved. Corrections are generated as a
// preview; applying them to the working dataset is a separate, explicit
// step owned by the caller.
type Corrector struct {
	boundary *Boundary
}

// NewCorrector builds a corrector for one boundary snapshot.
func NewCorrector(boundary *Boundary) *Corrector {
	return &Corrector{boundary: boundary}
}

// Generate computes one Correction per out-of-boundary point: the nearest
// point on the boundary ring (never the interior) and the distance moved.
// Distance is great-circle (radius 6,371,000 m) for geographic boundaries
// and Euclidean for projected ones. DistanceMovedM is always >= 0 and the
// corrected point lies on the ring by construction.
func (c *Corrector) Generate(points []SurveyPoint) ([]Correction, CorrectionStats) {
	corrections := make([]Correction, 0, len(points))
	stats := CorrectionStats{}

	for _, pt := range points {
		snapped := c.nearestOnBoundary(orb.Point{pt.X, pt.Y})
		dist := c.distanceM(orb.Point{pt.X, pt.Y}, snapped)

		corrections = append(corrections, Correction{
			RowNumber:      pt.RowNumber,
			Original:       Position{X: pt.X, Y: pt.Y},
			Corrected:      Position{X: snapped[0], Y: snapped[1]},
			DistanceMovedM: dist,
		})

		if stats.Count == 0 || dist < stats.MinM {
			stats.MinM = dist
		}
		if dist > stats.MaxM {
			stats.MaxM = dist
		}
		stats.AvgM += dist
		stats.Count++
	}

	if stats.Count > 0 {
		stats.AvgM /= float64(stats.Count)
	}
	return corrections, stats
}

// nearestOnBoundary finds the closest point on any ring of any part.
func (c *Corrector) nearestOnBoundary(p orb.Point) orb.Point {
	bestDist := math.Inf(1)
	best := p
	for _, poly := range c.boundary.parts {
		for _, ring := range poly {
			dist, pt := distanceFromWithPoint(orb.LineString(ring), p)
			if dist < bestDist {
				bestDist = dist
				best = pt
			}
		}
	}
	return best
}

// distanceFromWithPoint returns the minimum euclidean distance from the
// line string along with the closest point on it. It locates the nearest
// segment via planar.DistanceFromWithIndex and projects p onto it.
func distanceFromWithPoint(ls orb.LineString, p orb.Point) (float64, orb.Point) {
	if len(ls) == 0 {
		return math.Inf(1), p
	}
	if len(ls) == 1 {
		return planar.Distance(ls[0], p), ls[0]
	}
	dist, i := planar.DistanceFromWithIndex(ls, p)
	return dist, closestOnSegment(ls[i], ls[i+1], p)
}

// closestOnSegment projects point onto the segment [a, b], clamped to its
// endpoints.
func closestOnSegment(a, b, point orb.Point) orb.Point {
	x := a[0]
	y := a[1]
	dx := b[0] - x
	dy := b[1] - y

	if dx != 0 || dy != 0 {
		t := ((point[0]-x)*dx + (point[1]-y)*dy) / (dx*dx + dy*dy)

		if t > 1 {
			x = b[0]
			y = b[1]
		} else if t > 0 {
			x += dx * t
			y += dy * t
		}
	}

	return orb.Point{x, y}
}

// distanceM measures original-to-corrected displacement in meters.
func (c *Corrector) distanceM(a, b orb.Point) float64 {
	if c.boundary.kind == FrameProjected {
		return planar.Distance(a, b)
	}
	return greatCircleM(a, b)
}

// greatCircleM is the haversine distance between two lon/lat points.
func greatCircleM(a, b orb.Point) float64 {
	lat1 := a[1] * math.Pi / 180
	lat2 := b[1] * math.Pi / 180
	dLat := (b[1] - a[1]) * math.Pi / 180
	dLon := (b[0] - a[0]) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

// LargeCorrections returns the corrections whose displacement exceeds the
// ceiling. A point tens of meters outside the boundary likely indicates a
// data problem rather than GPS noise and must surface to a human instead
// of being silently accepted.
func LargeCorrections(corrections []Correction, maxDistanceM float64) []Correction {
	var large []Correction
	for _, corr := range corrections {
		if corr.DistanceMovedM > maxDistanceM {
			large = append(large, corr)
		}
	}
	return large
}

// ErrCorrectionsExist is returned when a correction set already exists for
// an upload. Regenerating would double-snap already-moved points.
var ErrCorrectionsExist = fmt.Errorf("corrections already recorded for upload")

// CorrectionLedger enforces at-most-one correction set per upload.
// Recorded sets are append-only and never edited in place. The ledger is
// the in-process stand-in for the persistence boundary's uniqueness
// constraint; it is safe for concurrent correction requests.
type CorrectionLedger struct {
	mu   sync.Mutex
	sets map[uuid.UUID][]Correction
}

// NewCorrectionLedger creates an empty ledger.
func NewCorrectionLedger() *CorrectionLedger {
	return &CorrectionLedger{sets: make(map[uuid.UUID][]Correction)}
}

// Record stores a correction set for an upload. It fails with
// ErrCorrectionsExist when a set is already present, including an empty
// one: recording is a single-writer operation per upload.
func (l *CorrectionLedger) Record(uploadID uuid.UUID, corrections []Correction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.sets[uploadID]; exists {
		return fmt.Errorf("%w %s", ErrCorrectionsExist, uploadID)
	}
	stored := make([]Correction, len(corrections))
	copy(stored, corrections)
	l.sets[uploadID] = stored
	return nil
}

// Get returns the recorded correction set for an upload, if any.
func (l *CorrectionLedger) Get(uploadID uuid.UUID) ([]Correction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.sets[uploadID]
	if !ok {
		return nil, false
	}
	out := make([]Correction, len(set))
	copy(out, set)
	return out, true
}
