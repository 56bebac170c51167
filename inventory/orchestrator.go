package inventory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Stage names the validation state machine's states. Transitions are
// strictly forward; a hard error moves to StageRejected but only after the
// remaining stages needed for a complete report have run.
type Stage string

const (
	StageReceived             Stage = "received"
	StageCoordinatesResolved  Stage = "coordinates_resolved"
	StageMeasurementsResolved Stage = "measurements_resolved"
	StageSpeciesResolved      Stage = "species_resolved"
	StageBoundaryChecked      Stage = "boundary_checked"
	StageCorrectionsPending   Stage = "corrections_pending"
	StageReady                Stage = "ready"
	StageRejected             Stage = "rejected"
)

// stageOrder gives stages a stable sort index for report determinism.
func stageOrder(s Stage) int {
	switch s {
	case StageReceived:
		return 0
	case StageCoordinatesResolved:
		return 1
	case StageMeasurementsResolved:
		return 2
	case StageSpeciesResolved:
		return 3
	case StageBoundaryChecked:
		return 4
	case StageCorrectionsPending:
		return 5
	case StageReady:
		return 6
	default:
		return 7
	}
}

// speciesWorkers bounds the per-row species resolution pool.
const speciesWorkers = 8

// Upload is one validation pass's input: the ingested rows plus the
// upload-level hints resolved by ingestion and the caller.
type Upload struct {
	ID               uuid.UUID
	Rows             []RawRow
	MeasurementLabel string
	// FrameOverride names an explicit reference frame; empty means detect.
	FrameOverride string
	// Zone is the physiographic-zone hint for the species fallback.
	Zone Zone
}

// Validator sequences the detection and validation stages over one upload
// and accumulates a structured report. The catalog and boundary are
// read-only snapshots injected at construction; the validator itself holds
// no per-upload state and is safe for concurrent use.
type Validator struct {
	cfg      *Config
	frames   []ReferenceFrame
	catalog  *Catalog
	boundary *Boundary
	species  *SpeciesIdentifier
	ledger   *CorrectionLedger
}

// NewValidator wires a validator from its collaborators. A nil ledger gets
// a fresh in-memory one.
func NewValidator(cfg *Config, catalog *Catalog, boundary *Boundary, ledger *CorrectionLedger) *Validator {
	if ledger == nil {
		ledger = NewCorrectionLedger()
	}
	frames := DefaultFrames()
	frames = append(frames, cfg.ExtraFrames...)
	return &Validator{
		cfg:      cfg,
		frames:   frames,
		catalog:  catalog,
		boundary: boundary,
		species:  NewSpeciesIdentifier(catalog, cfg.Species),
		ledger:   ledger,
	}
}

// Validate runs the full pipeline over one upload: CRS resolution,
// measurement-type detection and conversion, per-row species resolution,
// boundary containment, and correction preview. It returns the complete
// report plus the validated rows (nil when the upload is rejected before
// rows could be resolved). Every stage accumulates findings rather than
// aborting, except failures that make continued analysis meaningless.
func (v *Validator) Validate(upload Upload) (*ValidationReport, []ValidatedRow) {
	b := newReportBuilder(upload.ID)
	state := StageReceived

	if len(upload.Rows) == 0 {
		b.addError(state, CodeEmptyUpload, "upload contains no data rows")
		return b.finalize(0, StageRejected), nil
	}

	// Stage: coordinate resolution, once over the whole columns.
	xs := make([]float64, len(upload.Rows))
	ys := make([]float64, len(upload.Rows))
	for i, r := range upload.Rows {
		xs[i] = r.X
		ys[i] = r.Y
	}

	frame, crsOK := v.resolveCoordinates(b, xs, ys, upload.FrameOverride)
	if !crsOK {
		// Without a frame no distance or containment computation is
		// meaningful, but the frame-independent stages still run so the
		// user sees everything wrong with the file in one pass.
		if diameters, ok := v.resolveMeasurements(b, upload); ok {
			v.reportRowAdvisories(b, upload, diameters)
		}
		v.resolveSpeciesStage(b, upload)
		return b.finalize(len(upload.Rows), StageRejected), nil
	}
	state = StageCoordinatesResolved

	// Stage: measurement type, once over the whole column.
	diameters, ok := v.resolveMeasurements(b, upload)
	if !ok {
		return b.finalize(len(upload.Rows), StageRejected), nil
	}
	state = StageMeasurementsResolved

	// Stage: per-row species resolution.
	matches := v.resolveSpeciesStage(b, upload)
	state = StageSpeciesResolved

	// Stage: boundary containment plus correction preview.
	correctionsPending := false
	var inBoundary map[int]bool
	if v.boundary != nil {
		inBoundary, correctionsPending = v.checkBoundary(b, upload, frame)
	}
	state = StageBoundaryChecked

	v.reportRowAdvisories(b, upload, diameters)

	rows := make([]ValidatedRow, len(upload.Rows))
	for i, raw := range upload.Rows {
		in := true
		if inBoundary != nil {
			in = inBoundary[raw.RowNumber]
		}
		rows[i] = ValidatedRow{
			RawRow:     raw,
			DiameterCM: diameters[i],
			Species:    matches[i],
			InBoundary: in,
		}
	}

	switch {
	case b.hasErrors():
		state = StageRejected
	case correctionsPending:
		state = StageCorrectionsPending
	default:
		state = StageReady
	}
	return b.finalize(len(upload.Rows), state), rows
}

// MinimalRejection builds the short-circuit report for uploads that could
// not be ingested at all (no coordinate columns, unreadable sheet). There
// is nothing meaningful to analyze, so the report carries the single
// ingestion failure instead of a cascade of confusing downstream errors.
func MinimalRejection(uploadID uuid.UUID, err error) *ValidationReport {
	b := newReportBuilder(uploadID)
	b.addError(StageReceived, CodeMissingColumn, err.Error())
	return b.finalize(0, StageRejected)
}

// resolveCoordinates runs CRS detection and reconciles any override.
// Returns the resolved frame and false when the pass cannot continue.
func (v *Validator) resolveCoordinates(b *reportBuilder, xs, ys []float64, overrideName string) (*ReferenceFrame, bool) {
	detection, err := DetectFrame(xs, ys, v.frames)
	if err != nil {
		b.addError(StageReceived, CodeUnresolvableCRS, err.Error())
		return nil, false
	}
	b.report.Detections.CRS = &detection

	if detection.AxisSwapped {
		b.addError(StageReceived, CodeAxisSwapped, fmt.Sprintf(
			"X range [%.4f, %.4f] and Y range [%.4f, %.4f] fit the geographic frame only when swapped; check column order",
			detection.XRange[0], detection.XRange[1], detection.YRange[0], detection.YRange[1]))
		return nil, false
	}

	var override *ReferenceFrame
	if overrideName != "" {
		override = FrameByName(v.frames, overrideName)
		if override == nil {
			b.addError(StageReceived, CodeUnresolvableCRS, fmt.Sprintf("unknown reference frame override %q", overrideName))
			return nil, false
		}
	}

	frame, conflict := ResolveFrame(detection, override)
	if conflict {
		b.addWarning(StageCoordinatesResolved, CodeCRSConflict, fmt.Sprintf(
			"supplied frame %q conflicts with detected frame %q (confidence %s); using supplied frame",
			override.Name, detection.Frame.Name, detection.Confidence))
	}
	if frame == nil {
		b.addError(StageReceived, CodeUnresolvableCRS, fmt.Sprintf(
			"no known frame contains X range [%.4f, %.4f] and Y range [%.4f, %.4f]; supply a frame explicitly",
			detection.XRange[0], detection.XRange[1], detection.YRange[0], detection.YRange[1]))
		return nil, false
	}
	if override == nil {
		b.addInfo(StageCoordinatesResolved, CodeFrameDetected, fmt.Sprintf(
			"detected reference frame %q (%s confidence, %s)", frame.Name, detection.Confidence, detection.Method))
	}
	return frame, true
}

// resolveMeasurements detects the measurement kind, converts girth columns
// to diameters on a copy, and checks physical plausibility.
func (v *Validator) resolveMeasurements(b *reportBuilder, upload Upload) ([]float64, bool) {
	values := make([]float64, len(upload.Rows))
	for i, r := range upload.Rows {
		values[i] = r.Measurement
	}

	detection, err := DetectMeasurementType(values, upload.MeasurementLabel, v.cfg.Measurement)
	if err != nil {
		b.addError(StageCoordinatesResolved, CodeMissingColumn, err.Error())
		return nil, false
	}
	b.report.Detections.Measurement = &detection

	if detection.RequiresConfirmation {
		b.addWarning(StageMeasurementsResolved, CodeMeasurementAmbiguous, fmt.Sprintf(
			"measurement statistics are ambiguous (mean %.1f, p75 %.1f); classified as %s with %s confidence",
			detection.Stats.Mean, detection.Stats.P75, detection.Kind, detection.Confidence))
	}

	diameters := values
	if detection.Kind == MeasurementGirth {
		converted, samples := ConvertGirthColumn(values, upload.Rows)
		diameters = converted
		b.report.Detections.Conversions = samples
		b.addInfo(StageMeasurementsResolved, CodeGirthConverted, fmt.Sprintf(
			"girth values converted to diameters (girth / pi) for %d rows", len(converted)))
	}

	for _, i := range CheckPlausibleDiameters(diameters, v.cfg.Measurement) {
		b.addRowError(StageMeasurementsResolved, CodeImplausibleValue, upload.Rows[i].RowNumber, fmt.Sprintf(
			"diameter %.1f cm is outside plausible bounds [%.1f, %.1f]",
			diameters[i], v.cfg.Measurement.MinPlausibleDiameter, v.cfg.Measurement.MaxPlausibleDiameter))
	}
	return diameters, true
}

// resolveSpeciesStage resolves every row's species token across a bounded
// worker pool. Rows are independent, so completion order is irrelevant;
// results land by index and report entries are emitted in row order after
// the pool drains.
func (v *Validator) resolveSpeciesStage(b *reportBuilder, upload Upload) []SpeciesMatch {
	matches := make([]SpeciesMatch, len(upload.Rows))

	workers := speciesWorkers
	if len(upload.Rows) < workers {
		workers = len(upload.Rows)
	}

	var wg sync.WaitGroup
	indexes := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				matches[i] = v.species.Resolve(upload.Rows[i].SpeciesToken, upload.Zone)
			}
		}()
	}
	for i := range upload.Rows {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	for i, m := range matches {
		row := upload.Rows[i].RowNumber
		switch m.Method {
		case MatchNone:
			msg := fmt.Sprintf("species token %q: %s", upload.Rows[i].SpeciesToken, m.Reason)
			b.addRowError(StageSpeciesResolved, CodeSpeciesNoMatch, row, msg)
		case MatchFallback:
			b.addRowWarning(StageSpeciesResolved, CodeFallbackSpecies, row, m.Reason)
		default:
			if m.Confidence < v.cfg.Species.LowConfidenceWarning {
				b.addRowWarning(StageSpeciesResolved, CodeLowConfidenceSpecies, row, fmt.Sprintf(
					"species token %q matched %q via %s with confidence %.2f",
					upload.Rows[i].SpeciesToken, m.CanonicalName, m.Method, m.Confidence))
			}
		}
	}
	return matches
}

// checkBoundary runs containment over all rows and, when the failure rate
// is within tolerance, generates a correction preview. Returns per-row
// containment and whether corrections are pending acceptance.
func (v *Validator) checkBoundary(b *reportBuilder, upload Upload, frame *ReferenceFrame) (map[int]bool, bool) {
	points := make([]SurveyPoint, len(upload.Rows))
	for i, r := range upload.Rows {
		points[i] = SurveyPoint{RowNumber: r.RowNumber, X: r.X, Y: r.Y}
	}

	check := v.boundary.CheckPoints(points, v.cfg.Boundary.TolerancePct)
	b.report.Detections.Boundary = &check

	inBoundary := make(map[int]bool, len(points))
	for _, p := range points {
		inBoundary[p.RowNumber] = true
	}
	for _, p := range check.OutOfBoundaryPoints {
		inBoundary[p.RowNumber] = false
	}

	if !check.WithinTolerance {
		b.addError(StageBoundaryChecked, CodeBoundaryExceeded, fmt.Sprintf(
			"%d of %d points (%.1f%%) fall outside the boundary, beyond the %.1f%% tolerance; upload must be rejected, not corrected",
			check.OutOfBoundaryCount, check.TotalPoints, check.OutOfBoundaryPct, v.cfg.Boundary.TolerancePct))
		return inBoundary, false
	}

	if !check.NeedsCorrection {
		return inBoundary, false
	}

	// Small failure share: plausibly GPS noise. Generate a preview and
	// record it; a second set for the same upload is refused.
	corrections, _ := NewCorrector(v.boundary).Generate(check.OutOfBoundaryPoints)
	if err := v.ledger.Record(upload.ID, corrections); err != nil {
		b.addWarning(StageBoundaryChecked, CodeLargeCorrection, fmt.Sprintf(
			"correction preview not regenerated: %v", err))
		if existing, ok := v.ledger.Get(upload.ID); ok {
			corrections = existing
		}
	}
	b.report.Corrections = corrections

	for _, large := range LargeCorrections(corrections, v.cfg.Boundary.MaxSnapDistanceM) {
		b.addRowWarning(StageBoundaryChecked, CodeLargeCorrection, large.RowNumber, fmt.Sprintf(
			"correction moves point %.1f m, above the %.1f m ceiling; verify the source data",
			large.DistanceMovedM, v.cfg.Boundary.MaxSnapDistanceM))
	}
	return inBoundary, true
}

// reportRowAdvisories covers the remaining row-level findings: duplicate
// coordinates and heights recorded for seedlings.
func (v *Validator) reportRowAdvisories(b *reportBuilder, upload Upload, diameters []float64) {
	seen := make(map[[2]float64]int, len(upload.Rows))
	duplicateRows := make([]int, 0)
	for _, r := range upload.Rows {
		key := [2]float64{r.X, r.Y}
		if _, dup := seen[key]; dup {
			duplicateRows = append(duplicateRows, r.RowNumber)
		} else {
			seen[key] = r.RowNumber
		}
	}
	sort.Ints(duplicateRows)
	for _, row := range duplicateRows {
		b.addRowWarning(StageBoundaryChecked, CodeDuplicateCoordinates, row,
			"coordinates duplicate an earlier row; possible double entry")
	}

	for i, r := range upload.Rows {
		if diameters[i] < v.cfg.Retention.EligibleDiameterCM && r.Height != nil {
			b.addRowInfo(StageMeasurementsResolved, CodeSeedlingHeight, r.RowNumber, fmt.Sprintf(
				"height %.1f recorded for a seedling (diameter %.1f cm); height is ignored below %.1f cm",
				*r.Height, diameters[i], v.cfg.Retention.EligibleDiameterCM))
		}
	}
}
