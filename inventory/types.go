package inventory

import (
	"time"

	"github.com/google/uuid"
)

// RawRow is one surveyed tree as it arrived from the spreadsheet.
// Measurement holds the raw girth-or-diameter value; whether it is a girth
// or a diameter is decided once per upload by the measurement detector.
type RawRow struct {
	RowNumber    int      `json:"rowNumber"`
	SpeciesToken string   `json:"speciesToken"`
	Measurement  float64  `json:"measurement"`
	Height       *float64 `json:"height,omitempty"`
	ClassCode    string   `json:"classCode,omitempty"`
	X            float64  `json:"x"`
	Y            float64  `json:"y"`
}

// Position is a coordinate pair in whatever frame the upload resolved to.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Confidence level for structural decisions (CRS, measurement type).
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceNone   Confidence = "none"
)

// FrameKind distinguishes degree-based from meter-based reference frames.
type FrameKind string

const (
	FrameGeographic FrameKind = "geographic"
	FrameProjected  FrameKind = "projected"
)

// ReferenceFrame is a known coordinate reference frame with an axis-aligned
// bounding box in its native units. Detection tests candidate frames in
// order, so the frame list is ordered by likelihood.
type ReferenceFrame struct {
	Name string    `yaml:"name" json:"name"`
	EPSG string    `yaml:"epsg,omitempty" json:"epsg,omitempty"`
	Kind FrameKind `yaml:"kind" json:"kind"`
	MinX float64   `yaml:"minX" json:"minX"`
	MaxX float64   `yaml:"maxX" json:"maxX"`
	MinY float64   `yaml:"minY" json:"minY"`
	MaxY float64   `yaml:"maxY" json:"maxY"`
}

// CRSDetection is the outcome of classifying an upload's raw X/Y columns.
// Computed once per upload and immutable afterward. AxisSwapped is a hard
// failure: the data fits the geographic frame only with X and Y exchanged,
// and guessing would corrupt every downstream distance computation.
type CRSDetection struct {
	Frame       *ReferenceFrame `json:"frame,omitempty"`
	Confidence  Confidence      `json:"confidence"`
	Method      string          `json:"method"`
	XRange      [2]float64      `json:"xRange"`
	YRange      [2]float64      `json:"yRange"`
	AxisSwapped bool            `json:"axisSwapped"`
}

// MeasurementKind is what a girth/diameter column actually holds.
type MeasurementKind string

const (
	MeasurementDiameter MeasurementKind = "diameter"
	MeasurementGirth    MeasurementKind = "girth"
)

// MeasurementStats are the column statistics backing a statistical decision.
type MeasurementStats struct {
	Mean float64 `json:"mean"`
	P75  float64 `json:"p75"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// MeasurementDetection is the once-per-upload decision about the
// measurement column. RequiresConfirmation is set when the statistics fall
// in the ambiguous band and a human should confirm the classification.
type MeasurementDetection struct {
	Kind                 MeasurementKind  `json:"kind"`
	Confidence           Confidence       `json:"confidence"`
	Method               string           `json:"method"`
	Stats                MeasurementStats `json:"stats"`
	RequiresConfirmation bool             `json:"requiresConfirmation"`
}

// ConversionSample records a before/after pair from girth-to-diameter
// conversion for the audit trail.
type ConversionSample struct {
	RowNumber int     `json:"rowNumber"`
	Girth     float64 `json:"girth"`
	Diameter  float64 `json:"diameter"`
}

// MatchMethod tags which resolution step produced a species match.
// Auditing must never conflate an exact match with a fuzzy one.
type MatchMethod string

const (
	MatchByCode         MatchMethod = "code"
	MatchByAbbreviation MatchMethod = "abbreviation"
	MatchExact          MatchMethod = "exact"
	MatchByAlias        MatchMethod = "alias"
	MatchFuzzy          MatchMethod = "fuzzy"
	MatchFallback       MatchMethod = "fallback"
	MatchNone           MatchMethod = "none"
)

// RankedSuggestion is a near-miss candidate returned on no-match.
type RankedSuggestion struct {
	CanonicalName string  `json:"canonicalName"`
	Similarity    float64 `json:"similarity"`
}

// SpeciesMatch is the per-row species resolution result. CanonicalName is
// always a name present in the catalog; Confidence is in [0,1].
type SpeciesMatch struct {
	CanonicalName string             `json:"canonicalName,omitempty"`
	SpeciesCode   int                `json:"speciesCode,omitempty"`
	Method        MatchMethod        `json:"method"`
	Confidence    float64            `json:"confidence"`
	MatchedField  string             `json:"matchedField,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	Suggestions   []RankedSuggestion `json:"suggestions,omitempty"`
}

// SurveyPoint is one georeferenced row position fed to the boundary check.
type SurveyPoint struct {
	RowNumber int     `json:"rowNumber"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

// BoundaryCheck is the per-upload containment result. NeedsCorrection is
// true only when some points are out of boundary but the failure rate is
// small enough to plausibly be GPS noise rather than a systemic error.
type BoundaryCheck struct {
	TotalPoints         int           `json:"totalPoints"`
	OutOfBoundaryCount  int           `json:"outOfBoundaryCount"`
	OutOfBoundaryPct    float64       `json:"outOfBoundaryPercentage"`
	WithinTolerance     bool          `json:"withinTolerance"`
	NeedsCorrection     bool          `json:"needsCorrection"`
	OutOfBoundaryPoints []SurveyPoint `json:"outOfBoundaryPoints,omitempty"`
}

// Correction is one snapped point. Append-only once recorded; a second
// correction set for the same upload is refused.
type Correction struct {
	RowNumber      int      `json:"rowNumber"`
	Original       Position `json:"original"`
	Corrected      Position `json:"corrected"`
	DistanceMovedM float64  `json:"distanceMovedM"`
}

// CorrectionStats aggregates distances over one correction set.
type CorrectionStats struct {
	Count int     `json:"count"`
	MinM  float64 `json:"minM"`
	MaxM  float64 `json:"maxM"`
	AvgM  float64 `json:"avgM"`
}

// Severity of a report entry.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ReportEntry is one finding. RowNumber is nil for upload-level findings.
type ReportEntry struct {
	Stage     Stage    `json:"stage"`
	Severity  Severity `json:"severity"`
	Code      string   `json:"code"`
	RowNumber *int     `json:"rowNumber,omitempty"`
	Message   string   `json:"message"`
}

// Detections groups the once-per-upload structural decisions.
type Detections struct {
	CRS         *CRSDetection         `json:"crs,omitempty"`
	Measurement *MeasurementDetection `json:"measurement,omitempty"`
	Conversions []ConversionSample    `json:"conversions,omitempty"`
	Boundary    *BoundaryCheck        `json:"boundary,omitempty"`
}

// ReportSummary is the roll-up at the top of a validation report.
type ReportSummary struct {
	TotalRows          int  `json:"totalRows"`
	ErrorCount         int  `json:"errorCount"`
	WarningCount       int  `json:"warningCount"`
	InfoCount          int  `json:"infoCount"`
	CorrectionCount    int  `json:"correctionCount"`
	ReadyForProcessing bool `json:"readyForProcessing"`
}

// ValidationReport aggregates everything found in one validation pass.
// ReadyForProcessing derives strictly from the error list being empty.
// The same input validated twice produces an identical report modulo
// Timestamp.
type ValidationReport struct {
	UploadID    uuid.UUID     `json:"uploadId"`
	Summary     ReportSummary `json:"summary"`
	FinalState  Stage         `json:"finalState"`
	Detections  Detections    `json:"detections"`
	Errors      []ReportEntry `json:"errors"`
	Warnings    []ReportEntry `json:"warnings"`
	Info        []ReportEntry `json:"info"`
	Corrections []Correction  `json:"corrections,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// TreeDisposition is the terminal classification of a tree after
// validation and retention selection.
type TreeDisposition string

const (
	DispositionRetained         TreeDisposition = "retained"
	DispositionRemovalCandidate TreeDisposition = "removal_candidate"
	DispositionSeedling         TreeDisposition = "seedling"
)

// ValidatedRow is a row that survived validation, with resolved semantics.
// DiameterCM is always a diameter regardless of what the upload held.
type ValidatedRow struct {
	RawRow
	DiameterCM  float64         `json:"diameterCM"`
	Species     SpeciesMatch    `json:"species"`
	InBoundary  bool            `json:"inBoundary"`
	Disposition TreeDisposition `json:"disposition,omitempty"`
}
