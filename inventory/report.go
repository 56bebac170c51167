package inventory

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Entry codes. Stable identifiers for report consumers; messages are for
// humans, codes are for machines.
const (
	CodeMissingColumn        = "missing_required_column"
	CodeUnresolvableCRS      = "unresolvable_crs"
	CodeAxisSwapped          = "axis_swap_detected"
	CodeBoundaryExceeded     = "boundary_failure_beyond_tolerance"
	CodeImplausibleValue     = "measurement_outside_plausible_bounds"
	CodeSpeciesNoMatch       = "species_no_match"
	CodeEmptyUpload          = "empty_upload"
	CodeCRSConflict          = "crs_override_conflict"
	CodeLowConfidenceSpecies = "low_confidence_species_match"
	CodeFallbackSpecies      = "fallback_species_used"
	CodeLargeCorrection      = "large_boundary_correction"
	CodeDuplicateCoordinates = "duplicate_coordinates"
	CodeFrameDetected        = "projection_zone_detected"
	CodeGirthConverted       = "girth_to_diameter_conversion"
	CodeSeedlingHeight       = "seedling_height_ignored"
	CodeMeasurementAmbiguous = "measurement_type_needs_confirmation"
)

// reportBuilder accumulates findings during one validation pass. Every
// stage adds entries instead of aborting, so the finished report shows
// everything wrong with the upload in a single pass.
type reportBuilder struct {
	report *ValidationReport
}

func newReportBuilder(uploadID uuid.UUID) *reportBuilder {
	return &reportBuilder{
		report: &ValidationReport{
			UploadID: uploadID,
			Errors:   []ReportEntry{},
			Warnings: []ReportEntry{},
			Info:     []ReportEntry{},
		},
	}
}

func (b *reportBuilder) add(severity Severity, stage Stage, code string, rowNumber *int, message string) {
	entry := ReportEntry{
		Stage:     stage,
		Severity:  severity,
		Code:      code,
		RowNumber: rowNumber,
		Message:   message,
	}
	switch severity {
	case SeverityError:
		b.report.Errors = append(b.report.Errors, entry)
	case SeverityWarning:
		b.report.Warnings = append(b.report.Warnings, entry)
	default:
		b.report.Info = append(b.report.Info, entry)
	}
}

func (b *reportBuilder) addError(stage Stage, code, message string) {
	b.add(SeverityError, stage, code, nil, message)
}

func (b *reportBuilder) addRowError(stage Stage, code string, row int, message string) {
	b.add(SeverityError, stage, code, &row, message)
}

func (b *reportBuilder) addWarning(stage Stage, code, message string) {
	b.add(SeverityWarning, stage, code, nil, message)
}

func (b *reportBuilder) addRowWarning(stage Stage, code string, row int, message string) {
	b.add(SeverityWarning, stage, code, &row, message)
}

func (b *reportBuilder) addInfo(stage Stage, code, message string) {
	b.add(SeverityInfo, stage, code, nil, message)
}

func (b *reportBuilder) addRowInfo(stage Stage, code string, row int, message string) {
	b.add(SeverityInfo, stage, code, &row, message)
}

func (b *reportBuilder) hasErrors() bool {
	return len(b.report.Errors) > 0
}

// finalize sorts every entry list, fills the summary, and stamps the
// report. Sorting by row number (upload-level entries first) makes the
// report independent of per-row completion order, so the same input always
// yields the same report modulo the timestamp.
func (b *reportBuilder) finalize(totalRows int, state Stage) *ValidationReport {
	sortEntries(b.report.Errors)
	sortEntries(b.report.Warnings)
	sortEntries(b.report.Info)
	sort.Slice(b.report.Corrections, func(i, j int) bool {
		return b.report.Corrections[i].RowNumber < b.report.Corrections[j].RowNumber
	})

	b.report.FinalState = state
	b.report.Summary = ReportSummary{
		TotalRows:          totalRows,
		ErrorCount:         len(b.report.Errors),
		WarningCount:       len(b.report.Warnings),
		InfoCount:          len(b.report.Info),
		CorrectionCount:    len(b.report.Corrections),
		ReadyForProcessing: len(b.report.Errors) == 0,
	}
	b.report.Timestamp = time.Now().UTC()
	return b.report
}

// sortEntries orders entries by row number, with upload-level entries
// (nil row) first in stage order, then code for full determinism.
func sortEntries(entries []ReportEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.RowNumber == nil && b.RowNumber == nil:
			if a.Stage != b.Stage {
				return stageOrder(a.Stage) < stageOrder(b.Stage)
			}
			return a.Code < b.Code
		case a.RowNumber == nil:
			return true
		case b.RowNumber == nil:
			return false
		case *a.RowNumber != *b.RowNumber:
			return *a.RowNumber < *b.RowNumber
		default:
			return a.Code < b.Code
		}
	})
}
