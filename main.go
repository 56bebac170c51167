package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/rakuri2026/forest-management-sub000/inventory"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile   = flag.String("config", "", "Path to configuration YAML (defaults used when empty)")
	inputFile    = flag.String("input", "", "Path to survey workbook (XLSX)")
	boundaryFile = flag.String("boundary", "", "Path to survey-unit boundary (GeoJSON)")
	catalogFile  = flag.String("catalog", "", "Path to species catalog YAML (built-in catalog when empty)")
	frameName    = flag.String("frame", "", "Explicit reference frame name (detected when empty)")
	zoneHint     = flag.String("zone", "", "Physiographic zone hint for species fallback: terai or hill")
	selectTrees  = flag.Bool("select-mother-trees", false, "Run grid-based retention selection after a clean validation pass")
	gridSpacing  = flag.Float64("grid-spacing", 0, "Retention grid spacing in meters (overrides config)")
	mqttMode     = flag.Bool("mqtt", false, "Publish the report summary over MQTT")
	outputFile   = flag.String("output", "", "Write the validation report JSON to this file instead of stdout")
)

func main() {
	flag.Parse()
	fmt.Fprintf(os.Stderr, "forest-inventory version: %s\n", Version)

	if *inputFile == "" {
		flag.Usage()
		log.Fatal("-input is required")
	}

	config := inventory.DefaultConfig()
	if *configFile != "" {
		loaded, err := inventory.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		config = loaded
	}

	catalog := inventory.DefaultCatalog()
	if *catalogFile != "" {
		loaded, err := inventory.LoadCatalog(*catalogFile)
		if err != nil {
			log.Fatalf("Error loading species catalog: %v", err)
		}
		catalog = loaded
	}

	zone, err := parseZone(*zoneHint)
	if err != nil {
		log.Fatalf("%v", err)
	}

	uploadID := uuid.New()

	dataset, err := inventory.ReadWorkbook(*inputFile)
	if err != nil {
		// Ingestion failures still produce a report so the caller sees a
		// uniform shape.
		writeReport(inventory.MinimalRejection(uploadID, err))
		os.Exit(1)
	}

	var boundary *inventory.Boundary
	if *boundaryFile != "" {
		boundary, err = loadBoundaryForRows(*boundaryFile, dataset, config)
		if err != nil {
			log.Fatalf("Error loading boundary: %v", err)
		}
	}

	validator := inventory.NewValidator(config, catalog, boundary, nil)
	report, rows := validator.Validate(inventory.Upload{
		ID:               uploadID,
		Rows:             dataset.Rows,
		MeasurementLabel: dataset.MeasurementLabel,
		FrameOverride:    *frameName,
		Zone:             zone,
	})

	if *selectTrees && report.Summary.ReadyForProcessing {
		spacing := config.Retention.GridSpacingM
		if *gridSpacing > 0 {
			spacing = *gridSpacing
		}
		result, err := inventory.SelectMotherTrees(
			inventory.RetentionTreesFromRows(rows), spacing, config.Retention.EligibleDiameterCM)
		if err != nil {
			log.Fatalf("Error selecting mother trees: %v", err)
		}
		inventory.ApplyDispositions(rows, result)
		printAssignments(result)
	}

	if *mqttMode {
		publishReport(config, report)
	}

	writeReport(report)
	if !report.Summary.ReadyForProcessing {
		os.Exit(1)
	}
}

func parseZone(s string) (inventory.Zone, error) {
	switch s {
	case "":
		return inventory.ZoneNone, nil
	case "terai":
		return inventory.ZoneTerai, nil
	case "hill":
		return inventory.ZoneHill, nil
	default:
		return inventory.ZoneNone, fmt.Errorf("unknown zone %q (expected terai or hill)", s)
	}
}

// loadBoundaryForRows loads the boundary GeoJSON, inferring its frame kind
// from the data so snap distances use the right metric.
func loadBoundaryForRows(path string, dataset *inventory.Dataset, config *inventory.Config) (*inventory.Boundary, error) {
	xs := make([]float64, len(dataset.Rows))
	ys := make([]float64, len(dataset.Rows))
	for i, r := range dataset.Rows {
		xs[i] = r.X
		ys[i] = r.Y
	}
	frames := append(inventory.DefaultFrames(), config.ExtraFrames...)
	kind := inventory.FrameGeographic
	if det, err := inventory.DetectFrame(xs, ys, frames); err == nil && det.Frame != nil {
		kind = det.Frame.Kind
	}
	return inventory.LoadBoundary(path, kind)
}

func publishReport(config *inventory.Config, report *inventory.ValidationReport) {
	client, err := inventory.ConnectMQTT(config.MQTT)
	if err != nil {
		log.Fatalf("Error connecting to MQTT: %v", err)
	}
	if client == nil {
		log.Println("MQTT publishing requested but no broker configured")
		return
	}
	defer client.Disconnect(250)

	publisher := inventory.NewReportPublisher(client, config.MQTT.PublishPrefix)
	if err := publisher.PublishReport(report); err != nil {
		log.Printf("Error publishing report: %v", err)
	}
}

func printAssignments(result inventory.RetentionResult) {
	fmt.Fprintf(os.Stderr, "Retention grid: %d x %d cells, %d occupied, %d mother trees\n",
		result.GridCols, result.GridRows, len(result.OccupiedCells), len(result.Assignments))
	for _, a := range result.Assignments {
		fmt.Fprintf(os.Stderr, "  cell %d -> tree %d\n", a.CellID, a.TreeID)
	}
}

func writeReport(report *inventory.ValidationReport) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("Error marshaling report: %v", err)
	}
	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, data, 0644); err != nil {
			log.Fatalf("Error writing report: %v", err)
		}
		return
	}
	fmt.Println(string(data))
}
