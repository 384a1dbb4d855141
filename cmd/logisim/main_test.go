package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fieldops/logistics-simulator/internal/export"
	"github.com/fieldops/logistics-simulator/internal/logging"
	"github.com/fieldops/logistics-simulator/model"
)

func writeTestScenario(t *testing.T) string {
	t.Helper()
	slots := 1
	treatment := 20.0
	capacity := 2

	s := &model.Scenario{
		Name: "cli-smoke",
		Nodes: []model.Node{
			{ID: "cp1", Name: "Position", Type: model.NodeCombat},
			{ID: "med1", Name: "Aid station", Type: model.NodeMedicalRole1,
				Capacity:   model.NodeCapacity{TreatmentSlots: &slots},
				Properties: model.NodeProperties{TreatmentTimeMins: &treatment}},
		},
		Edges: []model.Edge{
			{FromNode: "cp1", ToNode: "med1", DistanceKm: 10},
		},
		VehicleTypes: []model.VehicleType{
			{ID: "amb", Name: "Ambulance", Role: model.RoleAmbulance, VehicleClass: model.ClassLight,
				CasualtyCapacity: &capacity,
				Speed:            model.SpeedProfile{UnladenKmh: 60, LadenKmh: 40},
				ServiceTimes:     model.ServiceTimes{LoadTimeMins: 5, UnloadTimeMins: 5}},
		},
		Vehicles: []model.Vehicle{
			{ID: "AMB1", TypeID: "amb", StartLocation: "med1"},
		},
		Demand: model.DemandConfiguration{
			Mode: model.DemandManual,
			ManualEvents: []model.ManualDemandEvent{
				{TimeMins: 15, Type: model.DemandCasualty, Location: "cp1", Quantity: 1, Priority: 2},
			},
		},
		Config: model.SimulationConfig{DurationHours: 2, RandomSeed: 7},
	}

	path := filepath.Join(t.TempDir(), "scenario.json")
	if err := model.SaveScenario(s, path); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestValidateCmd(t *testing.T) {
	path := writeTestScenario(t)

	if err := validateCmd([]string{"-scenario", path}, logging.Noop()); err != nil {
		t.Fatalf("validateCmd: %v", err)
	}
	if err := validateCmd(nil, logging.Noop()); err == nil {
		t.Fatal("validateCmd without a scenario should fail")
	}
}

func TestValidateCmdPositionalPath(t *testing.T) {
	path := writeTestScenario(t)

	if err := validateCmd([]string{path}, logging.Noop()); err != nil {
		t.Fatalf("validateCmd with positional path: %v", err)
	}
}

func TestRunCmdPositionalPath(t *testing.T) {
	path := writeTestScenario(t)
	outDir := filepath.Join(t.TempDir(), "out")

	err := runCmd([]string{path, "-output", outDir, "-quiet"}, logging.Noop())
	if err != nil {
		t.Fatalf("runCmd with positional path: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "kpis.json")); err != nil {
		t.Errorf("missing export kpis.json: %v", err)
	}
}

func TestRunCmdWritesExports(t *testing.T) {
	path := writeTestScenario(t)
	outDir := filepath.Join(t.TempDir(), "out")

	err := runCmd([]string{"-scenario", path, "-output", outDir, "-quiet"}, logging.Noop())
	if err != nil {
		t.Fatalf("runCmd: %v", err)
	}

	for _, name := range []string{"events.csv", "casualties.csv", "breakdowns.csv", "ammo_requests.csv", "kpis.json"} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("missing export %s: %v", name, err)
		}
	}
}

func TestRunCmdArchivesToSQLite(t *testing.T) {
	path := writeTestScenario(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	err := runCmd([]string{"-scenario", path, "-sqlite", dbPath, "-quiet"}, logging.Noop())
	if err != nil {
		t.Fatalf("runCmd: %v", err)
	}

	archive, err := export.OpenArchive(dbPath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer archive.Close()

	ids, err := archive.RunIDs()
	if err != nil {
		t.Fatalf("RunIDs: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("archive holds %d runs, want 1", len(ids))
	}
}

func TestRunCmdRequiresScenario(t *testing.T) {
	if err := runCmd([]string{"-quiet"}, logging.Noop()); err == nil {
		t.Fatal("runCmd without -scenario should fail")
	}
}

func TestSchemaCmd(t *testing.T) {
	if err := schemaCmd(); err != nil {
		t.Fatalf("schemaCmd: %v", err)
	}
}
