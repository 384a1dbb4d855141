package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/fieldops/logistics-simulator/analysis"
	"github.com/fieldops/logistics-simulator/core"
	"github.com/fieldops/logistics-simulator/model"
)

func f64(v float64) *float64 { return &v }

func sampleLog() *core.EventLog {
	log := core.NewEventLog()

	c := log.NewCasualty(core.Casualty{
		Priority: model.PriorityUrgent, OriginNode: "cp1", TimeGenerated: 10, Mechanism: "manual",
	})
	c.TimeCollected = f64(25)
	c.TimeDelivered = f64(40)
	c.CollectedBy = "AMB1"
	c.DeliveredTo = "med1"

	b := log.NewBreakdown(core.Breakdown{
		VehicleID: "TRK1", VehicleClass: model.ClassMedium, Location: "cp1",
		TimeOccurred: 30, Priority: model.PriorityPriority,
	})
	b.TimeRecoveryArrived = f64(50)

	a := log.NewAmmoRequest(core.AmmoRequest{
		Location: "cp1", QuantityRequested: 40, TimeRequested: 5, Priority: model.PriorityRoutine,
	})
	a.QuantityDelivered = 40
	a.TimeDelivered = f64(60)

	log.Record(0, core.EventSimulationStarted, "", "", nil)
	log.Record(10, core.EventCasualtyGenerated, c.ID, "cp1", map[string]any{"priority": 1})
	log.Record(60, core.EventSimulationEnded, "", "", nil)

	return log
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return rows
}

func TestWriteCSVs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	log := sampleLog()

	if err := WriteCSVs(dir, log); err != nil {
		t.Fatalf("WriteCSVs: %v", err)
	}

	events := readCSV(t, filepath.Join(dir, "events.csv"))
	if len(events) != 4 { // header + 3 events
		t.Fatalf("events.csv has %d rows, want 4", len(events))
	}
	if events[0][0] != "seq" || events[0][2] != "kind" {
		t.Fatalf("events.csv header = %v", events[0])
	}
	if events[2][2] != "casualty_generated" || events[2][4] != "cp1" {
		t.Fatalf("events.csv row = %v", events[2])
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(events[2][5]), &details); err != nil {
		t.Fatalf("details column is not JSON: %v", err)
	}

	casualties := readCSV(t, filepath.Join(dir, "casualties.csv"))
	if len(casualties) != 2 {
		t.Fatalf("casualties.csv has %d rows, want 2", len(casualties))
	}
	row := casualties[1]
	if row[0] != "CAS_0001" || row[1] != "1" || row[5] != "25" || row[9] != "AMB1" {
		t.Fatalf("casualties.csv row = %v", row)
	}
	if row[8] != "" {
		t.Fatalf("unset timestamp should render empty, got %q", row[8])
	}

	breakdowns := readCSV(t, filepath.Join(dir, "breakdowns.csv"))
	if len(breakdowns) != 2 || breakdowns[1][0] != "BD_0001" || breakdowns[1][2] != "medium" {
		t.Fatalf("breakdowns.csv = %v", breakdowns)
	}

	ammo := readCSV(t, filepath.Join(dir, "ammo_requests.csv"))
	if len(ammo) != 2 || ammo[1][0] != "AMMO_0001" || ammo[1][9] != "true" {
		t.Fatalf("ammo_requests.csv = %v", ammo)
	}
}

func TestWriteKPIs(t *testing.T) {
	dir := t.TempDir()
	kpis := analysis.ComputeAllKPIs(sampleLog())

	if err := WriteKPIs(dir, kpis); err != nil {
		t.Fatalf("WriteKPIs: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "kpis.json"))
	if err != nil {
		t.Fatalf("read kpis.json: %v", err)
	}
	var decoded analysis.AllKPIs
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("kpis.json is not valid JSON: %v", err)
	}
	if decoded.Medevac.TotalCasualties != 1 || decoded.Resupply.RequestsFulfilled != 1 {
		t.Fatalf("round-tripped KPIs mismatch: %+v", decoded)
	}
}
