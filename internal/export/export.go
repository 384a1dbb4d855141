// Package export persists completed run artifacts: CSV extracts of the
// event log and entity registries, a KPI JSON report, and an optional
// SQLite archive queryable after the fact.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fieldops/logistics-simulator/analysis"
	"github.com/fieldops/logistics-simulator/core"
)

// WriteCSVs writes events.csv, casualties.csv, breakdowns.csv and
// ammo_requests.csv into dir, creating it if needed.
func WriteCSVs(dir string, log *core.EventLog) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create output dir: %w", err)
	}
	if err := writeEventsCSV(filepath.Join(dir, "events.csv"), log); err != nil {
		return err
	}
	if err := writeCasualtiesCSV(filepath.Join(dir, "casualties.csv"), log); err != nil {
		return err
	}
	if err := writeBreakdownsCSV(filepath.Join(dir, "breakdowns.csv"), log); err != nil {
		return err
	}
	return writeAmmoRequestsCSV(filepath.Join(dir, "ammo_requests.csv"), log)
}

// WriteKPIs writes the KPI aggregate as indented JSON to kpis.json in dir.
func WriteKPIs(dir string, kpis analysis.AllKPIs) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: create output dir: %w", err)
	}
	data, err := json.MarshalIndent(kpis, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal kpis: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "kpis.json"), data, 0o644); err != nil {
		return fmt.Errorf("export: write kpis.json: %w", err)
	}
	return nil
}

func writeCSV(path string, header []string, rows func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("export: write %s: %w", filepath.Base(path), err)
	}
	if err := rows(w); err != nil {
		return fmt.Errorf("export: write %s: %w", filepath.Base(path), err)
	}
	w.Flush()
	return w.Error()
}

func writeEventsCSV(path string, log *core.EventLog) error {
	header := []string{"seq", "time_mins", "kind", "entity_id", "location", "details"}
	return writeCSV(path, header, func(w *csv.Writer) error {
		for _, ev := range log.Events() {
			details := ""
			if len(ev.Details) > 0 {
				data, err := json.Marshal(ev.Details)
				if err != nil {
					return err
				}
				details = string(data)
			}
			row := []string{
				strconv.Itoa(ev.Seq),
				fmtMins(ev.TimeMins),
				string(ev.Kind),
				ev.EntityID,
				ev.Location,
				details,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCasualtiesCSV(path string, log *core.EventLog) error {
	header := []string{
		"id", "priority", "origin_node", "mechanism", "time_generated",
		"time_collected", "time_delivered", "time_treatment_started",
		"time_treatment_completed", "collected_by", "delivered_to",
	}
	return writeCSV(path, header, func(w *csv.Writer) error {
		for _, c := range log.Casualties() {
			row := []string{
				c.ID,
				strconv.Itoa(int(c.Priority)),
				c.OriginNode,
				c.Mechanism,
				fmtMins(c.TimeGenerated),
				fmtOptMins(c.TimeCollected),
				fmtOptMins(c.TimeDelivered),
				fmtOptMins(c.TimeTreatmentStarted),
				fmtOptMins(c.TimeTreatmentCompleted),
				c.CollectedBy,
				c.DeliveredTo,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeBreakdownsCSV(path string, log *core.EventLog) error {
	header := []string{
		"id", "vehicle_id", "vehicle_class", "location", "priority",
		"time_occurred", "time_recovery_dispatched", "time_recovery_arrived",
		"time_hookup_completed", "time_arrived_workshop", "time_repair_started",
		"time_repair_completed", "recovered_by", "repaired_at",
	}
	return writeCSV(path, header, func(w *csv.Writer) error {
		for _, b := range log.Breakdowns() {
			row := []string{
				b.ID,
				b.VehicleID,
				string(b.VehicleClass),
				b.Location,
				strconv.Itoa(int(b.Priority)),
				fmtMins(b.TimeOccurred),
				fmtOptMins(b.TimeRecoveryDispatched),
				fmtOptMins(b.TimeRecoveryArrived),
				fmtOptMins(b.TimeHookupCompleted),
				fmtOptMins(b.TimeArrivedWorkshop),
				fmtOptMins(b.TimeRepairStarted),
				fmtOptMins(b.TimeRepairCompleted),
				b.RecoveredBy,
				b.RepairedAt,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeAmmoRequestsCSV(path string, log *core.EventLog) error {
	header := []string{
		"id", "location", "priority", "quantity_requested", "quantity_delivered",
		"time_requested", "time_dispatched", "time_loaded", "time_delivered",
		"fulfilled", "fulfilled_by", "loaded_from",
	}
	return writeCSV(path, header, func(w *csv.Writer) error {
		for _, a := range log.AmmoRequests() {
			row := []string{
				a.ID,
				a.Location,
				strconv.Itoa(int(a.Priority)),
				strconv.Itoa(a.QuantityRequested),
				strconv.Itoa(a.QuantityDelivered),
				fmtMins(a.TimeRequested),
				fmtOptMins(a.TimeDispatched),
				fmtOptMins(a.TimeLoaded),
				fmtOptMins(a.TimeDelivered),
				strconv.FormatBool(a.Fulfilled()),
				a.FulfilledBy,
				a.LoadedFrom,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func fmtMins(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fmtOptMins(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtMins(*v)
}
