package export

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/fieldops/logistics-simulator/analysis"
	"github.com/fieldops/logistics-simulator/core"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	scenario    TEXT NOT NULL,
	state       TEXT NOT NULL,
	clock_mins  REAL NOT NULL,
	created_at  TEXT NOT NULL DEFAULT (datetime('now')),
	kpis_json   TEXT
);

CREATE TABLE IF NOT EXISTS events (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	seq          INTEGER NOT NULL,
	time_mins    REAL NOT NULL,
	kind         TEXT NOT NULL,
	entity_id    TEXT,
	location     TEXT,
	details_json TEXT,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS casualties (
	run_id                   TEXT NOT NULL REFERENCES runs(id),
	id                       TEXT NOT NULL,
	priority                 INTEGER NOT NULL,
	origin_node              TEXT NOT NULL,
	mechanism                TEXT,
	time_generated           REAL NOT NULL,
	time_collected           REAL,
	time_delivered           REAL,
	time_treatment_started   REAL,
	time_treatment_completed REAL,
	collected_by             TEXT,
	delivered_to             TEXT,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS breakdowns (
	run_id                   TEXT NOT NULL REFERENCES runs(id),
	id                       TEXT NOT NULL,
	vehicle_id               TEXT NOT NULL,
	vehicle_class            TEXT NOT NULL,
	location                 TEXT NOT NULL,
	priority                 INTEGER NOT NULL,
	time_occurred            REAL NOT NULL,
	time_recovery_dispatched REAL,
	time_recovery_arrived    REAL,
	time_hookup_completed    REAL,
	time_arrived_workshop    REAL,
	time_repair_started      REAL,
	time_repair_completed    REAL,
	recovered_by             TEXT,
	repaired_at              TEXT,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS ammo_requests (
	run_id             TEXT NOT NULL REFERENCES runs(id),
	id                 TEXT NOT NULL,
	location           TEXT NOT NULL,
	priority           INTEGER NOT NULL,
	quantity_requested INTEGER NOT NULL,
	quantity_delivered INTEGER NOT NULL,
	time_requested     REAL NOT NULL,
	time_dispatched    REAL,
	time_loaded        REAL,
	time_delivered     REAL,
	fulfilled_by       TEXT,
	loaded_from        TEXT,
	PRIMARY KEY (run_id, id)
);
`

// Archive is a SQLite store of completed runs. Multiple runs accumulate in
// one file, keyed by run ID.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (or creates) a run archive at path and migrates the
// schema.
func OpenArchive(path string) (*Archive, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("export: open archive: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("export: migrate archive: %w", err)
	}
	return &Archive{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Archive) Close() error { return a.db.Close() }

// SaveRun stores a completed run: header row, full event log, and the
// three entity registries, all inside one transaction.
func (a *Archive) SaveRun(runID, scenario, state string, clockMins float64, log *core.EventLog, kpis analysis.AllKPIs) error {
	kpisJSON, err := json.Marshal(kpis)
	if err != nil {
		return fmt.Errorf("export: marshal kpis: %w", err)
	}

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("export: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO runs (id, scenario, state, clock_mins, kpis_json) VALUES (?, ?, ?, ?, ?)`,
		runID, scenario, state, clockMins, string(kpisJSON),
	); err != nil {
		return fmt.Errorf("export: insert run: %w", err)
	}

	if err := a.insertEvents(tx, runID, log); err != nil {
		return err
	}
	if err := a.insertCasualties(tx, runID, log); err != nil {
		return err
	}
	if err := a.insertBreakdowns(tx, runID, log); err != nil {
		return err
	}
	if err := a.insertAmmoRequests(tx, runID, log); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("export: commit: %w", err)
	}
	return nil
}

// RunIDs lists stored runs, oldest first.
func (a *Archive) RunIDs() ([]string, error) {
	rows, err := a.db.Query(`SELECT id FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("export: list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("export: scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (a *Archive) insertEvents(tx *sql.Tx, runID string, log *core.EventLog) error {
	stmt, err := tx.Prepare(
		`INSERT INTO events (run_id, seq, time_mins, kind, entity_id, location, details_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("export: prepare events: %w", err)
	}
	defer stmt.Close()

	for _, ev := range log.Events() {
		var details any
		if len(ev.Details) > 0 {
			data, err := json.Marshal(ev.Details)
			if err != nil {
				return fmt.Errorf("export: marshal event details: %w", err)
			}
			details = string(data)
		}
		if _, err := stmt.Exec(runID, ev.Seq, ev.TimeMins, string(ev.Kind), ev.EntityID, ev.Location, details); err != nil {
			return fmt.Errorf("export: insert event %d: %w", ev.Seq, err)
		}
	}
	return nil
}

func (a *Archive) insertCasualties(tx *sql.Tx, runID string, log *core.EventLog) error {
	stmt, err := tx.Prepare(
		`INSERT INTO casualties (run_id, id, priority, origin_node, mechanism, time_generated,
		 time_collected, time_delivered, time_treatment_started, time_treatment_completed,
		 collected_by, delivered_to)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("export: prepare casualties: %w", err)
	}
	defer stmt.Close()

	for _, c := range log.Casualties() {
		if _, err := stmt.Exec(runID, c.ID, int(c.Priority), c.OriginNode, c.Mechanism,
			c.TimeGenerated, c.TimeCollected, c.TimeDelivered, c.TimeTreatmentStarted,
			c.TimeTreatmentCompleted, c.CollectedBy, c.DeliveredTo); err != nil {
			return fmt.Errorf("export: insert casualty %s: %w", c.ID, err)
		}
	}
	return nil
}

func (a *Archive) insertBreakdowns(tx *sql.Tx, runID string, log *core.EventLog) error {
	stmt, err := tx.Prepare(
		`INSERT INTO breakdowns (run_id, id, vehicle_id, vehicle_class, location, priority,
		 time_occurred, time_recovery_dispatched, time_recovery_arrived, time_hookup_completed,
		 time_arrived_workshop, time_repair_started, time_repair_completed, recovered_by, repaired_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("export: prepare breakdowns: %w", err)
	}
	defer stmt.Close()

	for _, b := range log.Breakdowns() {
		if _, err := stmt.Exec(runID, b.ID, b.VehicleID, string(b.VehicleClass), b.Location,
			int(b.Priority), b.TimeOccurred, b.TimeRecoveryDispatched, b.TimeRecoveryArrived,
			b.TimeHookupCompleted, b.TimeArrivedWorkshop, b.TimeRepairStarted,
			b.TimeRepairCompleted, b.RecoveredBy, b.RepairedAt); err != nil {
			return fmt.Errorf("export: insert breakdown %s: %w", b.ID, err)
		}
	}
	return nil
}

func (a *Archive) insertAmmoRequests(tx *sql.Tx, runID string, log *core.EventLog) error {
	stmt, err := tx.Prepare(
		`INSERT INTO ammo_requests (run_id, id, location, priority, quantity_requested,
		 quantity_delivered, time_requested, time_dispatched, time_loaded, time_delivered,
		 fulfilled_by, loaded_from)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("export: prepare ammo requests: %w", err)
	}
	defer stmt.Close()

	for _, req := range log.AmmoRequests() {
		if _, err := stmt.Exec(runID, req.ID, req.Location, int(req.Priority),
			req.QuantityRequested, req.QuantityDelivered, req.TimeRequested,
			req.TimeDispatched, req.TimeLoaded, req.TimeDelivered,
			req.FulfilledBy, req.LoadedFrom); err != nil {
			return fmt.Errorf("export: insert ammo request %s: %w", req.ID, err)
		}
	}
	return nil
}
