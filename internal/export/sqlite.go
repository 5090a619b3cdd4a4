package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/basekick-labs/mppread/internal/pipeline"
	"github.com/basekick-labs/mppread/internal/storage"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	bundle TEXT,
	version TEXT NOT NULL,
	started_at TIMESTAMP,
	entities INTEGER NOT NULL,
	report TEXT
);
CREATE TABLE IF NOT EXISTS entities (
	run_id TEXT NOT NULL,
	class TEXT NOT NULL,
	unique_id INTEGER NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (run_id, class, unique_id)
);
CREATE TABLE IF NOT EXISTS fields (
	run_id TEXT NOT NULL,
	class TEXT NOT NULL,
	unique_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	text_value TEXT,
	num_value REAL,
	PRIMARY KEY (run_id, class, unique_id, name)
);
CREATE TABLE IF NOT EXISTS timephased (
	run_id TEXT NOT NULL,
	assignment_unique_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	seq INTEGER NOT NULL,
	start TIMESTAMP NOT NULL,
	finish TIMESTAMP NOT NULL,
	total REAL NOT NULL,
	units TEXT,
	per_day REAL,
	modified INTEGER NOT NULL,
	PRIMARY KEY (run_id, assignment_unique_id, kind, seq)
);
CREATE INDEX IF NOT EXISTS idx_fields_name ON fields(class, name);
`

// sqliteSink writes base.db. Each run is appended under its run ID, so one
// database can collect many bundles.
type sqliteSink struct{}

func (sqliteSink) write(ctx context.Context, e *Exporter, result *pipeline.Result, base string) ([]Output, error) {
	key := base + ".db"

	// Local backends get the database in place; object stores receive a
	// copy built in a temporary file.
	dbPath := storage.LocalPath(e.backend, key)
	upload := dbPath == ""
	if upload {
		tmp, err := os.CreateTemp("", "mppread-*.db")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp database: %w", err)
		}
		dbPath = tmp.Name()
		tmp.Close()
		defer os.Remove(dbPath)

		// Append to an existing remote database rather than replace it
		if err := download(ctx, e.backend, key, dbPath); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	if err := writeSQLite(ctx, dbPath, result); err != nil {
		return nil, err
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, err
	}
	if upload {
		f, err := os.Open(dbPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := e.backend.WriteReader(ctx, key, f, info.Size()); err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", key, err)
		}
	}
	return []Output{{Key: key, URI: e.backend.URI(key), Format: FormatSQLite, Bytes: info.Size()}}, nil
}

func download(ctx context.Context, backend storage.Backend, key, dbPath string) error {
	exists, err := backend.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", key, err)
	}
	if !exists {
		return nil
	}
	f, err := os.OpenFile(dbPath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := backend.ReadTo(ctx, key, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	return f.Close()
}

func writeSQLite(ctx context.Context, dbPath string, result *pipeline.Result) error {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=DELETE&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open export database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create export tables: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := insertResult(ctx, tx, result); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertResult(ctx context.Context, tx *sql.Tx, result *pipeline.Result) error {
	report := result.Report
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, bundle, version, started_at, entities, report) VALUES (?, ?, ?, ?, ?, ?)`,
		report.RunID, result.Name, report.Version, report.StartedAt, report.Entities(), string(reportJSON),
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	entityStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO entities (run_id, class, unique_id, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer entityStmt.Close()
	fieldStmt, err := tx.PrepareContext(ctx, `INSERT INTO fields (run_id, class, unique_id, name, kind, text_value, num_value) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer fieldStmt.Close()

	for _, c := range result.Classes {
		class := c.Class.String()
		for pos, ent := range c.Entities {
			// Duplicate unique IDs keep the first record
			res, err := entityStmt.ExecContext(ctx, report.RunID, class, ent.UniqueID, pos)
			if err != nil {
				return fmt.Errorf("failed to insert %s %d: %w", class, ent.UniqueID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}
			for name, v := range ent.Values {
				var num sql.NullFloat64
				if f, ok := asFloat(v); ok {
					num = sql.NullFloat64{Float64: f, Valid: true}
				}
				if _, err := fieldStmt.ExecContext(ctx, report.RunID, class, ent.UniqueID, name, kindOf(v).String(), stringValue(v), num); err != nil {
					return fmt.Errorf("failed to insert field %s of %s %d: %w", name, class, ent.UniqueID, err)
				}
			}
		}
	}

	rows := timephasedRows(result)
	if len(rows) == 0 {
		return nil
	}
	spanStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO timephased (run_id, assignment_unique_id, kind, seq, start, finish, total, units, per_day, modified) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer spanStmt.Close()
	for _, r := range rows {
		var units sql.NullString
		var perDay sql.NullFloat64
		total := r.cost
		if !r.isCost {
			total = r.span.TotalAmount.Value
			units = sql.NullString{String: r.span.TotalAmount.Units.String(), Valid: true}
			perDay = sql.NullFloat64{Float64: r.span.AmountPerDay.Value, Valid: true}
		}
		if _, err := spanStmt.ExecContext(ctx, report.RunID, r.assignment, r.kind, r.seq, r.span.Start, r.span.Finish, total, units, perDay, r.span.Modified); err != nil {
			return fmt.Errorf("failed to insert timephased span: %w", err)
		}
	}
	return nil
}
