package export

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/FatmaElik/risk-map/internal/classify"
	"github.com/FatmaElik/risk-map/internal/datasource"
	"github.com/FatmaElik/risk-map/internal/join"
	"github.com/FatmaElik/risk-map/internal/pipeline"
	"github.com/FatmaElik/risk-map/internal/spatial"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	// DefaultBatchSize is the number of features to buffer before flushing to the database.
	DefaultBatchSize = 100
)

// FeatureEntry is one neighborhood feature of a snapshot.
type FeatureEntry struct {
	Year         int
	Seq          int
	ID           string
	City         string
	District     string
	Neighborhood string
	RiskScore    sql.NullFloat64
	RiskClass    sql.NullInt64
	Data         []byte // GeoJSON feature, gzip-compressed on flush
}

// SQLiteWriter writes snapshots to an SQLite archive.
type SQLiteWriter struct {
	db        *sql.DB
	path      string
	batch     []FeatureEntry
	metadata  Metadata
	years     map[int]struct{}
	bounds    types.BoundingBox
	hasBounds bool
	batchSize int
	mu        sync.Mutex
}

// NewSQLiteWriter creates an archive writer.
// The database is created if it doesn't exist, and the schema is initialized.
func NewSQLiteWriter(path string, metadata Metadata) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open database")
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "failed to set pragma %q", pragma)
		}
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "failed to create schema")
	}

	if err := insertMetadata(db, metadata); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "failed to insert metadata")
	}

	w := &SQLiteWriter{
		db:        db,
		path:      path,
		batch:     make([]FeatureEntry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
		metadata:  metadata,
		years:     make(map[int]struct{}),
	}
	for _, y := range metadata.Years {
		w.years[y] = struct{}{}
	}
	return w, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS snapshots (
			year INTEGER PRIMARY KEY,
			snapshot_id TEXT NOT NULL,
			built_at TEXT NOT NULL,
			stats TEXT,
			rows_data BLOB,
			districts BLOB,
			provinces BLOB
		);

		CREATE TABLE IF NOT EXISTS features (
			year INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			mah_id TEXT,
			city TEXT,
			district TEXT,
			neighborhood TEXT,
			risk_score REAL,
			risk_class INTEGER,
			feature BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS feature_index ON features (year, seq);
	`

	if _, err := db.Exec(schema); err != nil {
		return eris.Wrap(err, "failed to execute schema")
	}
	return nil
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	if _, err := db.Exec("DELETE FROM metadata"); err != nil {
		return eris.Wrap(err, "failed to clear metadata")
	}

	stmt, err := db.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return eris.Wrap(err, "failed to prepare metadata insert")
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return eris.Wrapf(err, "failed to insert metadata %q", key)
		}
	}
	return nil
}

// WriteSnapshot replaces the archived snapshot for snap.Year. The snapshot
// row is written immediately; features are buffered and flushed in batches.
func (w *SQLiteWriter) WriteSnapshot(snap *pipeline.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(); err != nil {
		return err
	}

	stats, err := json.Marshal(snap.Stats)
	if err != nil {
		return eris.Wrap(err, "failed to encode stats")
	}
	rows, err := json.Marshal(snap.Rows)
	if err != nil {
		return eris.Wrap(err, "failed to encode rows")
	}
	districts, err := datasource.EncodeGeoJSON(snap.Districts)
	if err != nil {
		return err
	}
	provinces, err := datasource.EncodeGeoJSON(snap.Provinces)
	if err != nil {
		return err
	}

	blobs := make([][]byte, 0, 3)
	for _, b := range [][]byte{rows, districts, provinces} {
		c, err := gzipCompress(b)
		if err != nil {
			return eris.Wrapf(err, "failed to compress snapshot %d", snap.Year)
		}
		blobs = append(blobs, c)
	}

	tx, err := w.db.Begin()
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.Exec("DELETE FROM features WHERE year = ?", snap.Year); err != nil {
		return eris.Wrapf(err, "failed to clear features for %d", snap.Year)
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO snapshots (year, snapshot_id, built_at, stats, rows_data, districts, provinces) VALUES (?, ?, ?, ?, ?, ?, ?)",
		snap.Year, snap.ID, snap.BuiltAt.UTC().Format(time.RFC3339Nano), string(stats), blobs[0], blobs[1], blobs[2],
	); err != nil {
		return eris.Wrapf(err, "failed to insert snapshot %d", snap.Year)
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "failed to commit transaction")
	}

	for i, f := range snap.Features.Features {
		data, err := f.MarshalJSON()
		if err != nil {
			return eris.Wrapf(err, "failed to encode feature %d of %d", i, snap.Year)
		}
		rec := join.NormalizeProperties(f.Properties)
		entry := FeatureEntry{
			Year:         snap.Year,
			Seq:          i,
			ID:           rec.ID,
			City:         rec.City,
			District:     rec.District,
			Neighborhood: rec.Neighborhood,
			Data:         data,
		}
		if score, ok := types.Number(f.Properties[types.MetricRiskScore]); ok {
			entry.RiskScore = sql.NullFloat64{Float64: score, Valid: true}
			entry.RiskClass = sql.NullInt64{Int64: int64(classify.RiskClass(score)), Valid: true}
		}
		w.batch = append(w.batch, entry)
		if len(w.batch) >= w.batchSize {
			if err := w.flushLocked(); err != nil {
				return err
			}
		}
	}

	w.years[snap.Year] = struct{}{}
	if b, ok := spatial.BoundsOf(snap.Features); ok {
		if w.hasBounds {
			b = w.bounds.Union(b)
		}
		w.bounds, w.hasBounds = b, true
	}
	return nil
}

// Flush writes any buffered features to the database.
func (w *SQLiteWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

// flushLocked writes buffered features to the database. Must be called with lock held.
func (w *SQLiteWriter) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO features
		(year, seq, mah_id, city, district, neighborhood, risk_score, risk_class, feature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, e := range w.batch {
		compressed, err := gzipCompress(e.Data)
		if err != nil {
			return eris.Wrapf(err, "failed to compress feature %d/%d", e.Year, e.Seq)
		}
		if _, err := stmt.Exec(e.Year, e.Seq, e.ID, e.City, e.District, e.Neighborhood, e.RiskScore, e.RiskClass, compressed); err != nil {
			return eris.Wrapf(err, "failed to insert feature %d/%d", e.Year, e.Seq)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "failed to commit transaction")
	}

	w.batch = w.batch[:0]
	return nil
}

// Close flushes remaining features, records the archived years and extent in
// the metadata, and closes the database.
func (w *SQLiteWriter) Close() error {
	if err := w.Flush(); err != nil {
		_ = w.db.Close()
		return err
	}

	w.mu.Lock()
	meta := w.metadata
	meta.Years = meta.Years[:0:0]
	for y := range w.years {
		meta.Years = append(meta.Years, y)
	}
	sort.Ints(meta.Years)
	if meta.Bounds == [4]float64{} && w.hasBounds {
		meta.Bounds = w.bounds.Array()
	}
	w.mu.Unlock()

	if err := insertMetadata(w.db, meta); err != nil {
		_ = w.db.Close()
		return err
	}

	if err := w.db.Close(); err != nil {
		return eris.Wrap(err, "failed to close database")
	}
	return nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		_ = gw.Close()
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
