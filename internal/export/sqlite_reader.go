package export

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"time"

	"github.com/FatmaElik/risk-map/internal/datasource"
	"github.com/FatmaElik/risk-map/internal/pipeline"
	"github.com/FatmaElik/risk-map/internal/types"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// ErrYearNotArchived is returned when an archive holds no snapshot for a year.
var ErrYearNotArchived = eris.New("year not archived")

// SQLiteReader reads snapshots from an SQLite archive. It satisfies
// pipeline.SnapshotBuilder, so a session can serve an archive offline.
type SQLiteReader struct {
	db       *sql.DB
	path     string
	fallback types.BoundingBox
}

// OpenSQLiteReader opens an archive for reading.
func OpenSQLiteReader(path string) (*SQLiteReader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, eris.Wrap(err, "failed to open database")
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='snapshots'").Scan(&count)
	if err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "failed to verify schema")
	}
	if count == 0 {
		_ = db.Close()
		return nil, eris.Errorf("%s does not contain a snapshots table", path)
	}

	return &SQLiteReader{db: db, path: path, fallback: types.TurkeyBounds}, nil
}

// Metadata reads the archive metadata.
func (r *SQLiteReader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, eris.Wrap(err, "failed to query metadata")
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, eris.Wrap(err, "failed to scan metadata row")
		}
		values[name] = value
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, eris.Wrap(err, "error iterating metadata")
	}
	return metadataFromMap(values), nil
}

// Years lists the archived years in ascending order.
func (r *SQLiteReader) Years() ([]int, error) {
	rows, err := r.db.Query("SELECT year FROM snapshots ORDER BY year")
	if err != nil {
		return nil, eris.Wrap(err, "failed to query years")
	}
	defer rows.Close()

	years := []int{}
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, eris.Wrap(err, "failed to scan year")
		}
		years = append(years, y)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating years")
	}
	return years, nil
}

// Build reads the snapshot archived for year.
func (r *SQLiteReader) Build(ctx context.Context, year int) (*pipeline.Snapshot, error) {
	var (
		id, builtAt, stats             string
		rowsData, districts, provinces []byte
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT snapshot_id, built_at, stats, rows_data, districts, provinces FROM snapshots WHERE year = ?", year,
	).Scan(&id, &builtAt, &stats, &rowsData, &districts, &provinces)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrYearNotArchived, "year %d", year)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query snapshot %d", year)
	}

	snap := &pipeline.Snapshot{ID: id, Year: year, Fallback: r.fallback}
	if t, err := time.Parse(time.RFC3339Nano, builtAt); err == nil {
		snap.BuiltAt = t
	}
	if err := json.Unmarshal([]byte(stats), &snap.Stats); err != nil {
		return nil, eris.Wrapf(err, "failed to decode stats of %d", year)
	}

	raw, err := gzipDecompress(rowsData)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to decompress rows of %d", year)
	}
	snap.Rows = []types.Row{}
	if err := json.Unmarshal(raw, &snap.Rows); err != nil {
		return nil, eris.Wrapf(err, "failed to decode rows of %d", year)
	}
	if snap.Rows == nil {
		snap.Rows = []types.Row{}
	}

	if snap.Districts, err = decodeLayer(districts); err != nil {
		return nil, eris.Wrapf(err, "failed to decode districts of %d", year)
	}
	if snap.Provinces, err = decodeLayer(provinces); err != nil {
		return nil, eris.Wrapf(err, "failed to decode provinces of %d", year)
	}

	if snap.Features, err = r.features(ctx, year); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *SQLiteReader) features(ctx context.Context, year int) (*geojson.FeatureCollection, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT feature FROM features WHERE year = ? ORDER BY seq", year)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query features of %d", year)
	}
	defer rows.Close()

	fc := geojson.NewFeatureCollection()
	for rows.Next() {
		var compressed []byte
		if err := rows.Scan(&compressed); err != nil {
			return nil, eris.Wrap(err, "failed to scan feature")
		}
		data, err := gzipDecompress(compressed)
		if err != nil {
			return nil, eris.Wrap(err, "failed to decompress feature")
		}
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, eris.Wrap(err, "failed to decode feature")
		}
		fc.Append(f)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating features")
	}
	return fc, nil
}

// ClassCounts counts archived features per fixed-scale risk class for year.
// Features without a risk score are not counted.
func (r *SQLiteReader) ClassCounts(ctx context.Context, year int) (map[int]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT risk_class, COUNT(*) FROM features WHERE year = ? AND risk_class IS NOT NULL GROUP BY risk_class", year)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to count classes of %d", year)
	}
	defer rows.Close()

	out := map[int]int{}
	for rows.Next() {
		var class, n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, eris.Wrap(err, "failed to scan class count")
		}
		out[class] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "error iterating class counts")
	}
	return out, nil
}

// Close closes the database connection.
func (r *SQLiteReader) Close() error {
	if err := r.db.Close(); err != nil {
		return eris.Wrap(err, "failed to close database")
	}
	return nil
}

func decodeLayer(compressed []byte) (*geojson.FeatureCollection, error) {
	if len(compressed) == 0 {
		return geojson.NewFeatureCollection(), nil
	}
	data, err := gzipDecompress(compressed)
	if err != nil {
		return nil, err
	}
	return datasource.DecodeGeoJSON(data)
}

func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
