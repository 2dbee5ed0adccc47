// Package scandb persists published scan and cloud records to SQLite
// for offline inspection. It records per-layer summaries rather than
// full sample arrays, except for combined clouds which are stored with
// their point data.
package scandb

import (
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/layerscan/internal/scan"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Recorder is a Sink writing records to a SQLite database. Every
// Recorder instance tags its rows with a fresh session identifier.
type Recorder struct {
	db        *sql.DB
	sessionID string
}

// NewRecorder opens (creating if needed) the database at path and runs
// pending migrations.
func NewRecorder(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r := &Recorder{db: db, sessionID: uuid.NewString()}
	if err := r.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// SessionID returns the identifier tagged onto this recorder's rows.
func (r *Recorder) SessionID() string { return r.sessionID }

func (r *Recorder) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(r.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func (r *Recorder) insertScanSummary(channel string, layer scan.LayerID, stampNs int64, samples, echoes int) error {
	_, err := r.db.Exec(
		`INSERT INTO scan_records (session_id, channel, layer, stamp_ns, samples, echoes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.sessionID, channel, int64(layer), stampNs, samples, echoes,
	)
	return err
}

func (r *Recorder) PublishScan(channel string, rec *scan.ScanRecord) error {
	return r.insertScanSummary(channel, rec.Layer, rec.Stamp.UnixNano(), len(rec.Ranges), 1)
}

func (r *Recorder) PublishMultiEcho(channel string, rec *scan.MultiEchoRecord) error {
	samples := 0
	if len(rec.Ranges) > 0 {
		samples = len(rec.Ranges[0])
	}
	return r.insertScanSummary(channel, rec.Layer, rec.Stamp.UnixNano(), samples, len(rec.Ranges))
}

func (r *Recorder) PublishCloud(channel string, rec *scan.CloudRecord) error {
	_, err := r.db.Exec(
		`INSERT INTO cloud_records (cloud_id, session_id, stamp_ns, height, width, points)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.CloudID, r.sessionID, rec.Stamp.UnixNano(), rec.Height, rec.Width, pointsToBlob(rec.Points),
	)
	return err
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// CloudCount returns the number of stored clouds for this recorder's
// session.
func (r *Recorder) CloudCount() (int64, error) {
	var n int64
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM cloud_records WHERE session_id = ?`, r.sessionID,
	).Scan(&n)
	return n, err
}

// pointsToBlob packs float32 samples as little-endian bytes.
func pointsToBlob(points []float32) []byte {
	buf := make([]byte, 4*len(points))
	for i, p := range points {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(p))
	}
	return buf
}

// blobToPoints unpacks little-endian float32 samples.
func blobToPoints(blob []byte) []float32 {
	points := make([]float32, len(blob)/4)
	for i := range points {
		points[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return points
}
