//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	"helixsim/internal/model"

	_ "modernc.org/sqlite"
)

const defaultStoreKind = "sqlite"

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sqlx.DB
}

type recordRow struct {
	Kind          string `db:"kind"`
	ID            string `db:"id"`
	CreatedAtUTC  string `db:"created_at_utc"`
	SchemaVersion int    `db:"schema_version"`
	CodecVersion  int    `db:"codec_version"`
	Payload       []byte `db:"payload"`
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sqlx.Open("sqlite", s.path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) SaveMutationRun(ctx context.Context, run model.MutationRun) error {
	payload, err := EncodeMutationRun(run)
	if err != nil {
		return err
	}
	return s.put(ctx, KindMutationRun, run.ID, run.CreatedAtUTC, run.VersionedRecord, payload)
}

func (s *SQLiteStore) GetMutationRun(ctx context.Context, id string) (model.MutationRun, bool, error) {
	payload, ok, err := s.get(ctx, KindMutationRun, id)
	if err != nil || !ok {
		return model.MutationRun{}, false, err
	}
	run, err := DecodeMutationRun(payload)
	if err != nil {
		return model.MutationRun{}, false, fmt.Errorf("decode mutation run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) SaveGrowthRun(ctx context.Context, run model.GrowthRun) error {
	payload, err := EncodeGrowthRun(run)
	if err != nil {
		return err
	}
	return s.put(ctx, KindGrowthRun, run.ID, run.CreatedAtUTC, run.VersionedRecord, payload)
}

func (s *SQLiteStore) GetGrowthRun(ctx context.Context, id string) (model.GrowthRun, bool, error) {
	payload, ok, err := s.get(ctx, KindGrowthRun, id)
	if err != nil || !ok {
		return model.GrowthRun{}, false, err
	}
	run, err := DecodeGrowthRun(payload)
	if err != nil {
		return model.GrowthRun{}, false, fmt.Errorf("decode growth run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *SQLiteStore) SaveResistanceReport(ctx context.Context, report model.ResistanceReport) error {
	payload, err := EncodeResistanceReport(report)
	if err != nil {
		return err
	}
	return s.put(ctx, KindResistanceReport, report.ID, report.CreatedAtUTC, report.VersionedRecord, payload)
}

func (s *SQLiteStore) GetResistanceReport(ctx context.Context, id string) (model.ResistanceReport, bool, error) {
	payload, ok, err := s.get(ctx, KindResistanceReport, id)
	if err != nil || !ok {
		return model.ResistanceReport{}, false, err
	}
	report, err := DecodeResistanceReport(payload)
	if err != nil {
		return model.ResistanceReport{}, false, fmt.Errorf("decode resistance report %s: %w", id, err)
	}
	return report, true, nil
}

func (s *SQLiteStore) ListIDs(ctx context.Context, kind RecordKind) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	var ids []string
	err = db.SelectContext(ctx, &ids, `
		SELECT id FROM records
		WHERE kind = ?
		ORDER BY created_at_utc DESC, id ASC
	`, string(kind))
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) put(ctx context.Context, kind RecordKind, id, createdAt string, version model.VersionedRecord, payload []byte) error {
	if id == "" {
		return fmt.Errorf("%s id is required", kind)
	}
	if err := checkVersion(version); err != nil {
		return err
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.NamedExecContext(ctx, `
		INSERT INTO records (kind, id, created_at_utc, schema_version, codec_version, payload)
		VALUES (:kind, :id, :created_at_utc, :schema_version, :codec_version, :payload)
		ON CONFLICT(kind, id) DO UPDATE SET
			created_at_utc = excluded.created_at_utc,
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`, recordRow{
		Kind:          string(kind),
		ID:            id,
		CreatedAtUTC:  createdAt,
		SchemaVersion: version.SchemaVersion,
		CodecVersion:  version.CodecVersion,
		Payload:       payload,
	})
	return err
}

func (s *SQLiteStore) get(ctx context.Context, kind RecordKind, id string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var row recordRow
	err = db.GetContext(ctx, &row, `
		SELECT kind, id, created_at_utc, schema_version, codec_version, payload
		FROM records WHERE kind = ? AND id = ?
	`, string(kind), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return row.Payload, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sqlx.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			created_at_utc TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (kind, id)
		);
		CREATE INDEX IF NOT EXISTS records_kind_created ON records (kind, created_at_utc);
	`)
	return err
}
