package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"shopify-uploader/internal/domain/model"
	"shopify-uploader/internal/logging"
	"time"
)

const documentsTable = "uploader_documents"

const createDocumentsTable = `CREATE TABLE IF NOT EXISTS uploader_documents (
	name VARCHAR(64) NOT NULL PRIMARY KEY,
	body JSON NOT NULL,
	updated_at DATETIME(6) NOT NULL
)`

const (
	selectDocumentQuery = "SELECT body FROM uploader_documents WHERE name = ?"
	upsertDocumentQuery = "INSERT INTO uploader_documents (name, body, updated_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE body = VALUES(body), updated_at = VALUES(updated_at)"
	deleteDocumentQuery = "DELETE FROM uploader_documents WHERE name = ?"
)

// MySQLStore keeps the same four documents as rows of one table, so the
// checkpoint and restore snapshot can be written in a single transaction.
type MySQLStore struct {
	db     *sql.DB
	logger logging.LoggerService
	now    func() time.Time
}

func NewMySQLStore(db *sql.DB, logger logging.LoggerService) *MySQLStore {
	return &MySQLStore{db: db, logger: logger, now: time.Now}
}

func (s *MySQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createDocumentsTable); err != nil {
		return fmt.Errorf("mysql: create %s: %w", documentsTable, err)
	}
	return nil
}

func (s *MySQLStore) LoadCheckpoint(ctx context.Context) (*Checkpoint, error) {
	var cp Checkpoint
	if err := s.load(ctx, CheckpointName, &cp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if cp.Results == nil {
		cp.Results = []model.ItemResult{}
	}
	return &cp, nil
}

func (s *MySQLStore) SaveCheckpoint(ctx context.Context, cp *Checkpoint) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.upsert(ctx, tx, CheckpointName, cp)
	})
}

func (s *MySQLStore) DeleteCheckpoint(ctx context.Context) error {
	return s.remove(ctx, CheckpointName)
}

func (s *MySQLStore) LoadRegistry(ctx context.Context) (*Registry, error) {
	r := NewRegistry()
	if err := s.load(ctx, RegistryName, r); err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewRegistry(), nil
		}
		return nil, err
	}
	r.ensure()
	return r, nil
}

func (s *MySQLStore) SaveRegistry(ctx context.Context, r *Registry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.upsert(ctx, tx, RegistryName, r)
	})
}

func (s *MySQLStore) LoadRestore(ctx context.Context) (*RestoreSnapshot, error) {
	snap := NewRestoreSnapshot()
	if err := s.load(ctx, RestoreName, snap); err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewRestoreSnapshot(), nil
		}
		return nil, err
	}
	if snap.Products == nil {
		snap.Products = map[string]RestoreEntry{}
	}
	return snap, nil
}

func (s *MySQLStore) SaveRestore(ctx context.Context, snap *RestoreSnapshot) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.upsert(ctx, tx, RestoreName, snap)
	})
}

func (s *MySQLStore) DeleteRestore(ctx context.Context) error {
	return s.remove(ctx, RestoreName)
}

func (s *MySQLStore) LoadTaxonomyCache(ctx context.Context) (TaxonomyCache, error) {
	cache := TaxonomyCache{}
	if err := s.load(ctx, TaxonomyCacheName, &cache); err != nil {
		if errors.Is(err, ErrNotFound) {
			return TaxonomyCache{}, nil
		}
		return nil, err
	}
	if cache == nil {
		cache = TaxonomyCache{}
	}
	return cache, nil
}

func (s *MySQLStore) SaveTaxonomyCache(ctx context.Context, cache TaxonomyCache) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.upsert(ctx, tx, TaxonomyCacheName, cache)
	})
}

func (s *MySQLStore) SaveProgress(ctx context.Context, cp *Checkpoint, snap *RestoreSnapshot) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.upsert(ctx, tx, CheckpointName, cp); err != nil {
			return err
		}
		if snap == nil {
			return nil
		}
		return s.upsert(ctx, tx, RestoreName, snap)
	})
}

// load returns ErrNotFound for a missing row and also for a row whose body
// no longer decodes.
func (s *MySQLStore) load(ctx context.Context, name string, out any) error {
	var body []byte
	err := s.db.QueryRowContext(ctx, selectDocumentQuery, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("mysql: load %s: %w", name, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		if s.logger != nil {
			s.logger.LogWarning(fmt.Sprintf("state document %s is corrupt, starting fresh: %v", name, err))
		}
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) upsert(ctx context.Context, tx *sql.Tx, name string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, upsertDocumentQuery, name, body, s.now().UTC()); err != nil {
		return fmt.Errorf("mysql: save %s: %w", name, err)
	}
	return nil
}

func (s *MySQLStore) remove(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, deleteDocumentQuery, name); err != nil {
		return fmt.Errorf("mysql: delete %s: %w", name, err)
	}
	return nil
}

func (s *MySQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysql: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mysql: commit: %w", err)
	}
	return nil
}
