package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sources (
	entity_id      TEXT NOT NULL,
	service_type   TEXT NOT NULL,
	integration_id TEXT NOT NULL,
	connected      INTEGER NOT NULL DEFAULT 1,
	credentials    TEXT NOT NULL DEFAULT '{}',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (entity_id, service_type, integration_id)
);

CREATE TABLE IF NOT EXISTS recurring_charges (
	id            TEXT PRIMARY KEY,
	entity_id     TEXT NOT NULL,
	merchant_name TEXT NOT NULL,
	amount        REAL NOT NULL,
	recurring     INTEGER NOT NULL DEFAULT 0,
	category      TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_sources_entity ON sources(entity_id);
CREATE INDEX IF NOT EXISTS idx_charges_entity ON recurring_charges(entity_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertSource(ctx context.Context, entityID string, src model.Source) error {
	credsJSON, err := json.Marshal(src.Credentials)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal credentials")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sources (entity_id, service_type, integration_id, connected, credentials, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entity_id, service_type, integration_id)
		 DO UPDATE SET connected = excluded.connected, credentials = excluded.credentials, updated_at = excluded.updated_at`,
		entityID, string(src.ServiceType), src.IntegrationID, src.Connected,
		string(credsJSON), time.Now().UTC(), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert source %s", src.Key())
}

func (s *SQLiteStore) ListSources(ctx context.Context, entityID string) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT service_type, integration_id, connected, credentials FROM sources
		 WHERE entity_id = ? ORDER BY created_at, service_type, integration_id`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		var serviceType, credsJSON string
		if err := rows.Scan(&serviceType, &src.IntegrationID, &src.Connected, &credsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		src.ServiceType = model.ServiceType(serviceType)
		if err := json.Unmarshal([]byte(credsJSON), &src.Credentials); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal credentials")
		}
		sources = append(sources, src)
	}
	return sources, eris.Wrap(rows.Err(), "sqlite: list sources iterate")
}

func (s *SQLiteStore) SetSourceConnected(ctx context.Context, entityID, serviceType, integrationID string, connected bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET connected = ?, updated_at = ?
		 WHERE entity_id = ? AND service_type = ? AND integration_id = ?`,
		connected, time.Now().UTC(), entityID, serviceType, integrationID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set connected %s:%s", serviceType, integrationID)
	}
	return checkRowsAffected(res, "source", serviceType+":"+integrationID)
}

func (s *SQLiteStore) DeleteSource(ctx context.Context, entityID, serviceType, integrationID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sources WHERE entity_id = ? AND service_type = ? AND integration_id = ?`,
		entityID, serviceType, integrationID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete source %s:%s", serviceType, integrationID)
	}
	return checkRowsAffected(res, "source", serviceType+":"+integrationID)
}

func (s *SQLiteStore) ReplaceCharges(ctx context.Context, entityID string, charges []model.ChargeDetails) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace charges")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM recurring_charges WHERE entity_id = ?`, entityID,
	); err != nil {
		return eris.Wrap(err, "sqlite: clear charges")
	}

	for _, c := range charges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO recurring_charges (id, entity_id, merchant_name, amount, recurring, category)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), entityID, c.MerchantName, c.Amount, c.Recurring, c.Category,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert charge %s", c.MerchantName)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit replace charges")
}

func (s *SQLiteStore) ListCharges(ctx context.Context, entityID string) ([]model.ChargeDetails, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT merchant_name, amount, recurring, COALESCE(category, '') FROM recurring_charges
		 WHERE entity_id = ? ORDER BY merchant_name`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list charges")
	}
	defer rows.Close()

	var charges []model.ChargeDetails
	for rows.Next() {
		var c model.ChargeDetails
		if err := rows.Scan(&c.MerchantName, &c.Amount, &c.Recurring, &c.Category); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan charge")
		}
		charges = append(charges, c)
	}
	return charges, eris.Wrap(rows.Err(), "sqlite: list charges iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
