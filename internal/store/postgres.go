package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it,
// so Postgres queries are testable without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. For tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sources (
	entity_id      TEXT NOT NULL,
	service_type   TEXT NOT NULL,
	integration_id TEXT NOT NULL,
	connected      BOOLEAN NOT NULL DEFAULT true,
	credentials    JSONB NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (entity_id, service_type, integration_id)
);

CREATE TABLE IF NOT EXISTS recurring_charges (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entity_id     TEXT NOT NULL,
	merchant_name TEXT NOT NULL,
	amount        DOUBLE PRECISION NOT NULL,
	recurring     BOOLEAN NOT NULL DEFAULT false,
	category      TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sources_entity ON sources(entity_id);
CREATE INDEX IF NOT EXISTS idx_charges_entity ON recurring_charges(entity_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertSource(ctx context.Context, entityID string, src model.Source) error {
	credsJSON, err := json.Marshal(src.Credentials)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal credentials")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sources (entity_id, service_type, integration_id, connected, credentials)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (entity_id, service_type, integration_id)
		 DO UPDATE SET connected = excluded.connected, credentials = excluded.credentials, updated_at = now()`,
		entityID, string(src.ServiceType), src.IntegrationID, src.Connected, string(credsJSON),
	)
	return eris.Wrapf(err, "postgres: upsert source %s", src.Key())
}

func (s *PostgresStore) ListSources(ctx context.Context, entityID string) ([]model.Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT service_type, integration_id, connected, credentials FROM sources
		 WHERE entity_id = $1 ORDER BY created_at, service_type, integration_id`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sources")
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		var serviceType string
		var credsJSON []byte
		if err := rows.Scan(&serviceType, &src.IntegrationID, &src.Connected, &credsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		src.ServiceType = model.ServiceType(serviceType)
		if err := json.Unmarshal(credsJSON, &src.Credentials); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal credentials")
		}
		sources = append(sources, src)
	}
	return sources, eris.Wrap(rows.Err(), "postgres: list sources iterate")
}

func (s *PostgresStore) SetSourceConnected(ctx context.Context, entityID, serviceType, integrationID string, connected bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sources SET connected = $1, updated_at = now()
		 WHERE entity_id = $2 AND service_type = $3 AND integration_id = $4`,
		connected, entityID, serviceType, integrationID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set connected %s:%s", serviceType, integrationID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("source not found: %s:%s", serviceType, integrationID)
	}
	return nil
}

func (s *PostgresStore) DeleteSource(ctx context.Context, entityID, serviceType, integrationID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM sources WHERE entity_id = $1 AND service_type = $2 AND integration_id = $3`,
		entityID, serviceType, integrationID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete source %s:%s", serviceType, integrationID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("source not found: %s:%s", serviceType, integrationID)
	}
	return nil
}

func (s *PostgresStore) ReplaceCharges(ctx context.Context, entityID string, charges []model.ChargeDetails) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace charges")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM recurring_charges WHERE entity_id = $1`, entityID,
	); err != nil {
		return eris.Wrap(err, "postgres: clear charges")
	}

	for _, c := range charges {
		if _, err := tx.Exec(ctx,
			`INSERT INTO recurring_charges (id, entity_id, merchant_name, amount, recurring, category)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(), entityID, c.MerchantName, c.Amount, c.Recurring, c.Category,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert charge %s", c.MerchantName)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace charges")
}

func (s *PostgresStore) ListCharges(ctx context.Context, entityID string) ([]model.ChargeDetails, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT merchant_name, amount, recurring, COALESCE(category, '') FROM recurring_charges
		 WHERE entity_id = $1 ORDER BY merchant_name`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list charges")
	}
	defer rows.Close()

	var charges []model.ChargeDetails
	for rows.Next() {
		var c model.ChargeDetails
		if err := rows.Scan(&c.MerchantName, &c.Amount, &c.Recurring, &c.Category); err != nil {
			return nil, eris.Wrap(err, "postgres: scan charge")
		}
		charges = append(charges, c)
	}
	return charges, eris.Wrap(rows.Err(), "postgres: list charges iterate")
}
