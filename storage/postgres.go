package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"wa_ingest/models"
)

// pgQuerier is satisfied by both the pool and a transaction
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool *pgxpool.Pool
	q    pgQuerier
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool, q: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	mobile_number TEXT NOT NULL UNIQUE,
	full_name TEXT,
	role TEXT NOT NULL DEFAULT 'client',
	password_hash TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS agents (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL UNIQUE REFERENCES users(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS whatsapp_messages (
	id UUID PRIMARY KEY,
	fingerprint TEXT NOT NULL UNIQUE,
	message_date TIMESTAMPTZ NOT NULL,
	sender_number TEXT NOT NULL DEFAULT '',
	sender_name TEXT,
	message_text TEXT NOT NULL,
	processed BOOLEAN NOT NULL DEFAULT FALSE,
	extracted_data JSONB,
	property_id UUID,
	user_id UUID REFERENCES users(id),
	source_file TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS properties (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	type TEXT NOT NULL,
	transaction_type TEXT NOT NULL,
	area_number INTEGER,
	neighborhood_number INTEGER,
	area INTEGER,
	floor_number INTEGER,
	installment_amount BIGINT,
	total_price BIGINT,
	years_paid INTEGER,
	years_remaining INTEGER,
	finishing TEXT,
	contact_number TEXT,
	features JSONB,
	date_posted TIMESTAMPTZ NOT NULL,
	owner_id UUID NOT NULL REFERENCES users(id),
	agent_id UUID REFERENCES agents(id),
	source_message_id UUID NOT NULL UNIQUE REFERENCES whatsapp_messages(id),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS areas (
	number INTEGER PRIMARY KEY,
	name_ar TEXT NOT NULL,
	name_en TEXT NOT NULL,
	city TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS features (
	id BIGSERIAL PRIMARY KEY,
	name_ar TEXT NOT NULL,
	name_en TEXT NOT NULL,
	category TEXT NOT NULL,
	UNIQUE (name_ar, name_en)
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id UUID PRIMARY KEY,
	source TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	files_processed INTEGER NOT NULL DEFAULT 0,
	messages_seen INTEGER NOT NULL DEFAULT 0,
	property_messages INTEGER NOT NULL DEFAULT 0,
	properties_created INTEGER NOT NULL DEFAULT 0,
	users_created INTEGER NOT NULL DEFAULT 0,
	errors_count INTEGER NOT NULL DEFAULT 0,
	metadata JSONB
);

CREATE INDEX IF NOT EXISTS idx_messages_sender ON whatsapp_messages(sender_number);
CREATE INDEX IF NOT EXISTS idx_messages_date ON whatsapp_messages(message_date);
CREATE INDEX IF NOT EXISTS idx_properties_owner ON properties(owner_id);
CREATE INDEX IF NOT EXISTS idx_properties_area ON properties(area_number, transaction_type);
CREATE INDEX IF NOT EXISTS idx_runs_started ON ingest_runs(started_at);
`

// Migrate applies the schema. Safe to run on every start.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// InTx runs fn against a store bound to a single transaction. fn's error
// rolls the transaction back.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if _, nested := s.q.(pgx.Tx); nested {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresStore{pool: s.pool, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// =============================================================================
// Users & Agents
// =============================================================================

func (s *PostgresStore) FindUserByPhone(ctx context.Context, mobile string) (*models.User, error) {
	query := `
		SELECT id, mobile_number, COALESCE(full_name, ''), role, password_hash, is_active, created_at
		FROM users WHERE mobile_number = $1`

	var u models.User
	err := s.q.QueryRow(ctx, query, mobile).Scan(
		&u.ID, &u.MobileNumber, &u.FullName, &u.Role, &u.PasswordHash, &u.IsActive, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts u or, when the mobile number is taken, loads the
// existing row into u. The no-op update makes RETURNING yield the row in
// both cases; xmax is 0 only for a fresh insert.
func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (bool, error) {
	query := `
		INSERT INTO users (id, mobile_number, full_name, role, password_hash, is_active, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
		ON CONFLICT (mobile_number) DO UPDATE SET mobile_number = EXCLUDED.mobile_number
		RETURNING id, COALESCE(full_name, ''), role, password_hash, is_active, created_at, (xmax = 0)`

	var created bool
	err := s.q.QueryRow(ctx, query,
		u.ID, u.MobileNumber, u.FullName, u.Role, u.PasswordHash, u.IsActive, u.CreatedAt,
	).Scan(&u.ID, &u.FullName, &u.Role, &u.PasswordHash, &u.IsActive, &u.CreatedAt, &created)
	return created, err
}

func (s *PostgresStore) FindAgentByUserID(ctx context.Context, userID uuid.UUID) (*models.Agent, error) {
	var a models.Agent
	err := s.q.QueryRow(ctx, `SELECT id, user_id, created_at FROM agents WHERE user_id = $1`, userID).
		Scan(&a.ID, &a.UserID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) CreateAgent(ctx context.Context, a *models.Agent) (bool, error) {
	query := `
		INSERT INTO agents (id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, created_at, (xmax = 0)`

	var created bool
	err := s.q.QueryRow(ctx, query, a.ID, a.UserID, a.CreatedAt).Scan(&a.ID, &a.CreatedAt, &created)
	return created, err
}

// =============================================================================
// Properties
// =============================================================================

func (s *PostgresStore) CreateProperty(ctx context.Context, p *models.Property) (bool, error) {
	query := `
		INSERT INTO properties (
			id, title, description, type, transaction_type, area_number, neighborhood_number,
			area, floor_number, installment_amount, total_price, years_paid, years_remaining,
			finishing, contact_number, features, date_posted, owner_id, agent_id,
			source_message_id, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
		ON CONFLICT (source_message_id) DO UPDATE SET source_message_id = EXCLUDED.source_message_id
		RETURNING id, created_at, (xmax = 0)`

	var created bool
	err := s.q.QueryRow(ctx, query,
		p.ID, p.Title, p.Description, p.Type, p.TransactionType, p.AreaNumber, p.NeighborhoodNumber,
		p.Area, p.FloorNumber, p.InstallmentAmount, p.TotalPrice, p.YearsPaid, p.YearsRemaining,
		p.Finishing, p.ContactNumber, p.Features, p.DatePosted, p.OwnerID, p.AgentID,
		p.SourceMessageID, p.CreatedAt,
	).Scan(&p.ID, &p.CreatedAt, &created)
	return created, err
}

// =============================================================================
// Messages
// =============================================================================

func (s *PostgresStore) CreateOrUpdateMessage(ctx context.Context, m *models.RawMessage) (bool, error) {
	query := `
		INSERT INTO whatsapp_messages (
			id, fingerprint, message_date, sender_number, sender_name, message_text,
			processed, extracted_data, source_file, created_at
		) VALUES (
			$1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10
		)
		ON CONFLICT (fingerprint) DO UPDATE SET
			processed = whatsapp_messages.processed OR EXCLUDED.processed,
			extracted_data = COALESCE(EXCLUDED.extracted_data, whatsapp_messages.extracted_data)
		RETURNING id, property_id, user_id, created_at, (xmax = 0)`

	var created bool
	err := s.q.QueryRow(ctx, query,
		m.ID, m.Fingerprint, m.MessageDate, m.SenderNumber, m.SenderName, m.MessageText,
		m.Processed, m.ExtractedData.JSON(), m.SourceFile, m.CreatedAt,
	).Scan(&m.ID, &m.PropertyID, &m.UserID, &m.CreatedAt, &created)
	return created, err
}

func (s *PostgresStore) LinkMessage(ctx context.Context, messageID uuid.UUID, propertyID, userID *uuid.UUID) error {
	query := `
		UPDATE whatsapp_messages SET
			property_id = COALESCE($2, property_id),
			user_id = COALESCE($3, user_id)
		WHERE id = $1`

	tag, err := s.q.Exec(ctx, query, messageID, propertyID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("link message %s: %w", messageID, ErrNotFound)
	}
	return nil
}

// =============================================================================
// Reference data
// =============================================================================

func (s *PostgresStore) UpsertArea(ctx context.Context, a *models.Area) error {
	query := `
		INSERT INTO areas (number, name_ar, name_en, city)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (number) DO NOTHING`

	_, err := s.q.Exec(ctx, query, a.Number, a.NameAr, a.NameEn, a.City)
	return err
}

func (s *PostgresStore) UpsertFeature(ctx context.Context, f *models.Feature) error {
	query := `
		INSERT INTO features (name_ar, name_en, category)
		VALUES ($1, $2, $3)
		ON CONFLICT (name_ar, name_en) DO NOTHING`

	_, err := s.q.Exec(ctx, query, f.NameAr, f.NameEn, f.Category)
	return err
}

// =============================================================================
// Ingest Runs
// =============================================================================

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.IngestRun) error {
	query := `
		INSERT INTO ingest_runs (id, source, started_at, status, metadata)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.q.Exec(ctx, query, run.ID, run.Source, run.StartedAt, run.Status, run.Metadata)
	return err
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *models.IngestRun) error {
	query := `
		UPDATE ingest_runs SET
			finished_at = $2, status = $3, files_processed = $4, messages_seen = $5,
			property_messages = $6, properties_created = $7, users_created = $8,
			errors_count = $9, metadata = $10
		WHERE id = $1`

	_, err := s.q.Exec(ctx, query,
		run.ID, run.FinishedAt, run.Status, run.FilesProcessed, run.MessagesSeen,
		run.PropertyMessages, run.PropertiesCreated, run.UsersCreated, run.ErrorsCount, run.Metadata,
	)
	return err
}
