package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"wa_ingest/models"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteStore struct {
	db *sql.DB
	q  sqlQuerier
}

// NewSQLiteStore opens (creating if needed) the database file at dbPath.
// Writers are serialized on one connection; transactions take the write
// lock up front so concurrent file workers wait instead of failing.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}

	return &SQLiteStore{db: db, q: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		mobile_number TEXT NOT NULL UNIQUE,
		full_name TEXT,
		role TEXT NOT NULL DEFAULT 'client',
		password_hash TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id),
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS whatsapp_messages (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL UNIQUE,
		message_date DATETIME NOT NULL,
		sender_number TEXT NOT NULL DEFAULT '',
		sender_name TEXT,
		message_text TEXT NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		extracted_data JSON,
		property_id TEXT,
		user_id TEXT REFERENCES users(id),
		source_file TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		type TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		area_number INTEGER,
		neighborhood_number INTEGER,
		area INTEGER,
		floor_number INTEGER,
		installment_amount INTEGER,
		total_price INTEGER,
		years_paid INTEGER,
		years_remaining INTEGER,
		finishing TEXT,
		contact_number TEXT,
		features JSON,
		date_posted DATETIME NOT NULL,
		owner_id TEXT NOT NULL REFERENCES users(id),
		agent_id TEXT REFERENCES agents(id),
		source_message_id TEXT NOT NULL UNIQUE REFERENCES whatsapp_messages(id),
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS areas (
		number INTEGER PRIMARY KEY,
		name_ar TEXT NOT NULL,
		name_en TEXT NOT NULL,
		city TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS features (
		id INTEGER PRIMARY KEY,
		name_ar TEXT NOT NULL,
		name_en TEXT NOT NULL,
		category TEXT NOT NULL,
		UNIQUE(name_ar, name_en)
	);

	CREATE TABLE IF NOT EXISTS ingest_runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		status TEXT NOT NULL,
		files_processed INTEGER NOT NULL DEFAULT 0,
		messages_seen INTEGER NOT NULL DEFAULT 0,
		property_messages INTEGER NOT NULL DEFAULT 0,
		properties_created INTEGER NOT NULL DEFAULT 0,
		users_created INTEGER NOT NULL DEFAULT 0,
		errors_count INTEGER NOT NULL DEFAULT 0,
		metadata JSON
	);

	CREATE INDEX IF NOT EXISTS idx_messages_sender ON whatsapp_messages(sender_number);
	CREATE INDEX IF NOT EXISTS idx_messages_date ON whatsapp_messages(message_date);
	CREATE INDEX IF NOT EXISTS idx_properties_owner ON properties(owner_id);
	CREATE INDEX IF NOT EXISTS idx_properties_area ON properties(area_number, transaction_type);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON ingest_runs(started_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{db: s.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// insertOrFetch runs an INSERT ... ON CONFLICT DO NOTHING and, when it
// inserted nothing, the fetch that loads the existing row.
func (s *SQLiteStore) insertOrFetch(ctx context.Context, insert string, args []any, fetch func() error) (bool, error) {
	res, err := s.q.ExecContext(ctx, insert, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	return false, fetch()
}

// =============================================================================
// Users & Agents
// =============================================================================

func (s *SQLiteStore) FindUserByPhone(ctx context.Context, mobile string) (*models.User, error) {
	var u models.User
	err := s.q.QueryRowContext(ctx, `
		SELECT id, mobile_number, COALESCE(full_name, ''), role, password_hash, is_active, created_at
		FROM users WHERE mobile_number = ?`, mobile,
	).Scan(&u.ID, &u.MobileNumber, &u.FullName, &u.Role, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) (bool, error) {
	return s.insertOrFetch(ctx, `
		INSERT INTO users (id, mobile_number, full_name, role, password_hash, is_active, created_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?)
		ON CONFLICT(mobile_number) DO NOTHING`,
		[]any{u.ID, u.MobileNumber, u.FullName, string(u.Role), u.PasswordHash, u.IsActive, u.CreatedAt},
		func() error {
			existing, err := s.FindUserByPhone(ctx, u.MobileNumber)
			if err != nil {
				return err
			}
			*u = *existing
			return nil
		},
	)
}

func (s *SQLiteStore) FindAgentByUserID(ctx context.Context, userID uuid.UUID) (*models.Agent, error) {
	var a models.Agent
	err := s.q.QueryRowContext(ctx, `SELECT id, user_id, created_at FROM agents WHERE user_id = ?`, userID).
		Scan(&a.ID, &a.UserID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) CreateAgent(ctx context.Context, a *models.Agent) (bool, error) {
	return s.insertOrFetch(ctx, `
		INSERT INTO agents (id, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		[]any{a.ID, a.UserID, a.CreatedAt},
		func() error {
			existing, err := s.FindAgentByUserID(ctx, a.UserID)
			if err != nil {
				return err
			}
			*a = *existing
			return nil
		},
	)
}

// =============================================================================
// Properties
// =============================================================================

func (s *SQLiteStore) CreateProperty(ctx context.Context, p *models.Property) (bool, error) {
	return s.insertOrFetch(ctx, `
		INSERT INTO properties (
			id, title, description, type, transaction_type, area_number, neighborhood_number,
			area, floor_number, installment_amount, total_price, years_paid, years_remaining,
			finishing, contact_number, features, date_posted, owner_id, agent_id,
			source_message_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_message_id) DO NOTHING`,
		[]any{
			p.ID, p.Title, p.Description, string(p.Type), string(p.TransactionType), p.AreaNumber, p.NeighborhoodNumber,
			p.Area, p.FloorNumber, p.InstallmentAmount, p.TotalPrice, p.YearsPaid, p.YearsRemaining,
			p.Finishing, p.ContactNumber, jsonText(p.Features), p.DatePosted, p.OwnerID, p.AgentID,
			p.SourceMessageID, p.CreatedAt,
		},
		func() error {
			return s.q.QueryRowContext(ctx,
				`SELECT id, created_at FROM properties WHERE source_message_id = ?`, p.SourceMessageID,
			).Scan(&p.ID, &p.CreatedAt)
		},
	)
}

// =============================================================================
// Messages
// =============================================================================

func (s *SQLiteStore) CreateOrUpdateMessage(ctx context.Context, m *models.RawMessage) (bool, error) {
	extracted := jsonText(m.ExtractedData.JSON())
	return s.insertOrFetch(ctx, `
		INSERT INTO whatsapp_messages (
			id, fingerprint, message_date, sender_number, sender_name, message_text,
			processed, extracted_data, source_file, created_at
		) VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING`,
		[]any{
			m.ID, m.Fingerprint, m.MessageDate, m.SenderNumber, m.SenderName, m.MessageText,
			m.Processed, extracted, m.SourceFile, m.CreatedAt,
		},
		func() error {
			_, err := s.q.ExecContext(ctx, `
				UPDATE whatsapp_messages SET
					processed = processed OR ?,
					extracted_data = COALESCE(?, extracted_data)
				WHERE fingerprint = ?`,
				m.Processed, extracted, m.Fingerprint,
			)
			if err != nil {
				return err
			}
			return s.q.QueryRowContext(ctx,
				`SELECT id, property_id, user_id, created_at FROM whatsapp_messages WHERE fingerprint = ?`, m.Fingerprint,
			).Scan(&m.ID, &m.PropertyID, &m.UserID, &m.CreatedAt)
		},
	)
}

func (s *SQLiteStore) LinkMessage(ctx context.Context, messageID uuid.UUID, propertyID, userID *uuid.UUID) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE whatsapp_messages SET
			property_id = COALESCE(?, property_id),
			user_id = COALESCE(?, user_id)
		WHERE id = ?`,
		propertyID, userID, messageID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("link message %s: %w", messageID, ErrNotFound)
	}
	return nil
}

// =============================================================================
// Reference data
// =============================================================================

func (s *SQLiteStore) UpsertArea(ctx context.Context, a *models.Area) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO areas (number, name_ar, name_en, city) VALUES (?, ?, ?, ?)
		ON CONFLICT(number) DO NOTHING`,
		a.Number, a.NameAr, a.NameEn, a.City,
	)
	return err
}

func (s *SQLiteStore) UpsertFeature(ctx context.Context, f *models.Feature) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO features (name_ar, name_en, category) VALUES (?, ?, ?)
		ON CONFLICT(name_ar, name_en) DO NOTHING`,
		f.NameAr, f.NameEn, f.Category,
	)
	return err
}

// =============================================================================
// Ingest Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.IngestRun) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, source, started_at, status, metadata) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.StartedAt, string(run.Status), jsonText(run.Metadata),
	)
	return err
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *models.IngestRun) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE ingest_runs SET
			finished_at = ?, status = ?, files_processed = ?, messages_seen = ?,
			property_messages = ?, properties_created = ?, users_created = ?,
			errors_count = ?, metadata = ?
		WHERE id = ?`,
		run.FinishedAt, string(run.Status), run.FilesProcessed, run.MessagesSeen,
		run.PropertyMessages, run.PropertiesCreated, run.UsersCreated,
		run.ErrorsCount, jsonText(run.Metadata), run.ID,
	)
	return err
}

// jsonText stores JSON as TEXT; empty becomes NULL.
func jsonText(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
