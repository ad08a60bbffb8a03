package storage

import (
	"database/sql"
	"fmt"

	"hobbydork/internal/logger"

	_ "github.com/lib/pq"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB creates the webhook event store on an existing
// database connection.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	log.Info("DATABASE", "Creating webhook event storage with existing database connection")

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize webhook event tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize webhook event tables: %w", err)
	}

	log.Info("DATABASE", "Webhook event storage initialized successfully")
	return store, nil
}

func NewPostgreSQLStore(dsn string, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "postgresql", "Connecting to PostgreSQL for webhook event storage")

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open PostgreSQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping PostgreSQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "postgresql", "Webhook event storage ready")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "postgresql", "Creating processed_webhook_events table if not exists")

	// The unique (provider, event_id) pair is the idempotency guarantee.
	query := `
    CREATE TABLE IF NOT EXISTS processed_webhook_events (
        id BIGSERIAL PRIMARY KEY,
        provider VARCHAR(50) NOT NULL,
        event_id VARCHAR(255) NOT NULL,
        event_type VARCHAR(100) NOT NULL,
        processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (provider, event_id)
    );
    `
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create processed_webhook_events table: %w", err)
	}

	indexQuery := "CREATE INDEX IF NOT EXISTS idx_webhook_events_processed_at ON processed_webhook_events(processed_at);"
	if _, err := s.db.Exec(indexQuery); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "postgresql", "Webhook event tables and indexes ready")
	return nil
}

// WasProcessed reports whether the event row exists. Rows are written only
// after a successful dispatch, so a missing row means the event is either
// new or a retry of a failed delivery; both must be dispatched.
func (s *PostgreSQLStore) WasProcessed(provider, eventID string) (bool, error) {
	var exists bool
	query := `
    SELECT EXISTS (
        SELECT 1 FROM processed_webhook_events
        WHERE provider = $1 AND event_id = $2
    )
    `
	if err := s.db.QueryRow(query, provider, eventID).Scan(&exists); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to check webhook event %s: %s", eventID, err.Error()))
		return false, fmt.Errorf("failed to check webhook event: %w", err)
	}
	return exists, nil
}

// MarkProcessed inserts the event row; ON CONFLICT DO NOTHING makes the
// duplicate path a zero-row insert instead of an error.
func (s *PostgreSQLStore) MarkProcessed(provider, eventID, eventType string) (bool, error) {
	query := `
    INSERT INTO processed_webhook_events (provider, event_id, event_type)
    VALUES ($1, $2, $3)
    ON CONFLICT (provider, event_id) DO NOTHING
    `

	res, err := s.db.Exec(query, provider, eventID, eventType)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to record webhook event %s: %s", eventID, err.Error()))
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}

	if affected == 0 {
		s.log.LogDatabase("DUPLICATE", "postgresql", fmt.Sprintf("Webhook event %s/%s already processed", provider, eventID))
		return false, nil
	}

	s.log.LogDatabase("INSERT", "postgresql", fmt.Sprintf("Webhook event %s/%s recorded", provider, eventID))
	return true, nil
}

// RecentEvents lists the newest processed webhook events for the admin API.
func (s *PostgreSQLStore) RecentEvents(limit int) ([]ProcessedEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
    SELECT id, provider, event_id, event_type, processed_at
    FROM processed_webhook_events
    ORDER BY processed_at DESC, id DESC
    LIMIT $1
    `

	rows, err := s.db.Query(query, limit)
	if err != nil {
		s.log.Error("DATABASE", "Failed to list webhook events: "+err.Error())
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}
	defer rows.Close()

	events := make([]ProcessedEvent, 0, limit)
	for rows.Next() {
		var e ProcessedEvent
		if err := rows.Scan(&e.ID, &e.Provider, &e.EventID, &e.EventType, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhook event rows: %w", err)
	}

	return events, nil
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *PostgreSQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "postgresql", "Closing webhook event storage connection")
	return s.db.Close()
}
