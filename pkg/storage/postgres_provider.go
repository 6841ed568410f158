package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/tradekit/stratrunner/pkg/models"
)

// PostgresActionStore implements the ActionStore interface using PostgreSQL
type PostgresActionStore struct {
	db *sql.DB
}

// PostgresConfig contains configuration for the PostgreSQL action store
type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// NewPostgresActionStore creates a new PostgreSQL-backed action store
func NewPostgresActionStore(config PostgresConfig) (*PostgresActionStore, error) {
	// Set default port if not specified
	if config.Port == 0 {
		config.Port = 5432
	}

	// Set default SSL mode if not specified
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.Database, config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresActionStore{db: db}
	if err := store.initialize(); err != nil {
		return nil, err
	}

	return store, nil
}

// initialize creates the actions table if it does not exist
func (s *PostgresActionStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS actions (
			id SERIAL PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			delegation_wallet_id TEXT NOT NULL,
			action_type TEXT NOT NULL,
			description TEXT NOT NULL,
			note TEXT,
			tx_hash TEXT,
			block_number BIGINT,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_actions_subscription ON actions (subscription_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create actions table: %w", err)
	}

	return nil
}

// SaveActions persists a batch of action records with a single multi-row insert
func (s *PostgresActionStore) SaveActions(ctx context.Context, actions []models.ActionRecord) error {
	if len(actions) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(actions))
	args := make([]interface{}, 0, len(actions)*9)
	for i, action := range actions {
		base := i * 9
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			action.SubscriptionID,
			action.DelegationWalletID,
			action.ActionType,
			action.Description,
			action.Note,
			action.TxHash,
			action.BlockNumber,
			action.Status,
			action.CreatedAt,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO actions (
			subscription_id, delegation_wallet_id, action_type, description,
			note, tx_hash, block_number, status, created_at
		) VALUES %s`, strings.Join(placeholders, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save actions: %w", err)
	}

	return nil
}

// ListActions returns all persisted actions for a subscription
func (s *PostgresActionStore) ListActions(ctx context.Context, subscriptionID string) ([]models.ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subscription_id, delegation_wallet_id, action_type, description,
		       COALESCE(note, ''), COALESCE(tx_hash, ''), COALESCE(block_number, 0),
		       status, created_at
		FROM actions
		WHERE subscription_id = $1
		ORDER BY created_at`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	actions := make([]models.ActionRecord, 0)
	for rows.Next() {
		var action models.ActionRecord
		if err := rows.Scan(
			&action.SubscriptionID,
			&action.DelegationWalletID,
			&action.ActionType,
			&action.Description,
			&action.Note,
			&action.TxHash,
			&action.BlockNumber,
			&action.Status,
			&action.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, action)
	}

	return actions, rows.Err()
}

// Close cleans up resources
func (s *PostgresActionStore) Close() error {
	return s.db.Close()
}
