package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-payment-intents/app/entity"
)

var ErrLogEntryAlreadyExists = errors.New("log entry already mirrored")

const logEntriesSchema = `
	CREATE TABLE IF NOT EXISTS transaction_log_entries (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		entry_hash CHAR(64) NOT NULL,
		entry_type VARCHAR(32) NOT NULL,
		payment_intent_id VARCHAR(255) NULL,
		payload_json JSON NOT NULL,
		logged_at DATETIME(6) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_transaction_log_entries_hash (entry_hash),
		KEY idx_transaction_log_entries_intent (payment_intent_id, logged_at)
	)
`

// LogEntryRepository mirrors transaction log entries into MySQL. The file log
// stays authoritative; rows are keyed by a hash of the encoded line so the
// same entry is stored at most once.
type LogEntryRepository struct {
	db  DBTX
	now func() time.Time
}

func NewLogEntryRepository(db DBTX) *LogEntryRepository {
	return &LogEntryRepository{db: db, now: time.Now}
}

func (r *LogEntryRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, logEntriesSchema)
	return err
}

func (r *LogEntryRepository) Create(ctx context.Context, entry entity.LogEntry) error {
	hash, err := EntryHash(entry)
	if err != nil {
		return err
	}
	payloadJSON, err := serializePayload(entry.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transaction_log_entries (
			entry_hash, entry_type, payment_intent_id, payload_json, logged_at, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		hash,
		string(entry.Type),
		nullableString(entry.String(entity.FieldPaymentIntentID)),
		payloadJSON,
		entry.Timestamp.UTC(),
		r.now().UTC(),
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrLogEntryAlreadyExists
		}
		return err
	}

	return nil
}

func (r *LogEntryRepository) ListByPaymentIntentID(ctx context.Context, paymentIntentID string) ([]entity.LogEntry, error) {
	query := `
		SELECT entry_type, payload_json, logged_at
		FROM transaction_log_entries
		WHERE payment_intent_id = ?
		ORDER BY logged_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, paymentIntentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]entity.LogEntry, 0)
	for rows.Next() {
		var (
			entryType   string
			payloadJSON string
			loggedAt    time.Time
		)
		if err := rows.Scan(&entryType, &payloadJSON, &loggedAt); err != nil {
			return nil, err
		}
		payload, err := parsePayload(payloadJSON)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entity.LogEntry{
			Timestamp: loggedAt.UTC(),
			Type:      entity.EntryType(entryType),
			Payload:   payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *LogEntryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transaction_log_entries`).Scan(&count)
	return count, err
}

// EntryHash identifies an entry by the SHA-256 of its encoded line.
func EntryHash(entry entity.LogEntry) (string, error) {
	line, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(line)
	return hex.EncodeToString(sum[:]), nil
}
