package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/neurai-voice/internal/voice"
	"github.com/yegors/neurai-voice/pkg/logger"
)

// timeLayout is fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `SELECT id, session_id, status, text, error_kind, error_message, audio_bytes, audio_duration_ms, started_at, finished_at FROM transcriptions`

// TranscriptionStorage keeps the history of finished sessions
type TranscriptionStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewTranscriptionStorage creates the storage and its schema
func NewTranscriptionStorage(db *sql.DB, log *logger.Logger) (*TranscriptionStorage, error) {
	storage := &TranscriptionStorage{
		db:     db,
		logger: log.Named("sqlite-transcriptions"),
	}

	if err := storage.initDB(); err != nil {
		return nil, err
	}

	return storage, nil
}

// initDB initializes the database tables
func (s *TranscriptionStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS transcriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			status TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			error_kind TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			audio_bytes INTEGER NOT NULL DEFAULT 0,
			audio_duration_ms INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create transcriptions table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_transcriptions_finished_at ON transcriptions(finished_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transcriptions_status ON transcriptions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_transcriptions_session_id ON transcriptions(session_id)`,
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create transcription index: %w", err)
		}
	}

	return nil
}

// Store inserts a record and returns its ID
func (s *TranscriptionStorage) Store(record *TranscriptionRecord) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO transcriptions
		(session_id, status, text, error_kind, error_message, audio_bytes, audio_duration_ms, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.SessionID,
		record.Status,
		record.Text,
		record.ErrorKind,
		record.ErrorMessage,
		record.AudioBytes,
		record.AudioDuration.Milliseconds(),
		record.StartedAt.UTC().Format(timeLayout),
		record.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transcription: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}
	record.ID = id

	return id, nil
}

// Observe stores a finished session. It matches the capture observer
// signature; failures are logged.
func (s *TranscriptionStorage) Observe(summary voice.Summary) {
	if _, err := s.Store(RecordFromSummary(summary)); err != nil {
		s.logger.Error("Failed to store transcription",
			logger.String("session_id", summary.SessionID),
			Error(err))
	}
}

// GetRecent returns the newest records first
func (s *TranscriptionStorage) GetRecent(limit int) ([]*TranscriptionRecord, error) {
	rows, err := s.db.Query(selectColumns+` ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transcriptions: %w", err)
	}
	defer rows.Close()

	return s.scanRows(rows)
}

// GetByStatus returns the newest records with the given status
func (s *TranscriptionStorage) GetByStatus(status string, limit int) ([]*TranscriptionRecord, error) {
	rows, err := s.db.Query(selectColumns+` WHERE status = ? ORDER BY finished_at DESC, id DESC LIMIT ?`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcriptions by status: %w", err)
	}
	defer rows.Close()

	return s.scanRows(rows)
}

// Count returns the number of stored records
func (s *TranscriptionStorage) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM transcriptions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count transcriptions: %w", err)
	}
	return n, nil
}

// Clear deletes all records
func (s *TranscriptionStorage) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM transcriptions`); err != nil {
		return fmt.Errorf("failed to clear transcriptions: %w", err)
	}
	s.logger.Info("Transcription history cleared")
	return nil
}

// Prune keeps the newest keep records and returns how many were deleted
func (s *TranscriptionStorage) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	result, err := s.db.Exec(
		`DELETE FROM transcriptions WHERE id NOT IN (
			SELECT id FROM transcriptions ORDER BY finished_at DESC, id DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune transcriptions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return deleted, nil
}

// scanRows scans database rows into TranscriptionRecord structs
func (s *TranscriptionStorage) scanRows(rows *sql.Rows) ([]*TranscriptionRecord, error) {
	records := make([]*TranscriptionRecord, 0)
	for rows.Next() {
		var record TranscriptionRecord
		var durationMs int64
		var startedAt, finishedAt string

		if err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.Status,
			&record.Text,
			&record.ErrorKind,
			&record.ErrorMessage,
			&record.AudioBytes,
			&durationMs,
			&startedAt,
			&finishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transcription: %w", err)
		}

		var err error
		record.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse started_at: %w", err)
		}
		record.FinishedAt, err = time.Parse(timeLayout, finishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at: %w", err)
		}
		record.AudioDuration = time.Duration(durationMs) * time.Millisecond

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transcriptions: %w", err)
	}
	return records, nil
}
