package resume

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-placement/internal/model"
)

// SQLiteStore keeps records in a device-local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSQLiteStore wraps an open database and ensures the schema exists.
func NewSQLiteStore(ctx context.Context, db *sql.DB, log zerolog.Logger) (*SQLiteStore, error) {
	s := &SQLiteStore{
		db:  db,
		log: log.With().Str("component", "resume_sqlite_store").Logger(),
	}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("init resume schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS resume_records (
		exam_key TEXT PRIMARY KEY,
		submission_id TEXT NOT NULL,
		updated_at_unix INTEGER NOT NULL
	);`)
	return err
}

func (s *SQLiteStore) Save(ctx context.Context, examID model.ID, rec model.ResumeRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resume_records (exam_key, submission_id, updated_at_unix)
		 VALUES (?, ?, ?)
		 ON CONFLICT (exam_key) DO UPDATE
		 SET submission_id = excluded.submission_id, updated_at_unix = excluded.updated_at_unix`,
		recordKey(examID), rec.SubmissionID.String(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert resume record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, examID model.ID) (model.ResumeRecord, bool) {
	var submissionID string
	err := s.db.QueryRowContext(ctx,
		`SELECT submission_id FROM resume_records WHERE exam_key = ?`,
		recordKey(examID),
	).Scan(&submissionID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Resume record unreadable")
		}
		return model.ResumeRecord{}, false
	}

	rec := model.ResumeRecord{ExamID: examID, SubmissionID: model.ID(submissionID)}
	return rec, rec.Valid()
}

func (s *SQLiteStore) Clear(ctx context.Context, examID model.ID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM resume_records WHERE exam_key = ?`, recordKey(examID)); err != nil {
		return fmt.Errorf("delete resume record: %w", err)
	}
	return nil
}
