package resume

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-placement/internal/model"
)

// PostgresStore keeps records in the resume_records table created by
// cmd/migrate.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		log:  log.With().Str("component", "resume_postgres_store").Logger(),
	}
}

func (s *PostgresStore) Save(ctx context.Context, examID model.ID, rec model.ResumeRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resume_records (exam_key, submission_id)
		 VALUES ($1, $2)
		 ON CONFLICT (exam_key) DO UPDATE
		 SET submission_id = EXCLUDED.submission_id, updated_at = NOW()`,
		recordKey(examID), rec.SubmissionID.String(),
	)
	if err != nil {
		return fmt.Errorf("upsert resume record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, examID model.ID) (model.ResumeRecord, bool) {
	var submissionID string
	err := s.pool.QueryRow(ctx,
		`SELECT submission_id FROM resume_records WHERE exam_key = $1`,
		recordKey(examID),
	).Scan(&submissionID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Resume record unreadable")
		}
		return model.ResumeRecord{}, false
	}

	rec := model.ResumeRecord{ExamID: examID, SubmissionID: model.ID(submissionID)}
	return rec, rec.Valid()
}

func (s *PostgresStore) Clear(ctx context.Context, examID model.ID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM resume_records WHERE exam_key = $1`, recordKey(examID)); err != nil {
		return fmt.Errorf("delete resume record: %w", err)
	}
	return nil
}
