package resume

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-placement/internal/model"
	"golang.org/x/crypto/blake2b"
)

// FileStore keeps one small JSON file per exam under a directory. Exam
// identifiers are hashed into file names so arbitrary ids stay path-safe.
type FileStore struct {
	dir string
	log zerolog.Logger
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// lazily on first save.
func NewFileStore(dir string, log zerolog.Logger) *FileStore {
	return &FileStore{
		dir: dir,
		log: log.With().Str("component", "resume_file_store").Logger(),
	}
}

func (s *FileStore) path(examID model.ID) string {
	sum := blake2b.Sum256([]byte(recordKey(examID)))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+".json")
}

func (s *FileStore) Save(_ context.Context, examID model.ID, rec model.ResumeRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create resume dir: %w", err)
	}

	// Write-then-rename so a crash never leaves a half-written record.
	tmp, err := os.CreateTemp(s.dir, ".resume-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmpName, s.path(examID)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit record: %w", err)
	}
	return nil
}

func (s *FileStore) Load(_ context.Context, examID model.ID) (model.ResumeRecord, bool) {
	data, err := os.ReadFile(s.path(examID))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Resume record unreadable")
		}
		return model.ResumeRecord{}, false
	}

	rec, ok := decodeRecord(examID, data)
	if !ok {
		s.log.Warn().Str("exam_id", examID.String()).Msg("Resume record corrupt")
	}
	return rec, ok
}

func (s *FileStore) Clear(_ context.Context, examID model.ID) error {
	if err := os.Remove(s.path(examID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}
