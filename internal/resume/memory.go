package resume

import (
	"context"
	"sync"

	"github.com/stemsi/exstem-placement/internal/model"
)

// MemoryStore keeps records for the lifetime of the process.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Save(_ context.Context, examID model.ID, rec model.ResumeRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(examID)] = data
	return nil
}

func (s *MemoryStore) Load(_ context.Context, examID model.ID) (model.ResumeRecord, bool) {
	s.mu.Lock()
	data, ok := s.records[recordKey(examID)]
	s.mu.Unlock()
	if !ok {
		return model.ResumeRecord{}, false
	}
	return decodeRecord(examID, data)
}

func (s *MemoryStore) Clear(_ context.Context, examID model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, recordKey(examID))
	return nil
}
