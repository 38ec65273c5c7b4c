package resume

import "github.com/stemsi/exstem-placement/internal/model"

// Put stores raw bytes under examID, bypassing encoding.
func (s *MemoryStore) Put(examID model.ID, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey(examID)] = raw
}
