package resume

import (
	"context"

	"github.com/stemsi/exstem-placement/internal/model"
)

type scopedStore struct {
	inner Store
	scope string
}

// Scoped partitions inner so that several applicants can share one backend.
// An empty scope returns inner unchanged.
func Scoped(inner Store, scope string) Store {
	if scope == "" {
		return inner
	}
	return &scopedStore{inner: inner, scope: scope}
}

func (s *scopedStore) key(examID model.ID) model.ID {
	return model.ID(s.scope + ":" + examID.String())
}

func (s *scopedStore) Save(ctx context.Context, examID model.ID, rec model.ResumeRecord) error {
	rec.ExamID = examID
	return s.inner.Save(ctx, s.key(examID), rec)
}

func (s *scopedStore) Load(ctx context.Context, examID model.ID) (model.ResumeRecord, bool) {
	rec, ok := s.inner.Load(ctx, s.key(examID))
	if !ok {
		return model.ResumeRecord{}, false
	}
	rec.ExamID = examID
	return rec, true
}

func (s *scopedStore) Clear(ctx context.Context, examID model.ID) error {
	return s.inner.Clear(ctx, s.key(examID))
}
