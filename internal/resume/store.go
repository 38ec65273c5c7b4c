// Package resume persists just enough on the client device to resume an
// in-progress submission after a restart. Records are advisory: every
// consumer verifies them against the server before trusting them.
package resume

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stemsi/exstem-placement/internal/config"
	"github.com/stemsi/exstem-placement/internal/model"
)

// Store maps an exam identifier to at most one ResumeRecord.
//
// Load never fails: a missing, corrupt or unreadable record is reported as
// absent. Save and Clear return errors for logging only; callers must not
// treat them as fatal.
type Store interface {
	Save(ctx context.Context, examID model.ID, rec model.ResumeRecord) error
	Load(ctx context.Context, examID model.ID) (model.ResumeRecord, bool)
	Clear(ctx context.Context, examID model.ID) error
}

func recordKey(examID model.ID) string {
	return config.CacheKey.ResumeKey(examID.String())
}

func encodeRecord(rec model.ResumeRecord) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(examID model.ID, data []byte) (model.ResumeRecord, bool) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return model.ResumeRecord{}, false
	}

	var rec model.ResumeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.ResumeRecord{}, false
	}
	rec.ExamID = examID
	if !rec.Valid() {
		return model.ResumeRecord{}, false
	}
	return rec, true
}
