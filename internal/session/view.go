package session

import (
	"encoding/json"
	"strconv"

	"github.com/stemsi/exstem-placement/internal/clock"
	"github.com/stemsi/exstem-placement/internal/i18n"
	"github.com/stemsi/exstem-placement/internal/model"
)

// View is a rendering of a session for one language.
type View struct {
	ExamID       model.ID        `json:"exam_id"`
	Phase        Phase           `json:"phase"`
	SubmissionID model.ID        `json:"submission_id,omitempty"`
	Starting     bool            `json:"starting,omitempty"`
	Busy         bool            `json:"busy,omitempty"`
	Index        int             `json:"index"`
	Total        int             `json:"total"`
	Progress     float64         `json:"progress"`
	ProgressText string          `json:"progress_text,omitempty"`
	Question     *model.Question `json:"question,omitempty"`
	RemainingMS  *int64          `json:"remaining_ms,omitempty"`
	Countdown    string          `json:"countdown,omitempty"`
	Urgency      clock.Urgency   `json:"urgency,omitempty"`
	Notice       string          `json:"notice,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}

// View renders the current state.
func (s *Session) View(tr *i18n.Translator, lang i18n.Lang) View {
	st := s.State()
	v := Render(st, tr, lang)
	v.ExamID = s.examID

	if st.Phase() == PhaseActive || st.Phase() == PhaseSubmitting {
		if remaining, ok := s.clock.Remaining(); ok {
			ms := max(remaining.Milliseconds(), 0)
			v.RemainingMS = &ms
			v.Countdown = clock.FormatRemaining(remaining)
			v.Urgency = clock.UrgencyOf(remaining)
		}
	}
	return v
}

// Render renders st without countdown information.
func Render(st State, tr *i18n.Translator, lang i18n.Lang) View {
	v := View{Phase: st.Phase()}

	switch st := st.(type) {
	case NotStarted:
		v.Starting = st.Starting
		v.Notice = noticeText(st.Notice, tr, lang)
	case Resuming:
		v.SubmissionID = st.SubmissionID
	case Active:
		v.SubmissionID = st.SubmissionID
		v.Busy = st.Busy
		fillProgress(&v, st, tr, lang)
		if q, ok := st.Current(); ok {
			v.Question = &q
		}
		v.Notice = noticeText(st.Notice, tr, lang)
	case Submitting:
		v.SubmissionID = st.SubmissionID
		v.Busy = true
		fillProgress(&v, st.from, tr, lang)
	case Finished:
		v.SubmissionID = st.SubmissionID
		v.Result = st.Result
	case Expired:
		v.SubmissionID = st.SubmissionID
		v.Notice = noticeText(st.Notice, tr, lang)
	}
	return v
}

func fillProgress(v *View, st Active, tr *i18n.Translator, lang i18n.Lang) {
	v.Index = st.Index
	v.Total = len(st.Questions)
	v.Progress = Progress(st.Index, len(st.Questions))
	if v.Total > 0 {
		shown := min(st.Index+1, v.Total)
		v.ProgressText = tr.T(lang, i18n.KeyProgress, strconv.Itoa(shown), strconv.Itoa(v.Total))
	}
}

// Progress returns answered/total as a percentage in [0, 100].
func Progress(answered, total int) float64 {
	if total <= 0 {
		return 0
	}
	answered = min(max(answered, 0), total)
	return float64(answered) * 100 / float64(total)
}

func noticeText(n *Notice, tr *i18n.Translator, lang i18n.Lang) string {
	if n == nil {
		return ""
	}
	return n.Text(tr, lang)
}
