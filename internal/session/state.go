package session

import (
	"encoding/json"
	"time"

	"github.com/stemsi/exstem-placement/internal/model"
)

// Phase names the variant a State holds.
type Phase string

const (
	PhaseNotStarted Phase = "NOT_STARTED"
	PhaseResuming   Phase = "RESUMING"
	PhaseActive     Phase = "ACTIVE"
	PhaseSubmitting Phase = "SUBMITTING"
	PhaseFinished   Phase = "FINISHED"
	PhaseExpired    Phase = "EXPIRED"
)

// State is the session's tagged union. Exactly one variant holds at a time;
// only the types in this file implement it.
type State interface {
	Phase() Phase
	isState()
}

// NotStarted waits for an explicit start.
type NotStarted struct {
	// Starting is set while create-submission is in flight.
	Starting bool
	Notice   *Notice
}

// Resuming is verifying a stored ResumeRecord against the server.
type Resuming struct {
	SubmissionID model.ID
}

// Active is an attempt in progress.
type Active struct {
	SubmissionID model.ID
	Questions    []model.Question
	// Index is the next question to answer; Index == len(Questions) means
	// everything is answered and only finishing remains.
	Index    int
	Deadline *time.Time
	// Busy is set while an answer for Questions[Index] is in flight.
	Busy   bool
	Notice *Notice
}

// Current returns the question awaiting an answer.
func (a Active) Current() (model.Question, bool) {
	if a.Index < 0 || a.Index >= len(a.Questions) {
		return model.Question{}, false
	}
	return a.Questions[a.Index], true
}

// Done reports whether every question has been answered.
func (a Active) Done() bool {
	return a.Index >= len(a.Questions)
}

// Submitting is waiting for the finish call to return.
type Submitting struct {
	SubmissionID model.ID
	Trigger      Trigger

	from Active
}

// Finished is terminal: the server accepted the finish.
type Finished struct {
	SubmissionID model.ID
	Result       json.RawMessage
}

// Expired is terminal: the deadline passed and finishing failed.
type Expired struct {
	SubmissionID model.ID
	Err          error
	Notice       *Notice
}

func (NotStarted) Phase() Phase { return PhaseNotStarted }
func (Resuming) Phase() Phase   { return PhaseResuming }
func (Active) Phase() Phase     { return PhaseActive }
func (Submitting) Phase() Phase { return PhaseSubmitting }
func (Finished) Phase() Phase   { return PhaseFinished }
func (Expired) Phase() Phase    { return PhaseExpired }

func (NotStarted) isState() {}
func (Resuming) isState()   {}
func (Active) isState()     {}
func (Submitting) isState() {}
func (Finished) isState()   {}
func (Expired) isState()    {}

// Terminal reports whether no transition leaves st.
func Terminal(st State) bool {
	switch st.(type) {
	case Finished, Expired:
		return true
	}
	return false
}

// Trigger records what caused a finish call.
type Trigger string

const (
	TriggerLastAnswer Trigger = "last_answer"
	TriggerTimeUp     Trigger = "time_up"
	TriggerExpiry     Trigger = "expiry"
	TriggerManual     Trigger = "manual"
)
