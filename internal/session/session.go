package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-placement/internal/apiclient"
	"github.com/stemsi/exstem-placement/internal/clock"
	"github.com/stemsi/exstem-placement/internal/i18n"
	"github.com/stemsi/exstem-placement/internal/model"
	"github.com/stemsi/exstem-placement/internal/resume"
)

// DefaultCallTimeout bounds API calls the session makes on its own, such as
// the finish triggered by the deadline.
const DefaultCallTimeout = 30 * time.Second

// API is the part of the exam service a session talks to.
type API interface {
	CreateSubmission(ctx context.Context, examID model.ID, applicant model.Applicant) (*model.CreatedSubmission, error)
	GetSubmission(ctx context.Context, submissionID model.ID) (*model.Submission, error)
	FetchQuestions(ctx context.Context, examID, submissionID model.ID) (*model.QuestionSet, error)
	SubmitAnswer(ctx context.Context, submissionID model.ID, answer model.AnswerRequest) error
	Finish(ctx context.Context, submissionID model.ID) (json.RawMessage, error)
}

// Deps are the collaborators of a Session.
type Deps struct {
	API   API
	Store resume.Store
	// Clock drives the countdown. A clock on the system time with the
	// default interval is used when nil.
	Clock       *clock.DeadlineClock
	Log         zerolog.Logger
	CallTimeout time.Duration
}

// Session runs one attempt at one exam. All methods are safe for concurrent
// use. Network calls run without holding the lock; their results are applied
// only if the state they were issued from is still current.
type Session struct {
	examID      model.ID
	api         API
	store       resume.Store
	clock       *clock.DeadlineClock
	log         zerolog.Logger
	callTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	closed  bool
	subs    map[int]func(State)
	nextSub int
	// writeSeq numbers store writes; guarded by mu.
	writeSeq uint64

	// storeMu serializes store writes so a network round trip never holds mu.
	storeMu   sync.Mutex
	storedSeq uint64
}

// New creates a session in NotStarted. ctx bounds the session's lifetime and
// carries request-scoped values, such as the auth token, to calls the session
// makes on its own.
func New(ctx context.Context, examID model.ID, deps Deps) *Session {
	dc := deps.Clock
	if dc == nil {
		dc = clock.NewDeadlineClock(clock.System, clock.DefaultInterval)
	}
	timeout := deps.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	store := deps.Store
	if store == nil {
		store = resume.NewMemoryStore()
	}

	sctx, cancel := context.WithCancel(ctx)
	return &Session{
		examID:      examID,
		api:         deps.API,
		store:       store,
		clock:       dc,
		log:         deps.Log.With().Str("exam_id", examID.String()).Logger(),
		callTimeout: timeout,
		ctx:         sctx,
		cancel:      cancel,
		state:       NotStarted{},
		subs:        make(map[int]func(State)),
	}
}

// ExamID returns the exam this session belongs to.
func (s *Session) ExamID() model.ID {
	return s.examID
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining returns the time left on the countdown. ok is false when no
// deadline is known.
func (s *Session) Remaining() (time.Duration, bool) {
	return s.clock.Remaining()
}

// Subscribe registers fn to receive every state change and every countdown
// tick while Active. The returned func unregisters it.
func (s *Session) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) publish() {
	s.mu.Lock()
	st := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

// Init looks for a stored attempt and, if there is one, resumes it. It blocks
// until the resume attempt has resolved. Resume failures are logged and leave
// the session in NotStarted; they are never returned.
func (s *Session) Init(ctx context.Context) {
	rec, ok := s.store.Load(ctx, s.examID)

	s.mu.Lock()
	ns, idle := s.state.(NotStarted)
	if s.closed || !idle || ns.Starting {
		s.mu.Unlock()
		return
	}
	if !ok {
		// Unreadable records load as absent; drop whatever is left behind.
		w := s.clearRecord()
		s.mu.Unlock()
		s.persist(ctx, w)
		return
	}
	s.state = Resuming{SubmissionID: rec.SubmissionID}
	s.mu.Unlock()
	s.publish()

	s.log.Info().Str("submission_id", rec.SubmissionID.String()).Msg("Resuming stored attempt")
	s.resume(ctx, rec)
}

var errAlreadyFinished = errors.New("submission already finished")

func (s *Session) resume(ctx context.Context, rec model.ResumeRecord) {
	active, err := s.loadRemote(ctx, rec)

	s.mu.Lock()
	if _, still := s.state.(Resuming); !still || s.closed {
		// A fresh start took over while the lookup was in flight; its record
		// must survive.
		s.mu.Unlock()
		s.log.Debug().Str("submission_id", rec.SubmissionID.String()).Msg("Discarding stale resume result")
		return
	}
	if err != nil {
		s.state = NotStarted{}
		w := s.clearRecord()
		s.mu.Unlock()
		s.persist(ctx, w)
		if errors.Is(err, errAlreadyFinished) {
			s.log.Info().Str("submission_id", rec.SubmissionID.String()).Msg("Stored attempt already finished")
		} else {
			s.log.Warn().Err(err).Str("submission_id", rec.SubmissionID.String()).Msg("Failed to resume stored attempt")
		}
		s.publish()
		return
	}
	s.state = active
	s.mu.Unlock()

	s.log.Info().
		Str("submission_id", active.SubmissionID.String()).
		Int("index", active.Index).
		Int("total", len(active.Questions)).
		Msg("Attempt resumed")
	s.enterActive(active.Deadline)
	s.publish()
}

func (s *Session) loadRemote(ctx context.Context, rec model.ResumeRecord) (Active, error) {
	status, err := s.api.GetSubmission(ctx, rec.SubmissionID)
	if err != nil {
		return Active{}, err
	}
	if status.IsFinished() {
		return Active{}, errAlreadyFinished
	}
	subID := status.ID
	if subID.IsZero() {
		subID = rec.SubmissionID
	}

	set, err := s.api.FetchQuestions(ctx, s.examID, subID)
	if err != nil {
		return Active{}, err
	}

	deadline := set.Deadline
	if deadline == nil {
		deadline = status.Deadline
	} else if status.Deadline != nil && !status.Deadline.Equal(*deadline) {
		s.log.Warn().
			Time("status_deadline", *status.Deadline).
			Time("questions_deadline", *deadline).
			Msg("Server returned two different deadlines")
	}

	return Active{
		SubmissionID: subID,
		Questions:    set.Questions,
		Index:        min(status.AnsweredCount(), len(set.Questions)),
		Deadline:     deadline,
	}, nil
}

// Start creates a new submission for applicant. It is allowed from NotStarted
// and from Resuming, in which case the pending resume is abandoned. The
// applicant is expected to be validated by the caller.
func (s *Session) Start(ctx context.Context, applicant model.Applicant) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	switch st := s.state.(type) {
	case NotStarted:
		if st.Starting {
			s.mu.Unlock()
			return ErrBusy
		}
	case Resuming:
	default:
		s.mu.Unlock()
		return stateError(st)
	}
	s.state = NotStarted{Starting: true}
	s.mu.Unlock()
	s.publish()

	created, err := s.api.CreateSubmission(ctx, s.examID, applicant)

	s.mu.Lock()
	if ns, ok := s.state.(NotStarted); !ok || !ns.Starting || s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		notice := noticeFor(i18n.KeyStartFailed, err)
		s.state = NotStarted{Notice: notice}
		s.mu.Unlock()
		s.log.Warn().Err(err).Msg("Failed to start attempt")
		s.publish()
		return &Error{Notice: *notice, Err: err}
	}

	active := Active{
		SubmissionID: created.ID,
		Questions:    created.Questions,
		Deadline:     created.Deadline,
	}
	s.state = active
	w := s.saveRecord(active.SubmissionID)
	s.mu.Unlock()
	s.persist(ctx, w)

	s.log.Info().
		Str("submission_id", active.SubmissionID.String()).
		Int("total", len(active.Questions)).
		Msg("Attempt started")
	s.enterActive(active.Deadline)
	s.publish()
	return nil
}

// Answer submits value for the current question. Text answers are trimmed
// and must not be empty; choice answers are sent as given. A recoverable
// failure is returned as *Error and leaves the index unchanged.
func (s *Session) Answer(ctx context.Context, value string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	st, ok := s.state.(Active)
	if !ok {
		s.mu.Unlock()
		if _, idle := s.state.(NotStarted); idle {
			return ErrNotActive
		}
		return stateError(s.state)
	}
	if st.Busy {
		s.mu.Unlock()
		return ErrBusy
	}
	q, ok := st.Current()
	if !ok {
		s.mu.Unlock()
		return ErrNoQuestion
	}
	if q.IsText() {
		value = strings.TrimSpace(value)
		if value == "" {
			notice := &Notice{Key: i18n.KeyEmptyAnswer}
			st.Notice = notice
			s.state = st
			s.mu.Unlock()
			s.publish()
			return &Error{Notice: *notice, Err: ErrEmptyAnswer}
		}
	}
	st.Busy = true
	st.Notice = nil
	s.state = st
	s.mu.Unlock()
	s.publish()

	err := s.api.SubmitAnswer(ctx, st.SubmissionID, model.AnswerRequest{QuestionID: q.ID, Value: value})

	s.mu.Lock()
	cur, ok := s.state.(Active)
	if !ok || s.closed || cur.SubmissionID != st.SubmissionID || cur.Index != st.Index {
		// Expiry got there first; the finish it started stands.
		s.mu.Unlock()
		s.log.Debug().Err(err).Str("question_id", q.ID.String()).Msg("Answer resolved after session moved on")
		return nil
	}

	switch {
	case err == nil && cur.Index+1 < len(cur.Questions):
		cur.Index++
		cur.Busy = false
		s.state = cur
		w := s.saveRecord(cur.SubmissionID)
		s.mu.Unlock()
		s.persist(ctx, w)
		s.publish()
		return nil

	case err == nil || apiclient.IsTimeUp(err):
		trigger := TriggerLastAnswer
		if err != nil {
			trigger = TriggerTimeUp
			s.log.Info().Str("submission_id", cur.SubmissionID.String()).Msg("Server reported time up")
		} else {
			cur.Index++
		}
		cur.Busy = false
		s.state = Submitting{SubmissionID: cur.SubmissionID, Trigger: trigger, from: cur}
		s.mu.Unlock()
		s.clock.Stop()
		s.publish()
		return s.finish(ctx, cur.SubmissionID, trigger)

	default:
		notice := &Notice{Key: i18n.KeyAnswerFailed}
		cur.Busy = false
		cur.Notice = notice
		s.state = cur
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("question_id", q.ID.String()).Msg("Failed to save answer")
		s.publish()
		return &Error{Notice: *notice, Err: err}
	}
}

// Finish ends the attempt on request. It is allowed from Active while no
// answer is in flight.
func (s *Session) Finish(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	st, ok := s.state.(Active)
	if !ok {
		s.mu.Unlock()
		if _, idle := s.state.(NotStarted); idle {
			return ErrNotActive
		}
		return stateError(s.state)
	}
	if st.Busy {
		s.mu.Unlock()
		return ErrBusy
	}
	st.Notice = nil
	s.state = Submitting{SubmissionID: st.SubmissionID, Trigger: TriggerManual, from: st}
	s.mu.Unlock()
	s.clock.Stop()
	s.publish()

	return s.finish(ctx, st.SubmissionID, TriggerManual)
}

// Tick checks the countdown. Once the deadline has passed it moves an Active
// session to Submitting and finishes it, even with an answer in flight. Any
// other state makes it a no-op, so repeated ticks finish at most once.
func (s *Session) Tick() {
	remaining, hasDeadline := s.clock.Remaining()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	st, ok := s.state.(Active)
	if !ok {
		s.mu.Unlock()
		return
	}
	if !hasDeadline || remaining > 0 {
		s.mu.Unlock()
		s.publish()
		return
	}
	st.Busy = false
	s.state = Submitting{SubmissionID: st.SubmissionID, Trigger: TriggerExpiry, from: st}
	s.mu.Unlock()

	s.log.Info().Str("submission_id", st.SubmissionID.String()).Msg("Deadline passed, finishing attempt")
	s.clock.Stop()
	s.publish()

	ctx, cancel := context.WithTimeout(s.ctx, s.callTimeout)
	defer cancel()
	_ = s.finish(ctx, st.SubmissionID, TriggerExpiry)
}

func (s *Session) finish(ctx context.Context, subID model.ID, trigger Trigger) error {
	result, err := s.api.Finish(ctx, subID)

	s.mu.Lock()
	sub, ok := s.state.(Submitting)
	if !ok || s.closed || sub.SubmissionID != subID {
		s.mu.Unlock()
		return ErrClosed
	}

	if err == nil {
		s.state = Finished{SubmissionID: subID, Result: result}
		w := s.clearRecord()
		s.mu.Unlock()
		s.persist(ctx, w)
		s.log.Info().Str("submission_id", subID.String()).Str("trigger", string(trigger)).Msg("Attempt finished")
		s.publish()
		return nil
	}

	log := s.log.Warn().Err(err).Str("submission_id", subID.String()).Str("trigger", string(trigger))
	switch trigger {
	case TriggerExpiry, TriggerTimeUp:
		notice := &Notice{Key: i18n.KeyAutoFinishFailed, Detail: err.Error()}
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) {
			notice.Detail = apiErr.Message()
		}
		s.state = Expired{SubmissionID: subID, Err: err, Notice: notice}
		w := s.clearRecord()
		s.mu.Unlock()
		s.persist(ctx, w)
		log.Msg("Failed to finish expired attempt")
		s.publish()
		return err

	default:
		// The attempt may still be open server-side; put it back so the user
		// can retry, and let the deadline finish it otherwise.
		restored := sub.from
		notice := noticeFor(i18n.KeyFinishFailed, err)
		restored.Busy = false
		restored.Notice = notice
		s.state = restored
		var w recordWrite
		if trigger == TriggerLastAnswer {
			w = s.clearRecord()
		}
		s.mu.Unlock()
		s.persist(ctx, w)
		log.Msg("Failed to finish attempt")
		s.enterActive(restored.Deadline)
		s.publish()
		return &Error{Notice: *notice, Err: err}
	}
}

// Close stops the countdown and detaches the session. Later ticks and
// in-flight results are ignored. The stored record is kept so the attempt can
// be resumed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.subs = make(map[int]func(State))
	s.mu.Unlock()

	s.clock.Stop()
	s.cancel()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) enterActive(deadline *time.Time) {
	s.clock.Set(deadline)
	s.clock.Start(func(time.Duration, bool) { s.Tick() })
}

// recordWrite is a pending store write. Its sequence number is taken under
// s.mu, so it follows the order of state transitions. The zero value is a
// no-op.
type recordWrite struct {
	seq uint64
	rec *model.ResumeRecord // nil clears
}

// saveRecord and clearRecord must be called with s.mu held. The returned
// write is applied by persist after the lock is released.
func (s *Session) saveRecord(subID model.ID) recordWrite {
	s.writeSeq++
	return recordWrite{seq: s.writeSeq, rec: &model.ResumeRecord{ExamID: s.examID, SubmissionID: subID}}
}

func (s *Session) clearRecord() recordWrite {
	s.writeSeq++
	return recordWrite{seq: s.writeSeq}
}

// persist applies w unless a later write has already reached the store.
func (s *Session) persist(ctx context.Context, w recordWrite) {
	if w.seq == 0 {
		return
	}
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	if w.seq <= s.storedSeq {
		return
	}
	s.storedSeq = w.seq

	ctx = context.WithoutCancel(ctx)
	if w.rec == nil {
		if err := s.store.Clear(ctx, s.examID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to clear resume record")
		}
		return
	}
	if err := s.store.Save(ctx, s.examID, *w.rec); err != nil {
		s.log.Warn().Err(err).Msg("Failed to save resume record")
	}
}
