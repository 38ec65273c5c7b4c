package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-placement/internal/apiclient"
	"github.com/stemsi/exstem-placement/internal/clock"
	"github.com/stemsi/exstem-placement/internal/model"
	"github.com/stemsi/exstem-placement/internal/resume"
	"github.com/stemsi/exstem-placement/internal/session"
)

// DefaultIdleTTL is how long an untouched session is kept in memory. Its
// resume record outlives it, so a later request resumes the attempt.
const DefaultIdleTTL = 2 * time.Hour

// resumeTimeout bounds the server lookup made when a session is first opened.
const resumeTimeout = 15 * time.Second

// Backend is the exam service as the runner uses it.
type Backend interface {
	session.API
	ListForms(ctx context.Context) ([]model.Form, error)
}

// RunnerOptions tune a RunnerService.
type RunnerOptions struct {
	TickInterval time.Duration
	IdleTTL      time.Duration
	CallTimeout  time.Duration
}

// RunnerService keeps one live session per owner and exam.
type RunnerService struct {
	backend Backend
	store   resume.Store
	opts    RunnerOptions
	log     zerolog.Logger
	now     func() time.Time

	// baseCtx outlives requests; sessions finish on deadline after the
	// request that opened them is gone.
	baseCtx context.Context

	mu       sync.Mutex
	sessions map[string]*runnerEntry
}

type runnerEntry struct {
	sess     *session.Session
	ready    chan struct{}
	lastSeen time.Time
}

// NewRunnerService creates a RunnerService. ctx bounds every session it opens.
func NewRunnerService(ctx context.Context, backend Backend, store resume.Store, opts RunnerOptions, log zerolog.Logger) *RunnerService {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	return &RunnerService{
		backend:  backend,
		store:    store,
		opts:     opts,
		log:      log.With().Str("component", "runner_service").Logger(),
		now:      time.Now,
		baseCtx:  ctx,
		sessions: make(map[string]*runnerEntry),
	}
}

// ListForms returns the forms an applicant can choose from.
func (s *RunnerService) ListForms(ctx context.Context) ([]model.Form, error) {
	forms, err := s.backend.ListForms(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list forms")
		return nil, err
	}
	return forms, nil
}

// Session returns the owner's session for examID, opening it (and resuming a
// stored attempt) on first use.
func (s *RunnerService) Session(ctx context.Context, owner string, examID model.ID) (*session.Session, error) {
	key := entryKey(owner, examID)

	s.mu.Lock()
	entry, ok := s.sessions[key]
	if ok {
		entry.lastSeen = s.now()
		s.mu.Unlock()
		select {
		case <-entry.ready:
			return entry.sess, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	entry = s.open(ctx, owner, examID)
	s.sessions[key] = entry
	s.mu.Unlock()

	initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resumeTimeout)
	defer cancel()
	entry.sess.Init(initCtx)
	close(entry.ready)

	return entry.sess, nil
}

// Start begins a new attempt. A session that already ended is replaced with a
// fresh one first, so an applicant can take the test again.
func (s *RunnerService) Start(ctx context.Context, owner string, examID model.ID, applicant model.Applicant) (*session.Session, error) {
	sess, err := s.Session(ctx, owner, examID)
	if err != nil {
		return nil, err
	}

	if session.Terminal(sess.State()) || sess.Closed() {
		sess = s.replace(ctx, owner, examID, sess)
	}

	return sess, sess.Start(ctx, applicant)
}

func (s *RunnerService) replace(ctx context.Context, owner string, examID model.ID, old *session.Session) *session.Session {
	key := entryKey(owner, examID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[key]; ok && cur.sess != old {
		// Someone else already replaced it.
		return cur.sess
	}
	old.Close()

	entry := s.open(ctx, owner, examID)
	close(entry.ready)
	s.sessions[key] = entry
	return entry.sess
}

// open builds an entry; callers hold s.mu.
func (s *RunnerService) open(ctx context.Context, owner string, examID model.ID) *runnerEntry {
	sessCtx := apiclient.WithToken(s.baseCtx, apiclient.TokenFrom(ctx))
	sess := session.New(sessCtx, examID, session.Deps{
		API:         s.backend,
		Store:       resume.Scoped(s.store, owner),
		Clock:       clock.NewDeadlineClock(clock.System, s.opts.TickInterval),
		Log:         s.log.With().Str("owner", owner).Logger(),
		CallTimeout: s.opts.CallTimeout,
	})
	return &runnerEntry{sess: sess, ready: make(chan struct{}), lastSeen: s.now()}
}

// Len returns the number of live sessions.
func (s *RunnerService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep closes sessions nobody has touched for IdleTTL.
func (s *RunnerService) Sweep() int {
	cutoff := s.now().Add(-s.opts.IdleTTL)

	s.mu.Lock()
	var stale []*session.Session
	for key, entry := range s.sessions {
		if entry.lastSeen.Before(cutoff) {
			stale = append(stale, entry.sess)
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.Close()
	}
	if len(stale) > 0 {
		s.log.Info().Int("count", len(stale)).Msg("Closed idle sessions")
	}
	return len(stale)
}

// Run sweeps idle sessions until ctx is done, then closes the rest.
func (s *RunnerService) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.CloseAll()
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// CloseAll closes every live session. Resume records are kept.
func (s *RunnerService) CloseAll() {
	s.mu.Lock()
	entries := s.sessions
	s.sessions = make(map[string]*runnerEntry)
	s.mu.Unlock()

	for _, entry := range entries {
		entry.sess.Close()
	}
}

func entryKey(owner string, examID model.ID) string {
	return owner + "/" + examID.String()
}
