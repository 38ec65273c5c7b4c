// Package console runs a placement test interactively on a terminal.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-placement/internal/clock"
	"github.com/stemsi/exstem-placement/internal/i18n"
	"github.com/stemsi/exstem-placement/internal/model"
	"github.com/stemsi/exstem-placement/internal/resume"
	"github.com/stemsi/exstem-placement/internal/session"
	"github.com/stemsi/exstem-placement/internal/validator"
)

// Backend is the exam service as the console uses it.
type Backend interface {
	session.API
	ListForms(ctx context.Context) ([]model.Form, error)
}

// Config wires a console run.
type Config struct {
	Backend    Backend
	Store      resume.Store
	Translator *i18n.Translator
	Lang       i18n.Lang
	// ExamID skips the form menu when set.
	ExamID       model.ID
	TickInterval time.Duration
	Log          zerolog.Logger
}

// errInputClosed ends a run when stdin reaches EOF. The attempt stays
// resumable.
var errInputClosed = errors.New("input closed")

type runner struct {
	cfg   Config
	out   io.Writer
	lines <-chan string
	tr    *i18n.Translator
	lang  i18n.Lang
}

// Run drives one attempt: pick a form, resume or start, answer until the
// attempt ends. Closing the input leaves the attempt resumable and returns nil.
func Run(ctx context.Context, in io.Reader, out io.Writer, cfg Config) error {
	if cfg.Backend == nil {
		return errors.New("backend is required")
	}
	if cfg.Translator == nil {
		cfg.Translator = i18n.MustNew()
	}
	if cfg.Store == nil {
		cfg.Store = resume.NewMemoryStore()
	}

	r := &runner{
		cfg:   cfg,
		out:   out,
		lines: readLines(ctx, in),
		tr:    cfg.Translator,
		lang:  cfg.Lang,
	}

	err := r.run(ctx)
	if errors.Is(err, errInputClosed) {
		fmt.Fprintln(out)
		return nil
	}
	return err
}

func (r *runner) run(ctx context.Context) error {
	fmt.Fprintf(r.out, "%s\n\n", r.t(i18n.KeyTitle))

	examID := r.cfg.ExamID
	if examID.IsZero() {
		form, ok, err := r.chooseForm(ctx)
		if err != nil || !ok {
			return err
		}
		examID = form.ID
	}

	sess := session.New(ctx, examID, session.Deps{
		API:   r.cfg.Backend,
		Store: r.cfg.Store,
		Clock: clock.NewDeadlineClock(clock.System, r.cfg.TickInterval),
		Log:   r.cfg.Log,
	})
	defer sess.Close()

	var once sync.Once
	ended := make(chan struct{})
	changed := make(chan struct{}, 1)
	unsubscribe := sess.Subscribe(func(st session.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
		if session.Terminal(st) {
			once.Do(func() { close(ended) })
		}
	})
	defer unsubscribe()

	if _, ok := r.cfg.Store.Load(ctx, examID); ok {
		fmt.Fprintln(r.out, r.t(i18n.KeyResuming))
	}
	sess.Init(ctx)

	if _, idle := sess.State().(session.NotStarted); idle {
		if err := r.start(ctx, sess); err != nil {
			return err
		}
	}

	for {
		switch st := sess.State().(type) {
		case session.Active:
			if err := r.step(ctx, sess, st, ended); err != nil {
				return err
			}
		case session.Submitting:
			select {
			case <-changed:
			case <-ctx.Done():
				return ctx.Err()
			}
		case session.Finished:
			r.printFinished(st)
			return nil
		case session.Expired:
			fmt.Fprintln(r.out, r.t(i18n.KeyExpired))
			if st.Notice != nil {
				fmt.Fprintln(r.out, st.Notice.Text(r.tr, r.lang))
			}
			return nil
		default:
			return fmt.Errorf("unexpected session phase %s", st.Phase())
		}
	}
}

func (r *runner) chooseForm(ctx context.Context) (model.Form, bool, error) {
	forms, err := r.cfg.Backend.ListForms(ctx)
	if err != nil {
		fmt.Fprintf(r.out, "%s: %v\n", r.t(i18n.KeyFormsFailed), err)
		return model.Form{}, false, err
	}
	if len(forms) == 0 {
		fmt.Fprintln(r.out, r.t(i18n.KeyNoForms))
		return model.Form{}, false, nil
	}

	for i, f := range forms {
		title := f.Title
		if title == "" {
			title = r.t(i18n.KeyUntitledForm)
		}
		fmt.Fprintf(r.out, "%d. %s\n", i+1, title)
	}

	n, err := r.promptNumber(ctx, r.t(i18n.KeyChooseForm, strconv.Itoa(len(forms))), len(forms), nil)
	if err != nil {
		return model.Form{}, false, err
	}
	return forms[n-1], true, nil
}

func (r *runner) start(ctx context.Context, sess *session.Session) error {
	fmt.Fprintf(r.out, "\n%s\n", r.t(i18n.KeyStartTitle))
	for {
		var applicant model.Applicant
		var err error
		if applicant.Name, err = r.prompt(ctx, r.t(i18n.KeyName)+": ", nil); err != nil {
			return err
		}
		if applicant.Email, err = r.prompt(ctx, r.t(i18n.KeyEmail)+": ", nil); err != nil {
			return err
		}
		if applicant.Rank, err = r.prompt(ctx, r.t(i18n.KeyRank)+": ", nil); err != nil {
			return err
		}
		applicant = trimApplicant(applicant)

		if fields := validator.Struct(applicant); fields != nil {
			fmt.Fprintln(r.out, r.t(i18n.KeyInvalidApplicant))
			for _, line := range fieldLines(fields) {
				fmt.Fprintf(r.out, "  %s\n", line)
			}
			continue
		}

		fmt.Fprintln(r.out, r.t(i18n.KeyStarting))
		err = sess.Start(ctx, applicant)
		if err == nil {
			return nil
		}
		var sessErr *session.Error
		if errors.As(err, &sessErr) {
			fmt.Fprintln(r.out, sessErr.Notice.Text(r.tr, r.lang))
			continue
		}
		return err
	}
}

// step shows the current question and submits one answer.
func (r *runner) step(ctx context.Context, sess *session.Session, st session.Active, ended <-chan struct{}) error {
	if st.Notice != nil {
		fmt.Fprintln(r.out, st.Notice.Text(r.tr, r.lang))
	}

	view := sess.View(r.tr, r.lang)
	q, ok := st.Current()
	if !ok {
		if len(st.Questions) == 0 {
			fmt.Fprintln(r.out, r.t(i18n.KeyNoQuestions))
		} else {
			fmt.Fprintln(r.out, r.t(i18n.KeyAllAnswered))
		}
		if _, err := r.prompt(ctx, r.t(i18n.KeyPressFinish), ended); err != nil {
			return r.endedOr(err)
		}
		// Failures land on the state as a notice.
		_ = sess.Finish(ctx)
		return nil
	}

	fmt.Fprintln(r.out)
	header := view.ProgressText
	if view.Countdown != "" {
		header += "  " + r.t(i18n.KeyTimeLeft, view.Countdown)
	}
	fmt.Fprintln(r.out, header)
	fmt.Fprintln(r.out, q.Prompt)

	var value string
	if q.IsText() {
		line, err := r.prompt(ctx, r.t(i18n.KeyTypeAnswer)+" ", ended)
		if err != nil {
			return r.endedOr(err)
		}
		value = line
	} else {
		for i, c := range q.Choices {
			fmt.Fprintf(r.out, "  %d) %s\n", i+1, c.Label)
		}
		n, err := r.promptNumber(ctx, r.t(i18n.KeyChooseOption, strconv.Itoa(len(q.Choices))), len(q.Choices), ended)
		if err != nil {
			return r.endedOr(err)
		}
		choice, _ := q.ChoiceAt(n)
		value = choice.Value
	}

	fmt.Fprintln(r.out, r.t(i18n.KeySaving))
	if err := sess.Answer(ctx, value); errors.Is(err, session.ErrClosed) {
		return err
	}
	return nil
}

var errEnded = errors.New("attempt ended while waiting for input")

func (r *runner) endedOr(err error) error {
	if errors.Is(err, errEnded) {
		fmt.Fprintln(r.out)
		return nil
	}
	return err
}

func (r *runner) printFinished(st session.Finished) {
	fmt.Fprintf(r.out, "\n%s\n%s\n", r.t(i18n.KeyCompleted), r.t(i18n.KeyThankYou))
	if summary := resultSummary(st.Result); summary != "" {
		fmt.Fprintln(r.out, summary)
	}
}

// prompt reads one line. It returns errEnded if ended closes first.
func (r *runner) prompt(ctx context.Context, label string, ended <-chan struct{}) (string, error) {
	fmt.Fprint(r.out, label)
	select {
	case line, ok := <-r.lines:
		if !ok {
			return "", errInputClosed
		}
		return line, nil
	case <-ended:
		return "", errEnded
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *runner) promptNumber(ctx context.Context, label string, max int, ended <-chan struct{}) (int, error) {
	for {
		line, err := r.prompt(ctx, label+": ", ended)
		if err != nil {
			return 0, err
		}
		if n, ok := parseChoice(line, max); ok {
			return n, nil
		}
		fmt.Fprintln(r.out, r.t(i18n.KeyBadChoice, strconv.Itoa(max)))
	}
}

func (r *runner) t(key i18n.Key, params ...string) string {
	return r.tr.T(r.lang, key, params...)
}

// readLines feeds lines from in until EOF or ctx is done.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimRight(scanner.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func parseChoice(line string, max int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > max {
		return 0, false
	}
	return n, true
}

func trimApplicant(a model.Applicant) model.Applicant {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	a.Rank = strings.TrimSpace(a.Rank)
	return a
}

func fieldLines(fields map[string]string) []string {
	order := []string{"name", "email", "rank"}
	lines := make([]string, 0, len(fields))
	for _, f := range order {
		if msg, ok := fields[f]; ok {
			lines = append(lines, msg)
		}
	}
	return lines
}

// resultSummary renders the finish payload as compact JSON, or "" when the
// server sent nothing worth showing.
func resultSummary(result json.RawMessage) string {
	trimmed := strings.TrimSpace(string(result))
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		return ""
	}
	var v any
	if err := json.Unmarshal(result, &v); err != nil {
		return trimmed
	}
	compact, err := json.Marshal(v)
	if err != nil {
		return trimmed
	}
	return string(compact)
}
