package model

import (
	"time"
)

// Form is a published placement test that can be attempted.
type Form struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
}

// Applicant holds the anonymous identity entered before starting a test.
type Applicant struct {
	Name  string `json:"name" binding:"required,max=200"`
	Email string `json:"email" binding:"required,email,max=254"`
	Rank  string `json:"rank" binding:"required,max=100"`
}

// CreateSubmissionRequest is the payload for starting a new attempt.
type CreateSubmissionRequest struct {
	Form      ID     `json:"form"`
	AnonName  string `json:"anon_name"`
	AnonEmail string `json:"anon_email"`
	AnonRank  string `json:"anon_rank"`
}

// CreatedSubmission is returned when a new attempt is issued.
type CreatedSubmission struct {
	ID        ID         `json:"id"`
	Deadline  *time.Time `json:"deadline"`
	Questions []Question `json:"questions"`
}

// Submission is the client's cached view of one attempt. The server owns it.
type Submission struct {
	ID                  ID         `json:"id"`
	Deadline            *time.Time `json:"deadline"`
	FinishedAt          *time.Time `json:"finished_at"`
	AnsweredQuestionIDs []ID       `json:"answered_question_ids"`
}

// IsFinished reports whether the submission reached its terminal state.
func (s Submission) IsFinished() bool {
	return s.FinishedAt != nil
}

// AnsweredCount returns the number of distinct answered questions.
func (s Submission) AnsweredCount() int {
	seen := make(map[ID]struct{}, len(s.AnsweredQuestionIDs))
	for _, id := range s.AnsweredQuestionIDs {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// QuestionSet is the question list served for an exam and submission pair.
type QuestionSet struct {
	Questions []Question `json:"questions"`
	Deadline  *time.Time `json:"deadline"`
}

// QuestionsRequest is the payload for fetching the question set.
type QuestionsRequest struct {
	SubmissionID ID `json:"submission_id"`
}

// AnswerRequest records a single answer for the current question.
type AnswerRequest struct {
	QuestionID ID     `json:"question_id"`
	Value      string `json:"value"`
}
