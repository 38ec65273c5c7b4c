package model

// ResumeRecord is the only state persisted on the client device. It is
// advisory: the server must confirm the submission before it is trusted.
type ResumeRecord struct {
	ExamID       ID `json:"-"`
	SubmissionID ID `json:"subId"`
}

// Valid reports whether the record points at a submission.
func (r ResumeRecord) Valid() bool {
	return !r.SubmissionID.IsZero()
}
