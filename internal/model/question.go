package model

// QuestionType enumerates how a question is answered.
type QuestionType string

const (
	QuestionTypeChoice QuestionType = "choice"
	QuestionTypeText   QuestionType = "text"
)

// Choice is one selectable option of a choice question.
type Choice struct {
	ID    ID     `json:"id"`
	Label string `json:"label_en"`
	Value string `json:"value"`
}

// Question represents a single exam item as served for a submission.
type Question struct {
	ID      ID           `json:"id"`
	Type    QuestionType `json:"qtype"`
	Prompt  string       `json:"text_en"`
	Choices []Choice     `json:"choices,omitempty"`
}

// IsText reports whether the question takes a free-text answer.
// Anything that is not explicitly "text" is rendered as a choice question.
func (q Question) IsText() bool {
	return q.Type == QuestionTypeText
}

// ChoiceAt returns the 1-based n-th choice.
func (q Question) ChoiceAt(n int) (Choice, bool) {
	if n < 1 || n > len(q.Choices) {
		return Choice{}, false
	}
	return q.Choices[n-1], true
}
