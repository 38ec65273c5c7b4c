// Package apiclient talks to the exam backend that issues submissions, serves
// questions, records answers and finalizes scoring.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-placement/internal/model"
)

const maxErrorBody = 1 << 20

// Client calls the exam backend. Every call is a single request with no
// implicit retry.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	defaultToken string
	log          zerolog.Logger
}

// NewClient creates a Client. defaultToken is used when the call context
// carries no token of its own (see WithToken).
func NewClient(baseURL string, httpClient *http.Client, defaultToken string, log zerolog.Logger) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8000/api"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL:      baseURL,
		httpClient:   httpClient,
		defaultToken: strings.TrimSpace(defaultToken),
		log:          log.With().Str("component", "api_client").Logger(),
	}
}

// ListForms returns the published placement forms.
func (c *Client) ListForms(ctx context.Context) ([]model.Form, error) {
	var forms []model.Form
	if err := c.doJSON(ctx, http.MethodGet, "/eng/forms/", nil, &forms); err != nil {
		return nil, err
	}
	if forms == nil {
		forms = []model.Form{}
	}
	return forms, nil
}

// CreateSubmission starts a new attempt at examID for the applicant.
func (c *Client) CreateSubmission(ctx context.Context, examID model.ID, applicant model.Applicant) (*model.CreatedSubmission, error) {
	req := model.CreateSubmissionRequest{
		Form:      examID,
		AnonName:  applicant.Name,
		AnonEmail: applicant.Email,
		AnonRank:  applicant.Rank,
	}

	var created model.CreatedSubmission
	if err := c.doJSON(ctx, http.MethodPost, "/eng/submissions/", req, &created); err != nil {
		return nil, err
	}
	if created.ID.IsZero() {
		return nil, fmt.Errorf("create submission: response has no id")
	}
	return &created, nil
}

// GetSubmission returns the server's view of a submission.
func (c *Client) GetSubmission(ctx context.Context, submissionID model.ID) (*model.Submission, error) {
	var sub model.Submission
	if err := c.doJSON(ctx, http.MethodGet, submissionPath(submissionID, ""), nil, &sub); err != nil {
		return nil, err
	}
	if sub.ID.IsZero() {
		sub.ID = submissionID
	}
	return &sub, nil
}

// FetchQuestions returns the question set of examID served to submissionID.
func (c *Client) FetchQuestions(ctx context.Context, examID, submissionID model.ID) (*model.QuestionSet, error) {
	path := "/eng/forms/" + url.PathEscape(examID.String()) + "/questions/"

	var set model.QuestionSet
	if err := c.doJSON(ctx, http.MethodPost, path, model.QuestionsRequest{SubmissionID: submissionID}, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// SubmitAnswer records one answer. A rejected answer after the deadline is
// reported as an *APIError for which IsTimeUp is true.
func (c *Client) SubmitAnswer(ctx context.Context, submissionID model.ID, answer model.AnswerRequest) error {
	return c.doJSON(ctx, http.MethodPost, submissionPath(submissionID, "answer/"), answer, nil)
}

// Finish finalizes a submission and returns the opaque result payload.
// The backend treats repeated calls as idempotent.
func (c *Client) Finish(ctx context.Context, submissionID model.ID) (json.RawMessage, error) {
	var result json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, submissionPath(submissionID, "finish/"), nil, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}
	return result, nil
}

func submissionPath(id model.ID, action string) string {
	return "/eng/submissions/" + url.PathEscape(id.String()) + "/" + action
}

func (c *Client) token(ctx context.Context) string {
	if token := TokenFrom(ctx); token != "" {
		return token
	}
	return c.defaultToken
}

func (c *Client) doJSON(ctx context.Context, method, path string, requestBody any, responseBody any) error {
	fullURL := c.baseURL + path

	var body io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := RequestIDFrom(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	req.Header.Set("X-Request-ID", reqID)
	if token := c.token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).
			Str("method", method).
			Str("path", path).
			Str("request_id", reqID).
			Msg("Request failed")
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Msg("Request completed")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return NewAPIError(resp.StatusCode, raw)
	}

	if responseBody == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if raw, ok := responseBody.(*json.RawMessage); ok {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		*raw = bytes.TrimSpace(data)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(responseBody); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
