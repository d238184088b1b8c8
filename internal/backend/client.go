// Package backend talks to the document service that executes ingestion jobs
// and serves processed documents.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/models"
)

const DefaultTimeout = 30 * time.Second

type Client struct {
	baseURL  *url.URL
	http     *http.Client
	log      logger.Logger
	validate *validator.Validate
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported backend url scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL:  u,
		http:     &http.Client{Timeout: DefaultTimeout},
		log:      logger.NewNoOpLogger(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("backend")
	return c, nil
}

// Submit uploads a file for ingestion and returns the job handle.
func (c *Client) Submit(ctx context.Context, sub models.Submission) (*models.JobHandle, error) {
	if err := c.validate.Struct(sub); err != nil {
		return nil, submissionValidationError(sub.FileName, err)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", sub.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(sub.Data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.WriteField("title", sub.Title); err != nil {
		return nil, fmt.Errorf("failed to write title field: %w", err)
	}
	if sub.CollectionID != "" {
		if err := mw.WriteField("collection_id", sub.CollectionID); err != nil {
			return nil, fmt.Errorf("failed to write collection field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	var resp struct {
		TaskID     models.ID `json:"task_id"`
		DocumentID models.ID `json:"document_id"`
		Error      string    `json:"error"`
	}
	err = c.do(ctx, http.MethodPost, "/api/documents/upload/", mw.FormDataContentType(), body, &resp)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 {
			return nil, &SubmissionError{FileName: sub.FileName, Reason: se.Message, Err: err}
		}
		return nil, fmt.Errorf("failed to submit %s: %w", sub.FileName, err)
	}
	if resp.TaskID == "" {
		reason := resp.Error
		if reason == "" {
			reason = "no task id in response"
		}
		return nil, &SubmissionError{FileName: sub.FileName, Reason: reason}
	}

	c.log.Info("Submitted %s as job %s", sub.FileName, resp.TaskID)
	return &models.JobHandle{JobID: resp.TaskID, DocumentID: resp.DocumentID, FileName: sub.FileName}, nil
}

// JobStatus queries the current status of an ingestion job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*models.JobStatusReport, error) {
	var report models.JobStatusReport
	if err := c.do(ctx, http.MethodGet, "/api/documents/status/"+url.PathEscape(jobID)+"/", "", nil, &report); err != nil {
		return nil, fmt.Errorf("failed to query job %s: %w", jobID, err)
	}
	if report.Status == "" {
		return nil, fmt.Errorf("failed to query job %s: %w: empty status", jobID, ErrUnavailable)
	}
	return &report, nil
}

// FetchDocument returns a fresh copy of a processed document.
func (c *Client) FetchDocument(ctx context.Context, docID string) (*models.Document, error) {
	var resp struct {
		Document *models.Document `json:"document"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/documents/"+url.PathEscape(docID)+"/", "", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", docID, err)
	}
	if resp.Document == nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", docID, ErrNotFound)
	}
	if resp.Document.ID == "" {
		resp.Document.ID = models.ID(docID)
	}
	return resp.Document, nil
}

// RemoveDocument deletes a processed document.
func (c *Client) RemoveDocument(ctx context.Context, docID string) error {
	return c.remove(ctx, map[string]string{"document_id": docID})
}

// RemoveJob deletes a job that has not produced a document yet.
func (c *Client) RemoveJob(ctx context.Context, jobID string) error {
	return c.remove(ctx, map[string]string{"task_id": jobID})
}

func (c *Client) remove(ctx context.Context, payload map[string]string) error {
	if err := c.postJSON(ctx, "/api/documents/remove/", payload, nil); err != nil {
		return fmt.Errorf("failed to remove %v: %w", payload, err)
	}
	return nil
}

// GenerateOutline asks the backend for the mind-map artifact of a document.
func (c *Client) GenerateOutline(ctx context.Context, docID, fullText string) (*models.Outline, error) {
	var resp struct {
		MindMap *models.Outline `json:"mind_map"`
	}
	path := "/api/documents/" + url.PathEscape(docID) + "/mindmap/"
	if err := c.postJSON(ctx, path, map[string]string{"text": fullText}, &resp); err != nil {
		return nil, fmt.Errorf("failed to generate outline for %s: %w", docID, err)
	}
	if resp.MindMap == nil {
		return nil, fmt.Errorf("failed to generate outline for %s: empty response", docID)
	}
	return resp.MindMap, nil
}

// Chat sends a prompt to the backend's conversational endpoint.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/gemini_chat", map[string]string{"prompt": prompt}, &resp); err != nil {
		return "", fmt.Errorf("failed to chat: %w", err)
	}
	return resp.Response, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	var resp struct {
		Projects []models.Project `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/projects/", "", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return resp.Projects, nil
}

func (c *Client) ListCollections(ctx context.Context, projectID string) ([]models.Collection, error) {
	var resp struct {
		Collections []models.Collection `json:"collections"`
	}
	path := "/api/projects/" + url.PathEscape(projectID) + "/collections/"
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list collections of %s: %w", projectID, err)
	}
	return resp.Collections, nil
}

// GetCollection lists the documents and in-flight jobs of one collection.
func (c *Client) GetCollection(ctx context.Context, projectID, collectionID string) (*models.Collection, error) {
	var resp struct {
		Collection *models.Collection `json:"collection"`
	}
	path := "/api/projects/" + url.PathEscape(projectID) + "/collections/" + url.PathEscape(collectionID) + "/"
	if err := c.do(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", collectionID, err)
	}
	if resp.Collection == nil {
		return nil, fmt.Errorf("failed to get collection %s: %w", collectionID, ErrNotFound)
	}
	return resp.Collection, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(data), out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	c.log.Debug("%s %s (%s)", method, path, requestID)
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.log.Warn("%s %s denied with %d (%s)", method, path, resp.StatusCode, requestID)
		return ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

func submissionValidationError(fileName string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &SubmissionError{FileName: fileName, Reason: err.Error(), Err: err}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields[fe.Field()] = "is required"
		case "max":
			fields[fe.Field()] = "must be at most " + fe.Param() + " characters"
		case "min":
			fields[fe.Field()] = "must not be empty"
		default:
			fields[fe.Field()] = "failed " + fe.Tag()
		}
	}
	return &SubmissionError{FileName: fileName, Reason: "invalid submission", Fields: fields, Err: err}
}
