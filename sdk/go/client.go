package caselinesdk

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
)

// Client is a minimal Caseline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Case represents the API case model (partial).
type Case struct {
	ID                  string `json:"id"`
	CaseNumber          string `json:"case_number"`
	CaseType            string `json:"case_type"`
	Summary             string `json:"summary"`
	CurrentStage        string `json:"current_stage"`
	OpenedAt            string `json:"opened_at"`
	InitialDeadlineDays *int   `json:"initial_deadline_days,omitempty"`
	ExtensionDays       int    `json:"extension_days"`
}

// Entry is one progress record on a case.
type Entry struct {
	ID         int64      `json:"id"`
	CaseID     string     `json:"case_id"`
	StageName  string     `json:"stage_name"`
	Note       string     `json:"note,omitempty"`
	OccurredAt string     `json:"occurred_at"`
	Documents  []Document `json:"documents,omitempty"`
}

// Document references one stored source PDF.
type Document struct {
	ID           int64  `json:"id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name,omitempty"`
	UploadedAt   string `json:"uploaded_at"`
}

// Attachment is an inbound PDF for a stage advance; Content is sent base64.
type Attachment struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// CaseDetail is a case with its full history.
type CaseDetail struct {
	Case          Case     `json:"case"`
	Entries       []Entry  `json:"entries"`
	DaysRemaining *int     `json:"days_remaining,omitempty"`
	Stages        []string `json:"stages,omitempty"`
}

// AdvanceResult is the entry created by an advance plus skip warnings.
type AdvanceResult struct {
	Entry    Entry    `json:"entry"`
	Warnings []string `json:"warnings,omitempty"`
}

// Report describes one generated consolidation file.
type Report struct {
	Filename   string `json:"filename"`
	SizeBytes  int64  `json:"size_bytes"`
	ModifiedAt string `json:"modified_at"`
}

// Dashboard is the aggregate counters view.
type Dashboard struct {
	TotalCases   int            `json:"total_cases"`
	ActiveCases  int            `json:"active_cases"`
	ByStage      map[string]int `json:"by_stage"`
	ExpiringSoon int            `json:"expiring_soon"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateCase registers a case.
func (c *Client) CreateCase(ctx context.Context, caseNumber, caseType, summary string) (Case, error) {
	body := map[string]any{
		"case_number": caseNumber,
		"case_type":   caseType,
		"summary":     summary,
	}
	var resp Case
	err := c.do(ctx, http.MethodPost, "v0/cases", body, &resp)
	return resp, err
}

// GetCase fetches a case with its history.
func (c *Client) GetCase(ctx context.Context, id string) (CaseDetail, error) {
	var resp CaseDetail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/cases/%s", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// ListCases returns registered cases.
func (c *Client) ListCases(ctx context.Context) ([]Case, error) {
	var resp []Case
	err := c.do(ctx, http.MethodGet, "v0/cases", nil, &resp)
	return resp, err
}

// Advance moves a case to another stage with optional attachments.
func (c *Client) Advance(ctx context.Context, id, stage, note string, attachments []Attachment) (AdvanceResult, error) {
	body := map[string]any{
		"stage":       stage,
		"note":        note,
		"attachments": attachments,
	}
	var resp AdvanceResult
	endpoint := fmt.Sprintf("v0/cases/%s/advance", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GenerateReport queues consolidation for a case. The server answers before
// the report exists; poll ListReports for the result.
func (c *Client) GenerateReport(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("v0/cases/%s/report", url.PathEscape(id))
	return c.do(ctx, http.MethodPost, endpoint, map[string]any{}, nil)
}

// ListReports returns generated reports, newest first.
func (c *Client) ListReports(ctx context.Context) ([]Report, error) {
	var resp []Report
	err := c.do(ctx, http.MethodGet, "v0/reports", nil, &resp)
	return resp, err
}

// DownloadReport fetches one generated report file.
func (c *Client) DownloadReport(ctx context.Context, filename string) ([]byte, error) {
	endpoint := fmt.Sprintf("v0/reports/%s", url.PathEscape(filename))
	return c.doRaw(ctx, http.MethodGet, endpoint)
}

// Dashboard returns the aggregate counters.
func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, "v0/dashboard", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string) ([]byte, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(req)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) setAuth(req *http.Request) {
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
