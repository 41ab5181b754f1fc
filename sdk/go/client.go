package vigiasdk

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

// Client is a minimal Vigia HTTP API client. ActorID is the selected user
// every request acts as; it is sent as the X-Actor-Id header.
type Client struct {
	BaseURL    string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, actorID string) *Client {
	return &Client{
		BaseURL: baseURL,
		ActorID: actorID,
		Timeout: 10 * time.Second,
	}
}

// Review represents the API review model (partial).
type Review struct {
	ID         string            `json:"id"`
	CaseNumber string            `json:"case_number"`
	Title      string            `json:"title"`
	Status     string            `json:"status"`
	Queue      string            `json:"current_queue"`
	OwnerID    string            `json:"owner_id"`
	Priority   string            `json:"priority,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
	PrideCase  bool              `json:"pride_case"`
	CreatedAt  string            `json:"created_at"`
	UpdatedAt  string            `json:"updated_at"`
}

// Calibration represents a calibration session (partial).
type Calibration struct {
	ID     string `json:"id"`
	Type   string `json:"calibration_type"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Queue  string `json:"current_queue"`
}

// User is one entry of the selectable roster.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
	Team string `json:"team"`
}

// AuditEntry is one ledger record.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Timestamp  string         `json:"timestamp"`
	ActingUser string         `json:"acting_user"`
	Details    map[string]any `json:"details,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Users returns the selectable roster.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "v0/users", nil, &resp)
	return resp, err
}

// CreateReview opens a review.
func (c *Client) CreateReview(ctx context.Context, caseNumber, title string) (Review, error) {
	body := map[string]any{
		"case_number": caseNumber,
		"title":       title,
	}
	var resp Review
	err := c.do(ctx, http.MethodPost, "v0/reviews", body, &resp)
	return resp, err
}

// Reviews lists the reviews visible to the client's actor.
func (c *Client) Reviews(ctx context.Context) ([]Review, error) {
	var resp []Review
	err := c.do(ctx, http.MethodGet, "v0/reviews", nil, &resp)
	return resp, err
}

// Tag assigns an evaluation tag to one dimension.
func (c *Client) Tag(ctx context.Context, reviewID, dimension, level string) (Review, error) {
	body := map[string]any{
		"dimension": dimension,
		"level":     level,
	}
	var resp Review
	err := c.do(ctx, http.MethodPost, c.reviewPath(reviewID, "tags"), body, &resp)
	return resp, err
}

// Requeue moves a review to another queue.
func (c *Client) Requeue(ctx context.Context, reviewID, destination, reason string) (Review, error) {
	body := map[string]any{
		"destination": destination,
		"reason":      reason,
	}
	var resp Review
	err := c.do(ctx, http.MethodPost, c.reviewPath(reviewID, "requeue"), body, &resp)
	return resp, err
}

// MarkPride flags a review as a pride case.
func (c *Client) MarkPride(ctx context.Context, reviewID string) (Review, error) {
	var resp Review
	err := c.do(ctx, http.MethodPost, c.reviewPath(reviewID, "pride"), nil, &resp)
	return resp, err
}

// SetStatus advances the review lifecycle.
func (c *Client) SetStatus(ctx context.Context, reviewID, status, reason string) (Review, error) {
	body := map[string]any{
		"status": status,
		"reason": reason,
	}
	var resp Review
	err := c.do(ctx, http.MethodPatch, c.reviewPath(reviewID, "status"), body, &resp)
	return resp, err
}

// Comment appends a note to the review ledger.
func (c *Client) Comment(ctx context.Context, reviewID, text string) (Review, error) {
	var resp Review
	err := c.do(ctx, http.MethodPost, c.reviewPath(reviewID, "comments"), map[string]any{"text": text}, &resp)
	return resp, err
}

// Audit returns the review's action ledger.
func (c *Client) Audit(ctx context.Context, reviewID string) ([]AuditEntry, error) {
	var resp []AuditEntry
	err := c.do(ctx, http.MethodGet, c.reviewPath(reviewID, "audit"), nil, &resp)
	return resp, err
}

// Calibrations lists the sessions visible to the client's actor.
func (c *Client) Calibrations(ctx context.Context) ([]Calibration, error) {
	var resp []Calibration
	err := c.do(ctx, http.MethodGet, "v0/calibrations", nil, &resp)
	return resp, err
}

// Report fetches the actor's role-scoped quality report as raw JSON.
func (c *Client) Report(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodGet, "v0/metrics/report", nil, &resp)
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
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
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

func (c *Client) reviewPath(reviewID, p string) string {
	return fmt.Sprintf("v0/reviews/%s/%s", url.PathEscape(reviewID), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
