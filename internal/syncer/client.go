// Package syncer drains the offline queue against the server's diagram
// API once connectivity resumes.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Diagram is the wire shape of a server diagram, as much of it as the
// client cache needs.
type Diagram struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Kind           string          `json:"kind"`
	Title          string          `json:"title"`
	CanvasData     json.RawMessage `json:"canvas_data,omitempty"`
	NoteContent    string          `json:"note_content,omitempty"`
	CurrentVersion int             `json:"current_version"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ConflictError is a 409: the server kept its version and the local
// edit must not be retried.
type ConflictError struct {
	Detail string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: %s", e.Detail)
}

// RequestError is any other 4xx: the edit is malformed or forbidden and
// retrying cannot help.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request rejected with status %d: %s", e.StatusCode, e.Body)
}

// TransientError is a network failure or 5xx; the edit stays queued and
// is retried on a later pass.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient failure: %v", e.Err)
	}
	return fmt.Sprintf("transient failure: server returned status %d", e.StatusCode)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Client speaks the diagram API contract on behalf of one actor.
type Client struct {
	baseURL string
	actorID string
	http    *http.Client
}

func NewClient(baseURL, actorID string) *Client {
	return &Client{
		baseURL: baseURL,
		actorID: actorID,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) CreateDiagram(ctx context.Context, payload json.RawMessage) (*Diagram, error) {
	return c.doDiagram(ctx, http.MethodPost, "/api/v1/diagrams", payload)
}

func (c *Client) UpdateDiagram(ctx context.Context, id string, payload json.RawMessage) (*Diagram, error) {
	return c.doDiagram(ctx, http.MethodPut, "/api/v1/diagrams/"+id, payload)
}

func (c *Client) GetDiagram(ctx context.Context, id string) (*Diagram, error) {
	return c.doDiagram(ctx, http.MethodGet, "/api/v1/diagrams/"+id, nil)
}

func (c *Client) DeleteDiagram(ctx context.Context, id string) error {
	body, err := c.do(ctx, http.MethodDelete, "/api/v1/diagrams/"+id, nil)
	if err != nil {
		return err
	}
	_ = body
	return nil
}

func (c *Client) doDiagram(ctx context.Context, method, path string, payload json.RawMessage) (*Diagram, error) {
	body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	var d Diagram
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decode diagram: %w", err)
	}
	return &d, nil
}

// do performs one request and classifies the outcome into the sync
// error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, payload json.RawMessage) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", c.actorID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusConflict:
		var payload struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(body, &payload)
		return nil, &ConflictError{Detail: payload.Detail}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(body)}
	default:
		return nil, &TransientError{StatusCode: resp.StatusCode}
	}
}
