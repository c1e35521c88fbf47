// Package apiclient talks to the design persistence API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"canvas-studio/internal/middleware"
	"canvas-studio/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response
type APIError struct {
	Status  int
	Message string
	Details []models.FieldError
}

func (e *APIError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("api error %d: %s (%d field errors)", e.Status, e.Message, len(e.Details))
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for baseURL (e.g. http://localhost:8080).
// token, if set, is sent as a bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient swaps the transport, mostly for tests
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) CreateDesign(ctx context.Context, in models.DesignCreate) (*models.Design, error) {
	var out models.Design
	if err := c.do(ctx, http.MethodPost, "/api/designs", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListDesigns(ctx context.Context, userID string) ([]models.DesignSummary, error) {
	var out []models.DesignSummary
	if err := c.do(ctx, http.MethodGet, "/api/designs/user/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetDesign(ctx context.Context, id string) (*models.Design, error) {
	var out models.Design
	if err := c.do(ctx, http.MethodGet, "/api/designs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateDesign(ctx context.Context, id string, update models.DesignUpdate) (*models.Design, error) {
	var out models.Design
	if err := c.do(ctx, http.MethodPut, "/api/designs/"+url.PathEscape(id), update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDesign(ctx context.Context, id string, hard bool) error {
	path := "/api/designs/" + url.PathEscape(id)
	if hard {
		path += "?hard=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// SaveElements stores the element list of a design and records its room.
// It is the autosave write.
func (c *Client) SaveElements(ctx context.Context, designID, room string, elements models.Elements) error {
	ctx, span := middleware.StartSpan(ctx, "Autosave.SaveElements",
		attribute.String("design.id", designID),
		attribute.Int("elements.count", len(elements)),
	)
	defer span.End()

	update := models.DesignUpdate{CanvasElements: &elements, Room: &room}
	err := c.do(ctx, http.MethodPut, "/api/designs/"+url.PathEscape(designID), update, nil)
	middleware.AddSpanError(ctx, err)
	return err
}

// Export renders a design. A nil elements list renders the stored elements.
// Returns the PNG and the server-suggested filename.
func (c *Client) Export(ctx context.Context, id string, elements models.Elements) ([]byte, string, error) {
	body := map[string]interface{}{}
	if elements != nil {
		body["canvasElements"] = elements
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/designs/"+url.PathEscape(id)+"/export", body)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to export design: %w", err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return nil, "", err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read export: %w", err)
	}

	filename := id + ".png"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return data, filename, nil
}

// RoomToken asks the server for a token admitting the caller into room
func (c *Client) RoomToken(ctx context.Context, room string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/rooms/auth", map[string]string{"room": room}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var body struct {
		Error   string              `json:"error"`
		Details []models.FieldError `json:"details"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}

	apiErr := &APIError{Status: resp.StatusCode, Message: body.Error, Details: body.Details}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	}
	return apiErr
}
